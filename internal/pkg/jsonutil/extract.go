// Package jsonutil 从模型的自由文本回复中提取 JSON。
package jsonutil

import (
	"bytes"
	"encoding/json"
	"strings"
)

const codeFence = "```"

// ExtractObject 返回回复中的第一个完整 JSON 对象，代码块内的内容优先。
func ExtractObject(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if block, ok := fenced(raw); ok {
		if obj, ok := firstObject(block); ok {
			return obj, true
		}
	}
	return firstObject(raw)
}

func fenced(raw string) (string, bool) {
	_, rest, ok := strings.Cut(raw, codeFence)
	if !ok {
		return "", false
	}
	block, _, ok := strings.Cut(rest, codeFence)
	if !ok {
		return "", false
	}
	// 首行可能是 json 之类的语言标记。
	if head, body, found := strings.Cut(block, "\n"); found && !strings.ContainsAny(head, "[{") {
		block = body
	}
	block = strings.TrimSpace(block)
	return block, block != ""
}

// firstObject 从每个 '{' 起尝试解码一个对象，返回第一个成功的原始片段。
func firstObject(s string) (string, bool) {
	for i := strings.IndexByte(s, '{'); i != -1; {
		var obj json.RawMessage
		if err := json.NewDecoder(strings.NewReader(s[i:])).Decode(&obj); err == nil {
			return string(obj), true
		}
		next := strings.IndexByte(s[i+1:], '{')
		if next == -1 {
			break
		}
		i += next + 1
	}
	return "", false
}

// Pretty 缩进合法 JSON，非法输入原样返回。
func Pretty(raw string) string {
	raw = strings.TrimSpace(raw)
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		return raw
	}
	return buf.String()
}
