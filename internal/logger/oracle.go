package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

var (
	oracleMu  sync.Mutex
	oracleLog *log.Logger
)

// SetOracleWriter 设置决策 oracle 请求/响应的转录输出；nil 关闭转录。
func SetOracleWriter(w io.Writer) {
	oracleMu.Lock()
	defer oracleMu.Unlock()
	if w == nil {
		oracleLog = nil
		return
	}
	oracleLog = log.New(w, "", log.LstdFlags)
}

func OracleEnabled() bool {
	oracleMu.Lock()
	defer oracleMu.Unlock()
	return oracleLog != nil
}

// LogOracleExchange 记录一次 oracle 往返。
func LogOracleExchange(model, symbol, request, response string) {
	oracleMu.Lock()
	l := oracleLog
	oracleMu.Unlock()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[ORACLE]")
	if model != "" {
		b.WriteString("[" + model + "]")
	}
	if symbol != "" {
		b.WriteString("[" + symbol + "]")
	}
	b.WriteString("\n")
	writeSection(&b, "REQUEST", request)
	writeSection(&b, "RESPONSE", response)
	b.WriteString("=====\n")
	l.Print(b.String())
}

func writeSection(b *strings.Builder, title, body string) {
	b.WriteString("--- " + title + " ---\n")
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
}
