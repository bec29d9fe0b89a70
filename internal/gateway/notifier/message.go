package notifier

import (
	"fmt"
	"strings"
)

// FillMessage 成交通知正文。
func FillMessage(mode, symbol, side, qty, price, fee, equity, rationale string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s\n", mode, side, symbol)
	fmt.Fprintf(&b, "qty=%s price=%s fee=%s\n", qty, price, fee)
	fmt.Fprintf(&b, "equity=%s", equity)
	if r := strings.TrimSpace(rationale); r != "" {
		fmt.Fprintf(&b, "\n%s", truncate(r, 400))
	}
	return b.String()
}

// ErrorMessage 连续失败或熔断时的告警正文。
func ErrorMessage(mode, symbol, stage string, err error) string {
	return fmt.Sprintf("[%s] %s tick failed at %s: %v", mode, symbol, stage, err)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
