// Package symbol 统一交易标的写法。
package symbol

import "strings"

var quoteCurrencies = []string{"USDT", "BUSD", "USDC", "TUSD", "BTC", "ETH", "BNB"}

// Symbol 是拆分后的标的；股票等单一代码只有 Base。
type Symbol struct {
	Base  string
	Quote string
}

// Parse 接受 BTCUSDT、btc/usdt、BTC/USDT:USDT、AAPL 等写法。
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{Base: strings.TrimSpace(parts[0]), Quote: strings.TrimSpace(parts[1])}
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: s[:len(s)-len(quote)], Quote: quote}
		}
	}
	return Symbol{Base: s}
}

// String 返回交易所写法（BTCUSDT / AAPL）。
func (s Symbol) String() string {
	return s.Base + s.Quote
}

func (s Symbol) Pair() string {
	if s.Quote == "" {
		return s.Base
	}
	return s.Base + "/" + s.Quote
}

func Normalize(s string) string {
	return Parse(s).String()
}
