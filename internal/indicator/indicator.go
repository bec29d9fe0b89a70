// Package indicator 在价格序列上计算技术指标，全部为纯函数。
package indicator

import (
	"fmt"
	"math"

	"autotrader/internal/market"

	"github.com/markcheno/go-talib"
)

const (
	KeyRSI        = "rsi"
	KeyMACD       = "macd"
	KeyMACDSignal = "macd_signal"
	KeyMACDHist   = "macd_hist"
	KeyBBUpper    = "bb_upper"
	KeyBBMiddle   = "bb_middle"
	KeyBBLower    = "bb_lower"
	KeySMAShort   = "sma_short"
	KeySMALong    = "sma_long"
	KeyATR        = "atr"
	KeyVolatility = "volatility"
)

// Settings 描述计算指标所需的参数。
type Settings struct {
	RSIPeriod     int
	RSIOverbought float64
	RSIOversold   float64
	MACDFast      int
	MACDSlow      int
	MACDSignal    int
	BBPeriod      int
	BBDev         float64
	ShortWindow   int
	LongWindow    int
	ATRPeriod     int
	// VolWindow 是收益率标准差的窗口。
	VolWindow int
	VolHigh   float64
	VolLow    float64
}

func DefaultSettings() Settings {
	return Settings{
		RSIPeriod:     14,
		RSIOverbought: 70,
		RSIOversold:   30,
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
		BBPeriod:      20,
		BBDev:         2,
		ShortWindow:   20,
		LongWindow:    50,
		ATRPeriod:     14,
		VolWindow:     20,
		VolHigh:       0.03,
		VolLow:        0.01,
	}
}

// Value 保存单个指标的最新值与状态。
type Value struct {
	Latest float64 `json:"latest"`
	State  string  `json:"state,omitempty"`
	Note   string  `json:"note,omitempty"`
}

// Report 汇总一次计算的结果；历史不足的指标不会出现在 Values 中。
type Report struct {
	Count    int              `json:"count"`
	Last     float64          `json:"last"`
	Values   map[string]Value `json:"values"`
	Warnings []string         `json:"warnings,omitempty"`
}

func (r Report) Get(key string) (float64, bool) {
	v, ok := r.Values[key]
	return v.Latest, ok
}

// Library 是指标计算器。
type Library struct {
	cfg Settings
}

func New(cfg Settings) *Library {
	return &Library{cfg: cfg}
}

func (l *Library) Settings() Settings { return l.cfg }

// Compute 计算全部指标；历史不足只产生警告，不返回错误。
func (l *Library) Compute(candles market.Candles) Report {
	cfg := l.cfg
	rep := Report{Count: len(candles), Values: make(map[string]Value)}
	if len(candles) == 0 {
		rep.Warnings = append(rep.Warnings, "no candles")
		return rep
	}
	closes := candles.Closes()
	highs := candles.Highs()
	lows := candles.Lows()
	n := len(closes)
	rep.Last = closes[n-1]

	if n > cfg.RSIPeriod {
		rsi := lastValid(talib.Rsi(closes, cfg.RSIPeriod))
		state := "neutral"
		switch {
		case rsi > cfg.RSIOverbought:
			state = "overbought"
		case rsi < cfg.RSIOversold:
			state = "oversold"
		}
		rep.Values[KeyRSI] = Value{Latest: rsi, State: state, Note: fmt.Sprintf("period=%d", cfg.RSIPeriod)}
	} else {
		rep.Warnings = append(rep.Warnings, insufficient(KeyRSI, cfg.RSIPeriod+1, n))
	}

	if need := cfg.MACDSlow + cfg.MACDSignal - 1; n >= need {
		macd, signal, hist := talib.Macd(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
		h := lastValid(hist)
		rep.Values[KeyMACD] = Value{Latest: lastValid(macd), State: polarityState(h, "bullish", "bearish")}
		rep.Values[KeyMACDSignal] = Value{Latest: lastValid(signal)}
		rep.Values[KeyMACDHist] = Value{Latest: h}
	} else {
		rep.Warnings = append(rep.Warnings, insufficient(KeyMACD, need, n))
	}

	if n >= cfg.BBPeriod {
		upper, middle, lower := talib.BBands(closes, cfg.BBPeriod, cfg.BBDev, cfg.BBDev, talib.SMA)
		u, m, lo := lastValid(upper), lastValid(middle), lastValid(lower)
		state := "inside"
		switch {
		case rep.Last > u:
			state = "above_upper"
		case rep.Last < lo:
			state = "below_lower"
		}
		rep.Values[KeyBBUpper] = Value{Latest: u, State: state}
		rep.Values[KeyBBMiddle] = Value{Latest: m}
		rep.Values[KeyBBLower] = Value{Latest: lo}
	} else {
		rep.Warnings = append(rep.Warnings, insufficient("bbands", cfg.BBPeriod, n))
	}

	for key, period := range map[string]int{KeySMAShort: cfg.ShortWindow, KeySMALong: cfg.LongWindow} {
		if n >= period {
			sma := lastValid(talib.Sma(closes, period))
			rep.Values[key] = Value{Latest: sma, State: relativeState(rep.Last, sma), Note: fmt.Sprintf("period=%d", period)}
		}
	}

	if n > cfg.ATRPeriod {
		rep.Values[KeyATR] = Value{Latest: lastValid(talib.Atr(highs, lows, closes, cfg.ATRPeriod)), Note: fmt.Sprintf("period=%d", cfg.ATRPeriod)}
	}

	if vol, ok := Volatility(closes, cfg.VolWindow); ok {
		rep.Values[KeyVolatility] = Value{Latest: vol, State: string(cfg.volatilityLevel(vol)), Note: fmt.Sprintf("window=%d", cfg.VolWindow)}
	} else {
		rep.Warnings = append(rep.Warnings, insufficient(KeyVolatility, cfg.VolWindow+1, n))
	}
	return rep
}

// SMA 返回简单移动平均序列，前 period-1 个位置为 NaN。
func SMA(closes []float64, period int) []float64 {
	out := talib.Sma(closes, period)
	for i := 0; i < period-1 && i < len(out); i++ {
		out[i] = math.NaN()
	}
	return out
}

// Volatility 返回最近 window 个收盘收益率的标准差。
func Volatility(closes []float64, window int) (float64, bool) {
	if window < 2 || len(closes) < window+1 {
		return 0, false
	}
	returns := make([]float64, 0, window)
	tail := closes[len(closes)-window-1:]
	for i := 1; i < len(tail); i++ {
		if tail[i-1] == 0 {
			return 0, false
		}
		returns = append(returns, tail[i]/tail[i-1]-1)
	}
	std := talib.StdDev(returns, window, 1)
	return lastValid(std), true
}

func insufficient(name string, need, have int) string {
	return fmt.Sprintf("%s needs %d bars, have %d", name, need, have)
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}

func relativeState(price, ref float64) string {
	if ref == 0 {
		return "unknown"
	}
	switch {
	case price > ref*1.002:
		return "above"
	case price < ref*0.998:
		return "below"
	default:
		return "touch"
	}
}

func polarityState(v float64, pos, neg string) string {
	switch {
	case v > 0:
		return pos
	case v < 0:
		return neg
	default:
		return "flat"
	}
}
