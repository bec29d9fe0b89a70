package indicator

type Trend string

const (
	TrendUp       Trend = "UP"
	TrendDown     Trend = "DOWN"
	TrendSideways Trend = "SIDEWAYS"
	TrendUnknown  Trend = "UNKNOWN"
)

type Level string

const (
	LevelLow     Level = "LOW"
	LevelMedium  Level = "MEDIUM"
	LevelHigh    Level = "HIGH"
	LevelUnknown Level = "UNKNOWN"
)

// Conditions 是风控闸门使用的市场状态摘要。
type Conditions struct {
	Trend           Trend   `json:"trend"`
	Volatility      float64 `json:"volatility"`
	VolatilityLevel Level   `json:"volatility_level"`
	HasVolatility   bool    `json:"has_volatility"`
	RSI             float64 `json:"rsi"`
	HasRSI          bool    `json:"has_rsi"`
}

func (c Settings) volatilityLevel(v float64) Level {
	switch {
	case v > c.VolHigh:
		return LevelHigh
	case v < c.VolLow:
		return LevelLow
	default:
		return LevelMedium
	}
}

// Conditions 从报告推导市场状态。
func (l *Library) Conditions(rep Report) Conditions {
	out := Conditions{Trend: TrendUnknown, VolatilityLevel: LevelUnknown}
	if v, ok := rep.Get(KeyVolatility); ok {
		out.Volatility = v
		out.HasVolatility = true
		out.VolatilityLevel = l.cfg.volatilityLevel(v)
	}
	if v, ok := rep.Get(KeyRSI); ok {
		out.RSI = v
		out.HasRSI = true
	}
	short, okS := rep.Get(KeySMAShort)
	long, okL := rep.Get(KeySMALong)
	if okS && okL && long != 0 {
		switch {
		case short > long*1.01:
			out.Trend = TrendUp
		case short < long*0.99:
			out.Trend = TrendDown
		default:
			out.Trend = TrendSideways
		}
	}
	return out
}
