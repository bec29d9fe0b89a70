package market

import (
	"fmt"
	"math"
	"time"
)

type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}

// Time 返回 K 线的观测时间（收盘时间，缺失时用开盘时间）。
func (c Candle) Time() time.Time {
	ts := c.CloseTime
	if ts == 0 {
		ts = c.OpenTime
	}
	return time.UnixMilli(ts).UTC()
}

func (c Candle) TimeString() string {
	if c.CloseTime == 0 && c.OpenTime == 0 {
		return "-"
	}
	return c.Time().Format("01-02 15:04") + "Z"
}

type Candles []Candle

func (cs Candles) Closes() []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}

func (cs Candles) Highs() []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.High
	}
	return out
}

func (cs Candles) Lows() []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Low
	}
	return out
}

// Validate 要求按时间严格递增且价格为正。
func (cs Candles) Validate() error {
	for i, c := range cs {
		if c.Close <= 0 || math.IsNaN(c.Close) || math.IsInf(c.Close, 0) {
			return fmt.Errorf("bar %d (%s): close must be positive, got %v", i, c.TimeString(), c.Close)
		}
		if i > 0 && !c.Time().After(cs[i-1].Time()) {
			return fmt.Errorf("bar %d (%s): timestamps must be strictly increasing", i, c.TimeString())
		}
	}
	return nil
}

// Tail 返回最后 n 根（n<=0 返回全部）。
func (cs Candles) Tail(n int) Candles {
	if n <= 0 || n >= len(cs) {
		return cs
	}
	return cs[len(cs)-n:]
}
