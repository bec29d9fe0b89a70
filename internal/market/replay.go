package market

import (
	"context"
	"fmt"
)

// Replay 按游标回放历史 K 线，Fetch 只返回游标及之前的数据。
type Replay struct {
	symbol   string
	interval string
	bars     Candles
	cursor   int
}

func NewReplay(symbol, interval string, bars Candles) (*Replay, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("replay requires at least one bar")
	}
	if err := bars.Validate(); err != nil {
		return nil, err
	}
	return &Replay{symbol: symbol, interval: interval, bars: bars, cursor: -1}, nil
}

func (r *Replay) Len() int { return len(r.bars) }

// Seek 把游标移到第 i 根。
func (r *Replay) Seek(i int) (Candle, error) {
	if i < 0 || i >= len(r.bars) {
		return Candle{}, fmt.Errorf("replay index %d out of range [0,%d)", i, len(r.bars))
	}
	r.cursor = i
	return r.bars[i], nil
}

func (r *Replay) Fetch(ctx context.Context, symbol string, lookback int) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	if symbol != r.symbol {
		return Snapshot{}, Unavailable(symbol, fmt.Errorf("replay serves %s only", r.symbol))
	}
	if r.cursor < 0 {
		return Snapshot{}, Unavailable(symbol, fmt.Errorf("replay not started"))
	}
	visible := r.bars[:r.cursor+1].Tail(lookback)
	window := make(Candles, len(visible))
	copy(window, visible)
	return Snapshot{
		Symbol:   symbol,
		Interval: r.interval,
		Candles:  window,
		AsOf:     r.bars[r.cursor].Time(),
	}, nil
}
