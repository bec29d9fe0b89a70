// Package market 定义行情数据的最小接口以及回测回放实现。
package market

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDataUnavailable 表示行情暂不可用，本轮跳过。
var ErrDataUnavailable = errors.New("market data unavailable")

// Snapshot 是某一时刻可见的行情窗口。
type Snapshot struct {
	Symbol   string
	Interval string
	Candles  Candles
	// AsOf 为快照的观测时间；零值表示由调用方时钟决定。
	AsOf time.Time
}

func (s Snapshot) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Provider 拉取最近 lookback 根 K 线。
type Provider interface {
	Fetch(ctx context.Context, symbol string, lookback int) (Snapshot, error)
}

// RangeSource 拉取时间区间内的历史 K 线，供回测使用。
type RangeSource interface {
	FetchRange(ctx context.Context, symbol string, start, end time.Time) (Candles, error)
}

// Unavailable 把任意错误包装为 ErrDataUnavailable。
func Unavailable(symbol string, err error) error {
	if err == nil || errors.Is(err, ErrDataUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrDataUnavailable, symbol, err)
}
