// Package binance 基于 go-binance SDK 实现 market.Provider 与 market.RangeSource。
package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"autotrader/internal/logger"
	"autotrader/internal/market"
	"autotrader/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2/futures"
)

const (
	maxHistoryLimit = 1500
	klineGrace      = 10 * time.Second
)

type Provider struct {
	cfg      Config
	client   *futures.Client
	interval time.Duration
	nowFn    func() time.Time
}

func New(cfg Config) (*Provider, error) {
	final := cfg.withDefaults()
	dur, ok := market.ParseInterval(final.Interval)
	if !ok {
		return nil, fmt.Errorf("invalid kline interval %q", final.Interval)
	}
	client := futures.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Provider{
		cfg:      final,
		client:   client,
		interval: dur,
		nowFn:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Fetch 返回最近 lookback 根已收盘 K 线；AsOf 留空交给引擎时钟。
func (p *Provider) Fetch(ctx context.Context, symbol string, lookback int) (market.Snapshot, error) {
	if lookback <= 0 {
		lookback = 100
	}
	// 多取一根，未收盘的那根会被丢弃。
	limit := lookback + 1
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	sym := exchangeSymbol(symbol)
	if sym == "" {
		return market.Snapshot{}, fmt.Errorf("symbol is required")
	}
	kls, err := p.client.NewKlinesService().Symbol(sym).Interval(p.cfg.Interval).Limit(limit).Do(ctx)
	if err != nil {
		return market.Snapshot{}, market.Unavailable(symbol, err)
	}
	candles := dropUnclosed(convertKlines(kls), p.interval, p.nowFn(), klineGrace).Tail(lookback)
	if len(candles) == 0 {
		return market.Snapshot{}, market.Unavailable(symbol, fmt.Errorf("no closed klines"))
	}
	return market.Snapshot{Symbol: symbol, Interval: p.cfg.Interval, Candles: candles}, nil
}

// FetchRange 分页拉取 [start, end) 内已收盘的 K 线。
func (p *Provider) FetchRange(ctx context.Context, symbol string, start, end time.Time) (market.Candles, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("range end %s must be after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	sym := exchangeSymbol(symbol)
	var out market.Candles
	cursor := start.UnixMilli()
	endMs := end.UnixMilli()
	for cursor < endMs {
		kls, err := p.client.NewKlinesService().
			Symbol(sym).
			Interval(p.cfg.Interval).
			StartTime(cursor).
			EndTime(endMs - 1).
			Limit(maxHistoryLimit).
			Do(ctx)
		if err != nil {
			return nil, market.Unavailable(symbol, err)
		}
		page := convertKlines(kls)
		if len(page) == 0 {
			break
		}
		out = append(out, page...)
		next := page[len(page)-1].OpenTime + p.interval.Milliseconds()
		if next <= cursor {
			break
		}
		cursor = next
		logger.Debugf("binance range %s: %d klines, cursor=%s", sym, len(out), time.UnixMilli(cursor).UTC().Format(time.RFC3339))
	}
	out = dropUnclosed(out, p.interval, p.nowFn(), klineGrace)
	if len(out) == 0 {
		return nil, market.Unavailable(symbol, fmt.Errorf("no klines between %s and %s", start.Format(time.RFC3339), end.Format(time.RFC3339)))
	}
	return out, nil
}

func exchangeSymbol(raw string) string {
	return symbol.Normalize(raw)
}

func convertKlines(kls []*futures.Kline) market.Candles {
	out := make(market.Candles, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	return out
}

// dropUnclosed 丢弃仍在进行中的最后一根 K 线。
func dropUnclosed(klines market.Candles, interval time.Duration, now time.Time, grace time.Duration) market.Candles {
	if len(klines) == 0 || interval <= 0 {
		return klines
	}
	last := klines[len(klines)-1]
	if last.OpenTime <= 0 {
		return klines
	}
	cutoffMs := last.OpenTime + interval.Milliseconds() + grace.Milliseconds()
	if now.UnixMilli() < cutoffMs {
		return klines[:len(klines)-1]
	}
	return klines
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
