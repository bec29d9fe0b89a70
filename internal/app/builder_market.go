package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	brcfg "autotrader/internal/config"
	"autotrader/internal/gateway/binance"
	"autotrader/internal/logger"
	"autotrader/internal/market"
)

const (
	SourceBinance = "binance"
	SourceCSV     = "csv"
)

func buildProvider(cfg *brcfg.Config) (market.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Market.Source)) {
	case "", SourceBinance:
		p, err := binance.New(cfg.Market.Binance(cfg.Trading.Interval))
		if err != nil {
			return nil, fmt.Errorf("初始化 binance 行情失败: %w", err)
		}
		logger.Infof("✓ 行情源: binance interval=%s", cfg.Trading.Interval)
		return p, nil
	case SourceCSV:
		return newCSVProvider(cfg.Market.CSVPath, cfg.Trading.Symbol, cfg.Trading.Interval)
	default:
		return nil, fmt.Errorf("unknown market source %q", cfg.Market.Source)
	}
}

// newCSVProvider 以文件中最后一根 K 线为当前时刻提供离线快照。
func newCSVProvider(path, symbol, interval string) (market.Provider, error) {
	bars, err := market.LoadCSVFile(path)
	if err != nil {
		return nil, err
	}
	replay, err := market.NewReplay(symbol, interval, bars)
	if err != nil {
		return nil, fmt.Errorf("csv %s: %w", path, err)
	}
	if _, err := replay.Seek(replay.Len() - 1); err != nil {
		return nil, err
	}
	logger.Infof("✓ 行情源: csv %s (%d bars)", path, replay.Len())
	return replay, nil
}

// BarsRequest 描述回测数据来源：CSV 文件或 [Start, End) 区间。
type BarsRequest struct {
	CSVPath string
	Start   time.Time
	End     time.Time
}

// LoadBars 读取回测所需的历史 K 线。
func LoadBars(ctx context.Context, cfg *brcfg.Config, req BarsRequest) (market.Candles, error) {
	if path := strings.TrimSpace(req.CSVPath); path != "" {
		bars, err := market.LoadCSVFile(path)
		if err != nil {
			return nil, err
		}
		return clipBars(bars, req.Start, req.End), nil
	}
	if req.Start.IsZero() || req.End.IsZero() || !req.End.After(req.Start) {
		return nil, fmt.Errorf("backtest requires -bars or a valid -start/-end range")
	}
	src, err := binance.New(cfg.Market.Binance(cfg.Trading.Interval))
	if err != nil {
		return nil, err
	}
	return fetchRange(ctx, src, cfg.Trading.Symbol, req.Start, req.End)
}

func fetchRange(ctx context.Context, src market.RangeSource, symbol string, start, end time.Time) (market.Candles, error) {
	bars, err := src.FetchRange(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, market.Unavailable(symbol, fmt.Errorf("no bars between %s and %s", start.Format(time.RFC3339), end.Format(time.RFC3339)))
	}
	return bars, nil
}

func clipBars(bars market.Candles, start, end time.Time) market.Candles {
	if start.IsZero() && end.IsZero() {
		return bars
	}
	out := make(market.Candles, 0, len(bars))
	for _, b := range bars {
		t := b.Time()
		if !start.IsZero() && t.Before(start) {
			continue
		}
		if !end.IsZero() && !t.Before(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
