package app

import (
	"context"
	"fmt"
	"strings"

	"autotrader/internal/backtest"
	brcfg "autotrader/internal/config"
	"autotrader/internal/gateway/notifier"
	"autotrader/internal/logger"
	"autotrader/internal/market"
)

type BacktestRequest struct {
	Bars      BarsRequest
	ReportDir string
	Format    string
	Chart     bool
	// Notifier 非空时推送回测摘要。
	Notifier notifier.TextNotifier
}

type BacktestOutcome struct {
	Result backtest.Result
	Files  []string
}

// RunBacktest 加载 K 线并按当前配置回放，可选写出报告与推送摘要。
func RunBacktest(ctx context.Context, cfg *brcfg.Config, req BacktestRequest) (BacktestOutcome, error) {
	bars, err := LoadBars(ctx, cfg, req.Bars)
	if err != nil {
		return BacktestOutcome{}, err
	}
	return RunBacktestBars(ctx, cfg, bars, req)
}

func RunBacktestBars(ctx context.Context, cfg *brcfg.Config, bars market.Candles, req BacktestRequest) (BacktestOutcome, error) {
	if cfg == nil {
		return BacktestOutcome{}, fmt.Errorf("nil config")
	}
	strat, closer, err := BuildStrategy(cfg)
	if err != nil {
		return BacktestOutcome{}, err
	}
	if closer != nil {
		defer func() {
			logger.SetOracleWriter(nil)
			_ = closer.Close()
		}()
	}
	paper, err := cfg.Execution.Paper()
	if err != nil {
		return BacktestOutcome{}, err
	}
	res, err := backtest.Run(ctx, cfg.Trading.Symbol, bars, backtest.Config{
		Interval:     cfg.Trading.Interval,
		InitialCash:  cfg.Trading.Cash(),
		Lookback:     cfg.Trading.Lookback,
		HistoryLimit: cfg.Risk.HistoryLimit,
		Strategy:     strat,
		Indicators:   buildIndicators(cfg),
		Risk:         cfg.Risk.Gate(),
		Paper:        paper,
	})
	if err != nil {
		return BacktestOutcome{}, err
	}

	logger.InfoBlock(backtest.Summary(res))
	out := BacktestOutcome{Result: res}
	if dir := strings.TrimSpace(req.ReportDir); dir != "" {
		files, err := backtest.WriteReport(dir, req.Format, res, req.Chart)
		if err != nil {
			return out, fmt.Errorf("write backtest report: %w", err)
		}
		out.Files = files
		for _, f := range files {
			logger.Infof("backtest report: %s", f)
		}
	}
	if req.Notifier != nil {
		if err := req.Notifier.SendText(backtest.Summary(res)); err != nil {
			logger.Warnf("backtest summary notify failed: %v", err)
		}
	}
	return out, nil
}
