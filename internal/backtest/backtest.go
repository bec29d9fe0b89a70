// Package backtest 在历史 K 线上逐根回放引擎，汇总权益曲线与绩效指标。
package backtest

import (
	"context"
	"fmt"
	"time"

	"autotrader/internal/decision"
	"autotrader/internal/engine"
	"autotrader/internal/execution"
	"autotrader/internal/indicator"
	"autotrader/internal/ledger"
	"autotrader/internal/logger"
	"autotrader/internal/market"
	"autotrader/internal/risk"
	"autotrader/internal/types"

	"github.com/shopspring/decimal"
)

type Config struct {
	Interval     string
	InitialCash  decimal.Decimal
	Lookback     int
	HistoryLimit int
	Strategy     decision.Strategy
	Indicators   *indicator.Library
	Risk         risk.Config
	Paper        execution.PaperConfig
}

// Result 在回放结束后一次性计算，不会被增量修改。
type Result struct {
	Symbol      string               `json:"symbol" yaml:"symbol"`
	Strategy    string               `json:"strategy" yaml:"strategy"`
	Start       time.Time            `json:"start" yaml:"start"`
	End         time.Time            `json:"end" yaml:"end"`
	Bars        int                  `json:"bars" yaml:"bars"`
	InitialCash decimal.Decimal      `json:"initial_cash" yaml:"initial_cash"`
	FinalEquity decimal.Decimal      `json:"final_equity" yaml:"final_equity"`
	TotalReturn float64              `json:"total_return" yaml:"total_return"`
	MaxDrawdown float64              `json:"max_drawdown" yaml:"max_drawdown"`
	TradeCount  int                  `json:"trade_count" yaml:"trade_count"`
	Errors      int                  `json:"errors" yaml:"errors"`
	Rejections  map[string]int       `json:"rejections,omitempty" yaml:"rejections,omitempty"`
	Fills       []types.Fill         `json:"fills,omitempty" yaml:"-"`
	EquityCurve []ledger.EquityPoint `json:"equity_curve" yaml:"-"`
}

// Run 用全新账本与模拟撮合逐根驱动一次 tick，不做墙钟节流，最小决策间隔按 K 线时间生效。
func Run(ctx context.Context, symbol string, bars market.Candles, cfg Config) (Result, error) {
	if cfg.Strategy == nil {
		return Result{}, fmt.Errorf("backtest requires a strategy")
	}
	replay, err := market.NewReplay(symbol, cfg.Interval, bars)
	if err != nil {
		return Result{}, err
	}
	book, err := ledger.New(symbol, cfg.InitialCash)
	if err != nil {
		return Result{}, err
	}
	broker, err := execution.NewPaperBroker(book, cfg.Paper)
	if err != nil {
		return Result{}, err
	}
	var barTime time.Time
	eng, err := engine.New(engine.Params{
		Mode:       "backtest",
		Symbol:     symbol,
		Lookback:   cfg.Lookback,
		Provider:   replay,
		Indicators: cfg.Indicators,
		Strategy:   cfg.Strategy,
		Gate:       risk.NewGate(broker),
		Risk:       cfg.Risk,
		Ledger:     book,
		Execution:  broker,
		History:    decision.NewHistory(cfg.HistoryLimit),
		NewOrderID: execution.SequenceGenerator("bt"),
		Clock:      func() time.Time { return barTime },
	})
	if err != nil {
		return Result{}, err
	}

	logger.Infof("backtest %s: replaying %d bars with %s", symbol, replay.Len(), cfg.Strategy.Name())
	var (
		fills      []types.Fill
		rejections = map[string]int{}
		errs       int
	)
	for i := 0; i < replay.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		bar, err := replay.Seek(i)
		if err != nil {
			return Result{}, err
		}
		barTime = bar.Time()
		rep := eng.Tick(ctx)
		switch {
		case rep.Failed():
			errs++
			logger.Debugf("backtest %s: bar %s %s", symbol, bar.TimeString(), rep)
		case rep.Fill != nil:
			fills = append(fills, *rep.Fill)
		case rep.Verdict != nil && !rep.Verdict.Accepted && rep.Verdict.Reason != risk.ReasonNoAction:
			rejections[string(rep.Verdict.Reason)]++
		}
		if _, err := book.MarkToMarket(barTime, decimal.NewFromFloat(bar.Close)); err != nil {
			return Result{}, err
		}
	}

	curve := book.EquityHistory()
	res := Result{
		Symbol:      symbol,
		Strategy:    cfg.Strategy.Name(),
		Start:       bars[0].Time(),
		End:         bars[len(bars)-1].Time(),
		Bars:        len(bars),
		InitialCash: book.InitialCash(),
		FinalEquity: book.InitialCash(),
		TradeCount:  len(fills),
		Errors:      errs,
		Fills:       fills,
		EquityCurve: curve,
	}
	if len(rejections) > 0 {
		res.Rejections = rejections
	}
	if n := len(curve); n > 0 {
		res.FinalEquity = curve[n-1].Equity
	}
	res.TotalReturn = TotalReturn(res.InitialCash, res.FinalEquity)
	res.MaxDrawdown = MaxDrawdown(curve)
	logger.Infof("backtest %s: done trades=%d return=%.4f max_drawdown=%.4f", symbol, res.TradeCount, res.TotalReturn, res.MaxDrawdown)
	return res, nil
}

// MaxDrawdown = max_t (峰值 - 当前) / 峰值。
func MaxDrawdown(curve []ledger.EquityPoint) float64 {
	var peak, worst decimal.Decimal
	for _, p := range curve {
		if p.Equity.GreaterThan(peak) {
			peak = p.Equity
		}
		if !peak.IsPositive() {
			continue
		}
		if dd := peak.Sub(p.Equity).Div(peak); dd.GreaterThan(worst) {
			worst = dd
		}
	}
	return worst.InexactFloat64()
}

// Drawdowns 返回每个点相对当时峰值的回撤，用于绘图。
func Drawdowns(curve []ledger.EquityPoint) []float64 {
	out := make([]float64, len(curve))
	var peak decimal.Decimal
	for i, p := range curve {
		if p.Equity.GreaterThan(peak) {
			peak = p.Equity
		}
		if peak.IsPositive() {
			out[i] = peak.Sub(p.Equity).Div(peak).InexactFloat64()
		}
	}
	return out
}

func TotalReturn(initial, final decimal.Decimal) float64 {
	if !initial.IsPositive() {
		return 0
	}
	return final.Sub(initial).Div(initial).InexactFloat64()
}
