package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autotrader/internal/indicator"
	"autotrader/internal/logger"
)

// ErrOracleUnavailable 表示 oracle 超时、失败或回复不合法；本轮视作观望。
var ErrOracleUnavailable = errors.New("decision oracle unavailable")

// MarketSummary 是发给 oracle 的结构化行情摘要。
type MarketSummary struct {
	Symbol     string                     `json:"symbol"`
	Interval   string                     `json:"interval,omitempty"`
	AsOf       time.Time                  `json:"as_of"`
	Bars       int                        `json:"bars"`
	LastPrice  float64                    `json:"last_price"`
	ChangePct  float64                    `json:"change_pct"`
	High       float64                    `json:"high"`
	Low        float64                    `json:"low"`
	AvgVolume  float64                    `json:"avg_volume"`
	Indicators map[string]indicator.Value `json:"indicators"`
	Conditions indicator.Conditions       `json:"conditions"`
}

// PortfolioContext 是发给 oracle 的账户摘要。
type PortfolioContext struct {
	Cash          float64 `json:"cash"`
	Quantity      float64 `json:"quantity"`
	AverageCost   float64 `json:"average_cost"`
	Equity        float64 `json:"equity"`
	PositionPct   float64 `json:"position_pct"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	RealizedPnL   float64 `json:"realized_pnl"`
}

// Oracle 是外部决策源，内部推理不透明。
type Oracle interface {
	Decide(ctx context.Context, summary MarketSummary, portfolio PortfolioContext) (Decision, error)
}

func BuildSummary(in Input) MarketSummary {
	cs := in.Snapshot.Candles
	out := MarketSummary{
		Symbol:     in.Snapshot.Symbol,
		Interval:   in.Snapshot.Interval,
		AsOf:       in.AsOf,
		Bars:       len(cs),
		Indicators: in.Report.Values,
		Conditions: in.Conditions,
	}
	if len(cs) == 0 {
		return out
	}
	first, last := cs[0], cs[len(cs)-1]
	out.LastPrice = last.Close
	if first.Close != 0 {
		out.ChangePct = (last.Close - first.Close) / first.Close * 100
	}
	out.High, out.Low = last.High, last.Low
	var vol float64
	for _, c := range cs {
		if c.High > out.High {
			out.High = c.High
		}
		if c.Low < out.Low {
			out.Low = c.Low
		}
		vol += c.Volume
	}
	out.AvgVolume = vol / float64(len(cs))
	return out
}

func BuildPortfolioContext(in Input) PortfolioContext {
	p := in.Portfolio
	return PortfolioContext{
		Cash:          p.Cash.InexactFloat64(),
		Quantity:      p.Quantity.InexactFloat64(),
		AverageCost:   p.AverageCost.InexactFloat64(),
		Equity:        p.Equity.InexactFloat64(),
		PositionPct:   p.PositionPct.InexactFloat64(),
		UnrealizedPnL: p.UnrealizedPnL.InexactFloat64(),
		RealizedPnL:   p.RealizedPnL.InexactFloat64(),
	}
}

// OracleStrategy 把决策委托给 Oracle；任何失败都降级为零置信度观望。
type OracleStrategy struct {
	oracle     Oracle
	minHistory int
}

func NewOracleStrategy(o Oracle, minHistory int) *OracleStrategy {
	if minHistory <= 0 {
		minHistory = 30
	}
	return &OracleStrategy{oracle: o, minHistory: minHistory}
}

func (s *OracleStrategy) Name() string { return KindOracle }

// Generate 失败时同时返回 Hold 决策和包装了 ErrOracleUnavailable 的错误。
func (s *OracleStrategy) Generate(ctx context.Context, in Input) (Decision, error) {
	if n := len(in.Snapshot.Candles); n < s.minHistory {
		return Hold(in.AsOf, s.Name(), fmt.Sprintf("insufficient history: %d/%d bars", n, s.minHistory)), nil
	}
	d, err := s.oracle.Decide(ctx, BuildSummary(in), BuildPortfolioContext(in))
	if err != nil {
		return s.unavailable(in, err)
	}
	d.Timestamp = in.AsOf
	d.Source = s.Name()
	if d.RiskLevel == "" {
		d.RiskLevel = RiskMedium
	}
	if err := Validate(d); err != nil {
		return s.unavailable(in, fmt.Errorf("malformed decision: %w", err))
	}
	return d, nil
}

func (s *OracleStrategy) unavailable(in Input, err error) (Decision, error) {
	if !errors.Is(err, ErrOracleUnavailable) {
		err = fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	logger.Warnf("oracle %s: %v", in.Snapshot.Symbol, err)
	return Hold(in.AsOf, s.Name(), "oracle unavailable"), err
}
