// Package risk 实现风控闸门：对决策做顺序检查并按风险参数计算下单数量。
package risk

import (
	"fmt"
	"time"

	"autotrader/internal/decision"
	"autotrader/internal/indicator"
	"autotrader/internal/ledger"
	"autotrader/internal/types"

	"github.com/shopspring/decimal"
)

// Reason 是可断言的拒绝原因。
type Reason string

const (
	ReasonNoAction       Reason = "NoAction"
	ReasonLowConfidence  Reason = "LowConfidence"
	ReasonTooSoon        Reason = "TooSoon"
	ReasonHighVolatility Reason = "HighVolatility"
	ReasonHighRisk       Reason = "HighRisk"
	ReasonOverbought     Reason = "Overbought"
	ReasonOversold       Reason = "Oversold"
	ReasonSizeTooSmall   Reason = "SizeTooSmall"
)

type Config struct {
	MinConfidence         float64
	MinDecisionInterval   time.Duration
	RiskPerTrade          decimal.Decimal
	MaxPositionPct        decimal.Decimal
	VolatilityThreshold   float64
	VolatilityPenalty     float64
	HighRiskMinConfidence float64
	RSIOverbought         float64
	RSIOversold           float64
	QuantityStep          decimal.Decimal
}

func (c Config) Validate() error {
	one := decimal.NewFromInt(1)
	switch {
	case c.MinConfidence < 0 || c.MinConfidence > 1:
		return fmt.Errorf("min_confidence must be within [0,1], got %v", c.MinConfidence)
	case c.MinDecisionInterval < 0:
		return fmt.Errorf("min_decision_interval must be non-negative")
	case !c.RiskPerTrade.IsPositive() || c.RiskPerTrade.GreaterThan(one):
		return fmt.Errorf("risk_per_trade must be within (0,1], got %s", c.RiskPerTrade)
	case !c.MaxPositionPct.IsPositive() || c.MaxPositionPct.GreaterThan(one):
		return fmt.Errorf("max_position_pct must be within (0,1], got %s", c.MaxPositionPct)
	case c.VolatilityThreshold < 0 || c.VolatilityPenalty < 0:
		return fmt.Errorf("volatility threshold and penalty must be non-negative")
	case c.HighRiskMinConfidence < 0 || c.HighRiskMinConfidence > 1:
		return fmt.Errorf("high_risk_min_confidence must be within [0,1], got %v", c.HighRiskMinConfidence)
	case c.RSIOversold < 0 || c.RSIOverbought > 100 || c.RSIOversold >= c.RSIOverbought:
		return fmt.Errorf("rsi thresholds must satisfy 0 <= oversold(%v) < overbought(%v) <= 100", c.RSIOversold, c.RSIOverbought)
	case !c.QuantityStep.IsPositive():
		return fmt.Errorf("quantity_step must be positive, got %s", c.QuantityStep)
	}
	return nil
}

// Verdict 为闸门结论；Accepted 时 Order 为按规则计算的订单（ID 由调用方分配）。
type Verdict struct {
	Accepted bool         `json:"accepted"`
	Reason   Reason       `json:"reason,omitempty"`
	Detail   string       `json:"detail,omitempty"`
	Order    *types.Order `json:"order,omitempty"`
}

func reject(r Reason, format string, args ...any) Verdict {
	return Verdict{Reason: r, Detail: fmt.Sprintf(format, args...)}
}

// CostEstimator 估算买入的总成本（含滑点与手续费），用于把数量压到可负担范围。
type CostEstimator interface {
	EstimateBuyCost(qty, reference decimal.Decimal) decimal.Decimal
}

type Gate struct {
	costs CostEstimator
}

// NewGate costs 可为 nil，此时只按参考价估算成本。
func NewGate(costs CostEstimator) *Gate {
	return &Gate{costs: costs}
}

// Evaluate 是纯函数：相同输入总是得到相同结论，不修改任何输入。
// 检查顺序固定，遇到第一个失败即返回。
func (g *Gate) Evaluate(d decision.Decision, book ledger.View, cond indicator.Conditions, hist *decision.History, cfg Config) Verdict {
	if d.Action == decision.ActionHold {
		return reject(ReasonNoAction, "hold")
	}
	if d.Confidence < cfg.MinConfidence {
		return reject(ReasonLowConfidence, "confidence %.4f < %.4f", d.Confidence, cfg.MinConfidence)
	}
	if last, ok := hist.LastAccepted(); ok && cfg.MinDecisionInterval > 0 {
		if elapsed := d.Timestamp.Sub(last.Decision.Timestamp); elapsed < cfg.MinDecisionInterval {
			return reject(ReasonTooSoon, "%s since last accepted decision, need %s", elapsed, cfg.MinDecisionInterval)
		}
	}
	if cond.HasVolatility && cond.Volatility > cfg.VolatilityThreshold {
		if bar := cfg.MinConfidence + cfg.VolatilityPenalty; d.Confidence < bar {
			return reject(ReasonHighVolatility, "volatility %.4f > %.4f needs confidence %.4f", cond.Volatility, cfg.VolatilityThreshold, bar)
		}
	}
	if d.RiskLevel == decision.RiskHigh && d.Confidence < cfg.HighRiskMinConfidence {
		return reject(ReasonHighRisk, "high risk needs confidence %.4f", cfg.HighRiskMinConfidence)
	}
	if cond.HasRSI {
		if d.Action == decision.ActionBuy && cond.RSI > cfg.RSIOverbought {
			return reject(ReasonOverbought, "rsi %.2f > %.2f", cond.RSI, cfg.RSIOverbought)
		}
		if d.Action == decision.ActionSell && cond.RSI < cfg.RSIOversold {
			return reject(ReasonOversold, "rsi %.2f < %.2f", cond.RSI, cfg.RSIOversold)
		}
	}
	qty, detail := g.size(d.Action, book, cfg)
	if !qty.IsPositive() {
		return reject(ReasonSizeTooSmall, "%s", detail)
	}
	side := types.SideBuy
	if d.Action == decision.ActionSell {
		side = types.SideSell
	}
	return Verdict{
		Accepted: true,
		Detail:   detail,
		Order: &types.Order{
			Symbol:    book.Symbol,
			Side:      side,
			Quantity:  qty,
			Type:      types.OrderTypeMarket,
			CreatedAt: d.Timestamp,
		},
	}
}

// size 买入：min(现金×risk_per_trade, 仓位上限剩余额度)/价格，按步长向下取整。
// 卖出：平掉全部持仓。
func (g *Gate) size(action decision.Action, book ledger.View, cfg Config) (decimal.Decimal, string) {
	if action == decision.ActionSell {
		if !book.Quantity.IsPositive() {
			return decimal.Zero, "no position to sell"
		}
		return book.Quantity, fmt.Sprintf("close %s", book.Quantity)
	}
	price := book.Price
	if !price.IsPositive() {
		return decimal.Zero, "reference price unavailable"
	}
	capValue := book.Equity.Mul(cfg.MaxPositionPct)
	held := book.Quantity.Mul(price)
	if !held.LessThan(capValue) {
		return decimal.Zero, fmt.Sprintf("position %s at max_position_pct cap %s", held.StringFixed(2), capValue.StringFixed(2))
	}
	room := capValue.Sub(held)
	budget := decimal.Min(book.Cash.Mul(cfg.RiskPerTrade), room)
	qty := floorStep(budget.Div(price), cfg.QuantityStep)
	if qty.IsPositive() && g.costs != nil {
		qty = g.affordable(qty, price, book.Cash, cfg.QuantityStep)
	}
	return qty, fmt.Sprintf("budget %s room %s qty %s", budget.StringFixed(2), room.StringFixed(2), qty)
}

func (g *Gate) affordable(qty, price, cash, step decimal.Decimal) decimal.Decimal {
	cost := g.costs.EstimateBuyCost(qty, price)
	if !cost.GreaterThan(cash) {
		return qty
	}
	qty = floorStep(qty.Mul(cash).Div(cost), step)
	for i := 0; i < 64 && qty.IsPositive() && g.costs.EstimateBuyCost(qty, price).GreaterThan(cash); i++ {
		qty = qty.Sub(step)
	}
	if qty.IsNegative() {
		return decimal.Zero
	}
	return qty
}

func floorStep(v, step decimal.Decimal) decimal.Decimal {
	return v.Div(step).Floor().Mul(step)
}
