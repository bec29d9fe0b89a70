// Package ledger 维护单一标的的现金、持仓与权益曲线。
//
// 不支持做空：卖出数量以当前持仓为上限。
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"autotrader/internal/types"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrSymbolMismatch       = errors.New("symbol mismatch")
)

// Position 为单一标的的多头持仓；Quantity 为零时 AverageCost 无意义。
type Position struct {
	Symbol      string          `json:"symbol"`
	Quantity    decimal.Decimal `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

func (p Position) Flat() bool {
	return p.Quantity.IsZero()
}

// EquityPoint 是权益曲线上的一个点。
type EquityPoint struct {
	Time   time.Time       `json:"time" yaml:"time"`
	Equity decimal.Decimal `json:"equity" yaml:"equity"`
}

type Ledger struct {
	initialCash decimal.Decimal
	cash        decimal.Decimal
	position    Position
	history     []EquityPoint
}

func New(symbol string, initialCash decimal.Decimal) (*Ledger, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("ledger symbol is required")
	}
	if initialCash.IsNegative() {
		return nil, fmt.Errorf("initial cash must be non-negative, got %s", initialCash)
	}
	return &Ledger{
		initialCash: initialCash,
		cash:        initialCash,
		position:    Position{Symbol: symbol},
	}, nil
}

func (l *Ledger) Symbol() string { return l.position.Symbol }
func (l *Ledger) InitialCash() decimal.Decimal { return l.initialCash }
func (l *Ledger) Cash() decimal.Decimal { return l.cash }
func (l *Ledger) Position() Position { return l.position }

// EquityHistory 返回权益曲线的副本。
func (l *Ledger) EquityHistory() []EquityPoint {
	out := make([]EquityPoint, len(l.history))
	copy(out, l.history)
	return out
}

func (l *Ledger) Equity(price decimal.Decimal) decimal.Decimal {
	return l.cash.Add(l.position.Quantity.Mul(price))
}

func (l *Ledger) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	if l.position.Flat() {
		return decimal.Zero
	}
	return price.Sub(l.position.AverageCost).Mul(l.position.Quantity)
}

// ApplyFill 原子地把成交记入账本：任何校验失败都不修改状态。
func (l *Ledger) ApplyFill(fill types.Fill) error {
	if fill.Symbol != l.position.Symbol {
		return fmt.Errorf("%w: ledger %s, fill %s", ErrSymbolMismatch, l.position.Symbol, fill.Symbol)
	}
	if !fill.Quantity.IsPositive() {
		return fmt.Errorf("fill quantity must be positive, got %s", fill.Quantity)
	}
	if !fill.Price.IsPositive() {
		return fmt.Errorf("fill price must be positive, got %s", fill.Price)
	}
	if fill.Commission.IsNegative() {
		return fmt.Errorf("fill commission must be non-negative, got %s", fill.Commission)
	}
	notional := fill.Notional()
	switch fill.Side {
	case types.SideBuy:
		cost := notional.Add(fill.Commission)
		if l.cash.Sub(cost).IsNegative() {
			return fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, cost, l.cash)
		}
		qty := l.position.Quantity.Add(fill.Quantity)
		l.position.AverageCost = l.position.Quantity.Mul(l.position.AverageCost).Add(notional).Div(qty)
		l.position.Quantity = qty
		l.cash = l.cash.Sub(cost)
	case types.SideSell:
		if fill.Quantity.GreaterThan(l.position.Quantity) {
			return fmt.Errorf("%w: sell %s, hold %s", ErrInsufficientPosition, fill.Quantity, l.position.Quantity)
		}
		proceeds := notional.Sub(fill.Commission)
		if l.cash.Add(proceeds).IsNegative() {
			return fmt.Errorf("%w: commission %s exceeds proceeds and cash", ErrInsufficientFunds, fill.Commission)
		}
		l.position.RealizedPnL = l.position.RealizedPnL.Add(fill.Price.Sub(l.position.AverageCost).Mul(fill.Quantity))
		l.position.Quantity = l.position.Quantity.Sub(fill.Quantity)
		if l.position.Quantity.IsZero() {
			l.position.AverageCost = decimal.Zero
		}
		l.cash = l.cash.Add(proceeds)
	default:
		return fmt.Errorf("fill side %q is invalid", fill.Side)
	}
	return nil
}

// MarkToMarket 以 price 重估权益并追加一个点。
// 与上一个点时间和权益都相同时不追加，时间早于上一个点时报错。
func (l *Ledger) MarkToMarket(at time.Time, price decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("mark price must be positive, got %s", price)
	}
	equity := l.Equity(price)
	if n := len(l.history); n > 0 {
		last := l.history[n-1]
		if at.Before(last.Time) {
			return equity, fmt.Errorf("mark time %s is before last equity point %s", at.Format(time.RFC3339), last.Time.Format(time.RFC3339))
		}
		if at.Equal(last.Time) && equity.Equal(last.Equity) {
			return equity, nil
		}
	}
	l.history = append(l.history, EquityPoint{Time: at, Equity: equity})
	return equity, nil
}

// View 是账本在某一价格下的只读快照。
type View struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Cash          decimal.Decimal `json:"cash"`
	Quantity      decimal.Decimal `json:"quantity"`
	AverageCost   decimal.Decimal `json:"average_cost"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Equity        decimal.Decimal `json:"equity"`
	// PositionPct 是持仓市值占权益的百分比（0-100）。
	PositionPct decimal.Decimal `json:"position_pct"`
}

func (l *Ledger) View(price decimal.Decimal) View {
	equity := l.Equity(price)
	pct := decimal.Zero
	if equity.IsPositive() {
		pct = l.position.Quantity.Mul(price).Div(equity).Mul(decimal.NewFromInt(100))
	}
	return View{
		Symbol:        l.position.Symbol,
		Price:         price,
		Cash:          l.cash,
		Quantity:      l.position.Quantity,
		AverageCost:   l.position.AverageCost,
		RealizedPnL:   l.position.RealizedPnL,
		UnrealizedPnL: l.UnrealizedPnL(price),
		Equity:        equity,
		PositionPct:   pct,
	}
}
