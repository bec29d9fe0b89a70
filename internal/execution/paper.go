package execution

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"autotrader/internal/ledger"
	"autotrader/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaperConfig struct {
	SlippageBps decimal.Decimal
	Commission  CommissionModel
}

func (c PaperConfig) Validate() error {
	if c.SlippageBps.IsNegative() {
		return fmt.Errorf("slippage_bps must be non-negative, got %s", c.SlippageBps)
	}
	return c.Commission.Validate()
}

// PaperBroker 是纸面撮合器：总是按模拟价全量成交，不做部分成交也没有订单簿。
type PaperBroker struct {
	ledger *ledger.Ledger
	cfg    PaperConfig
}

func NewPaperBroker(l *ledger.Ledger, cfg PaperConfig) (*PaperBroker, error) {
	if l == nil {
		return nil, fmt.Errorf("paper broker requires a ledger")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PaperBroker{ledger: l, cfg: cfg}, nil
}

// Quote 返回给定数量的模拟成交价与手续费，不触碰账本。
func (b *PaperBroker) Quote(side types.Side, qty, reference decimal.Decimal) (price, commission decimal.Decimal) {
	price = SlippagePrice(side, reference, b.cfg.SlippageBps)
	return price, b.cfg.Commission.For(price.Mul(qty))
}

// EstimateBuyCost 估算买入 qty 所需现金（含滑点与手续费）。
func (b *PaperBroker) EstimateBuyCost(qty, reference decimal.Decimal) decimal.Decimal {
	price, fee := b.Quote(types.SideBuy, qty, reference)
	return price.Mul(qty).Add(fee)
}

func (b *PaperBroker) Submit(ctx context.Context, order types.Order, reference decimal.Decimal) (types.Fill, error) {
	if err := ctx.Err(); err != nil {
		return types.Fill{}, err
	}
	if err := order.Validate(); err != nil {
		return types.Fill{}, err
	}
	if !reference.IsPositive() {
		return types.Fill{}, fmt.Errorf("reference price must be positive, got %s", reference)
	}
	price, fee := b.Quote(order.Side, order.Quantity, reference)
	switch order.Side {
	case types.SideBuy:
		cost := price.Mul(order.Quantity).Add(fee)
		if cost.GreaterThan(b.ledger.Cash()) {
			return types.Fill{}, fmt.Errorf("%w: need %s, have %s", ledger.ErrInsufficientFunds, cost, b.ledger.Cash())
		}
	case types.SideSell:
		if held := b.ledger.Position().Quantity; order.Quantity.GreaterThan(held) {
			return types.Fill{}, fmt.Errorf("%w: sell %s, hold %s", ledger.ErrInsufficientPosition, order.Quantity, held)
		}
	}
	fill := types.Fill{
		OrderRef:   order.ID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Price:      price,
		Quantity:   order.Quantity,
		Commission: fee,
		Timestamp:  order.CreatedAt,
	}
	if err := b.ledger.ApplyFill(fill); err != nil {
		return types.Fill{}, err
	}
	return fill, nil
}

// IDGenerator 生成订单号。
type IDGenerator func() string

func UUIDGenerator() IDGenerator {
	return uuid.NewString
}

// SequenceGenerator 生成可复现的订单号，回测使用。
func SequenceGenerator(prefix string) IDGenerator {
	var n atomic.Int64
	return func() string {
		return prefix + strconv.FormatInt(n.Add(1), 10)
	}
}
