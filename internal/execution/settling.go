package execution

import (
	"context"
	"errors"
	"fmt"

	"autotrader/internal/ledger"
	"autotrader/internal/types"

	"github.com/shopspring/decimal"
)

// Broker 是远端经纪商的最小提交接口，只负责下单，不记账。
type Broker interface {
	PlaceOrder(ctx context.Context, order types.Order) (types.Fill, error)
}

// Settling 把远端成交校验后记入账本，保证每笔成交只记一次。
type Settling struct {
	broker Broker
	ledger *ledger.Ledger
}

func NewSettling(b Broker, l *ledger.Ledger) *Settling {
	return &Settling{broker: b, ledger: l}
}

func (s *Settling) Submit(ctx context.Context, order types.Order, reference decimal.Decimal) (types.Fill, error) {
	if err := order.Validate(); err != nil {
		return types.Fill{}, err
	}
	fill, err := s.broker.PlaceOrder(ctx, order)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) || errors.Is(err, ledger.ErrInsufficientPosition) || errors.Is(err, ErrBrokerRejected) {
			return types.Fill{}, err
		}
		return types.Fill{}, fmt.Errorf("%w: %v", ErrBrokerRejected, err)
	}
	if err := checkFill(order, fill, reference); err != nil {
		return types.Fill{}, fmt.Errorf("%w: %v", ErrBrokerRejected, err)
	}
	if err := s.ledger.ApplyFill(fill); err != nil {
		return types.Fill{}, err
	}
	return fill, nil
}

// checkFill 拦截错配的回报；成交价须相对参考价不利（买不低于、卖不高于）。
func checkFill(order types.Order, fill types.Fill, reference decimal.Decimal) error {
	if fill.Symbol != order.Symbol || fill.Side != order.Side {
		return fmt.Errorf("fill %s does not match order %s %s", fill, order.Side, order.Symbol)
	}
	if !fill.Quantity.IsPositive() || fill.Quantity.GreaterThan(order.Quantity) {
		return fmt.Errorf("fill quantity %s outside (0, %s]", fill.Quantity, order.Quantity)
	}
	if !reference.IsPositive() {
		return nil
	}
	if order.Side == types.SideBuy && fill.Price.LessThan(reference) {
		return fmt.Errorf("buy filled at %s below reference %s", fill.Price, reference)
	}
	if order.Side == types.SideSell && fill.Price.GreaterThan(reference) {
		return fmt.Errorf("sell filled at %s above reference %s", fill.Price, reference)
	}
	return nil
}
