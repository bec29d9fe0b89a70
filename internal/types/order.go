package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side 订单方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Sign 返回滑点方向：买入 +1，卖出 -1。
func (s Side) Sign() int64 {
	if s == SideSell {
		return -1
	}
	return 1
}

func ParseSide(raw string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(raw))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("unknown side %q", raw)
	}
}

type OrderType string

// OrderTypeMarket 是唯一支持的订单类型。
const OrderTypeMarket OrderType = "MARKET"

// Order 由风控闸门按仓位规则生成。
type Order struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	Type      OrderType       `json:"order_type"`
	CreatedAt time.Time       `json:"created_at"`
}

func (o Order) Validate() error {
	if strings.TrimSpace(o.Symbol) == "" {
		return fmt.Errorf("order symbol is required")
	}
	if !o.Side.Valid() {
		return fmt.Errorf("order side %q is invalid", o.Side)
	}
	if o.Type != OrderTypeMarket {
		return fmt.Errorf("order type %q is not supported", o.Type)
	}
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("order quantity must be positive, got %s", o.Quantity)
	}
	return nil
}

// Fill 是一次成交回报。
type Fill struct {
	OrderRef   string          `json:"order_ref"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Price      decimal.Decimal `json:"fill_price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Commission decimal.Decimal `json:"commission"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (f Fill) Notional() decimal.Decimal {
	return f.Price.Mul(f.Quantity)
}

func (f Fill) String() string {
	return fmt.Sprintf("%s %s %s@%s fee=%s", f.Side, f.Symbol, f.Quantity, f.Price, f.Commission)
}
