// Package execution 提供订单执行客户端：纸面撮合器与远端经纪商适配。
package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"autotrader/internal/types"

	"github.com/shopspring/decimal"
)

// ErrBrokerRejected 表示远端经纪商拒绝了订单。
var ErrBrokerRejected = errors.New("broker rejected order")

// Client 提交订单并返回成交；成功返回时账本已记账。
type Client interface {
	Submit(ctx context.Context, order types.Order, reference decimal.Decimal) (types.Fill, error)
}

type CommissionMode string

const (
	CommissionFlat CommissionMode = "flat"
	CommissionRate CommissionMode = "rate"
)

// CommissionModel 是唯一的手续费参数集：固定金额或按名义价值比例。
type CommissionModel struct {
	Mode  CommissionMode
	Value decimal.Decimal
}

func ParseCommissionMode(raw string) (CommissionMode, error) {
	switch CommissionMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", CommissionFlat:
		return CommissionFlat, nil
	case CommissionRate:
		return CommissionRate, nil
	default:
		return "", fmt.Errorf("unknown commission mode %q", raw)
	}
}

func (m CommissionModel) For(notional decimal.Decimal) decimal.Decimal {
	if m.Mode == CommissionRate {
		return notional.Abs().Mul(m.Value)
	}
	return m.Value
}

// Validate 把空 Mode 视为 flat，与 ParseCommissionMode("") 一致。
func (m CommissionModel) Validate() error {
	if m.Mode != "" && m.Mode != CommissionFlat && m.Mode != CommissionRate {
		return fmt.Errorf("unknown commission mode %q", m.Mode)
	}
	if m.Value.IsNegative() {
		return fmt.Errorf("commission must be non-negative, got %s", m.Value)
	}
	return nil
}

// SlippagePrice 按方向施加不利滑点：买入上浮，卖出下调。
func SlippagePrice(side types.Side, reference, bps decimal.Decimal) decimal.Decimal {
	adj := bps.Div(decimal.NewFromInt(10000)).Mul(decimal.NewFromInt(side.Sign()))
	return reference.Mul(decimal.NewFromInt(1).Add(adj))
}
