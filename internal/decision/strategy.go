package decision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"autotrader/internal/indicator"
	"autotrader/internal/ledger"
	"autotrader/internal/market"
)

// Input 是策略每轮可见的全部信息。
type Input struct {
	Snapshot   market.Snapshot
	Report     indicator.Report
	Conditions indicator.Conditions
	Portfolio  ledger.View
	AsOf       time.Time
}

// Strategy 由配置选择：纯规则实现或委托给 Oracle。
type Strategy interface {
	Name() string
	Generate(ctx context.Context, in Input) (Decision, error)
}

const (
	KindMACross = "ma_cross"
	KindOracle  = "llm"
)

type FactoryDeps struct {
	ShortWindow int
	LongWindow  int
	Oracle      Oracle
	// MinHistory 是调用 Oracle 前至少需要的 K 线数量。
	MinHistory int
}

func NewStrategy(kind string, deps FactoryDeps) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindMACross:
		return NewMACross(deps.ShortWindow, deps.LongWindow)
	case KindOracle:
		if deps.Oracle == nil {
			return nil, fmt.Errorf("strategy %s requires an oracle", KindOracle)
		}
		return NewOracleStrategy(deps.Oracle, deps.MinHistory), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", kind)
	}
}
