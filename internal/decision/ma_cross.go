package decision

import (
	"context"
	"fmt"
	"math"

	"autotrader/internal/indicator"
)

// MACross 是均线交叉规则：空仓时金叉买入，持仓时死叉卖出。
type MACross struct {
	short int
	long  int
}

func NewMACross(short, long int) (*MACross, error) {
	if short <= 0 || long <= 0 || short >= long {
		return nil, fmt.Errorf("ma cross needs 0 < short(%d) < long(%d)", short, long)
	}
	return &MACross{short: short, long: long}, nil
}

func (s *MACross) Name() string { return KindMACross }

func (s *MACross) Generate(ctx context.Context, in Input) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	closes := in.Snapshot.Candles.Closes()
	if len(closes) < s.long+1 {
		return Hold(in.AsOf, s.Name(), fmt.Sprintf("insufficient history: %d/%d bars", len(closes), s.long+1)), nil
	}
	shortSMA := indicator.SMA(closes, s.short)
	longSMA := indicator.SMA(closes, s.long)
	n := len(closes)
	prevS, prevL := shortSMA[n-2], longSMA[n-2]
	curS, curL := shortSMA[n-1], longSMA[n-1]
	if curL == 0 {
		return Hold(in.AsOf, s.Name(), "long average is zero"), nil
	}
	conf := math.Min(1, math.Abs(curS-curL)/curL)
	holding := in.Portfolio.Quantity.IsPositive()

	switch {
	case prevS <= prevL && curS > curL && !holding:
		return s.decision(ActionBuy, conf, in, fmt.Sprintf("SMA%d crossed above SMA%d (%.4f > %.4f)", s.short, s.long, curS, curL)), nil
	case prevS >= prevL && curS < curL && holding:
		return s.decision(ActionSell, conf, in, fmt.Sprintf("SMA%d crossed below SMA%d (%.4f < %.4f)", s.short, s.long, curS, curL)), nil
	default:
		return Hold(in.AsOf, s.Name(), fmt.Sprintf("no cross: SMA%d=%.4f SMA%d=%.4f", s.short, curS, s.long, curL)), nil
	}
}

func (s *MACross) decision(action Action, conf float64, in Input, why string) Decision {
	return Decision{
		Action:     action,
		Confidence: conf,
		Rationale:  why,
		RiskLevel:  RiskMedium,
		Timestamp:  in.AsOf,
		Source:     s.Name(),
	}
}
