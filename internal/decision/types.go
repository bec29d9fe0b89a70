// Package decision 定义交易决策、决策历史与产生决策的策略。
package decision

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

func ParseAction(raw string) (Action, error) {
	switch Action(strings.ToUpper(strings.TrimSpace(raw))) {
	case ActionBuy:
		return ActionBuy, nil
	case ActionSell:
		return ActionSell, nil
	case ActionHold:
		return ActionHold, nil
	default:
		return "", fmt.Errorf("非法 action: %s", raw)
	}
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ParseRiskLevel 空值视为 MEDIUM。
func ParseRiskLevel(raw string) (RiskLevel, error) {
	switch RiskLevel(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", RiskMedium:
		return RiskMedium, nil
	case RiskLow:
		return RiskLow, nil
	case RiskHigh:
		return RiskHigh, nil
	default:
		return "", fmt.Errorf("非法 risk_level: %s", raw)
	}
}

// Decision 每轮由策略新生成，之后只读。
type Decision struct {
	Action      Action    `json:"action"`
	Confidence  float64   `json:"confidence"`
	Rationale   string    `json:"rationale,omitempty"`
	RiskLevel   RiskLevel `json:"risk_level"`
	PriceTarget *float64  `json:"price_target,omitempty"`
	StopLoss    *float64  `json:"stop_loss,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	// Source 标记产生决策的策略。
	Source string `json:"source,omitempty"`
}

// Hold 返回零置信度的观望决策。
func Hold(at time.Time, source, rationale string) Decision {
	return Decision{
		Action:     ActionHold,
		Confidence: 0,
		Rationale:  rationale,
		RiskLevel:  RiskMedium,
		Timestamp:  at,
		Source:     source,
	}
}

func Validate(d Decision) error {
	if _, err := ParseAction(string(d.Action)); err != nil {
		return err
	}
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence 范围0-1, got %v", d.Confidence)
	}
	if _, err := ParseRiskLevel(string(d.RiskLevel)); err != nil {
		return err
	}
	if d.PriceTarget != nil && *d.PriceTarget <= 0 {
		return fmt.Errorf("price_target 必须大于0")
	}
	if d.StopLoss != nil && *d.StopLoss <= 0 {
		return fmt.Errorf("stop_loss 必须大于0")
	}
	if d.Timestamp.IsZero() {
		return fmt.Errorf("decision timestamp is required")
	}
	return nil
}

func (d Decision) String() string {
	return fmt.Sprintf("%s conf=%.3f risk=%s", d.Action, d.Confidence, d.RiskLevel)
}
