package engine

import (
	"fmt"
	"strings"
	"time"

	"autotrader/internal/decision"
	"autotrader/internal/indicator"
	"autotrader/internal/risk"
	"autotrader/internal/types"

	"github.com/shopspring/decimal"
)

// TickReport 描述一轮 tick 的结果。Errored 的 tick 不会改动账本。
type TickReport struct {
	Symbol    string             `json:"symbol"`
	State     State              `json:"state"`
	FailedAt  State              `json:"failed_at,omitempty"`
	Started   time.Time          `json:"started"`
	AsOf      time.Time          `json:"as_of,omitempty"`
	Price     decimal.Decimal    `json:"price"`
	Decision  *decision.Decision `json:"decision,omitempty"`
	Verdict   *risk.Verdict      `json:"verdict,omitempty"`
	Fill      *types.Fill        `json:"fill,omitempty"`
	Equity    decimal.Decimal    `json:"equity"`
	Err       error              `json:"-"`
	ErrorText string             `json:"error,omitempty"`
}

func (r TickReport) Failed() bool {
	return r.State == StateErrored
}

func (r TickReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", r.Symbol, r.State)
	if r.FailedAt != "" {
		fmt.Fprintf(&b, "@%s", r.FailedAt)
	}
	if !r.AsOf.IsZero() {
		fmt.Fprintf(&b, " as_of=%s price=%s", r.AsOf.Format(time.RFC3339), r.Price)
	}
	if r.Decision != nil {
		fmt.Fprintf(&b, " decision=%s", r.Decision)
	}
	if r.Verdict != nil {
		if r.Verdict.Accepted {
			b.WriteString(" accepted")
		} else {
			fmt.Fprintf(&b, " rejected=%s", r.Verdict.Reason)
		}
	}
	if r.Fill != nil {
		fmt.Fprintf(&b, " fill=[%s]", r.Fill)
	}
	if r.State == StateSettled {
		fmt.Fprintf(&b, " equity=%s", r.Equity.StringFixed(2))
	}
	if r.Err != nil {
		fmt.Fprintf(&b, " err=%v", r.Err)
	}
	return b.String()
}

// Analysis 是最近一次决策所依据的行情与指标。
type Analysis struct {
	Symbol     string               `json:"symbol"`
	AsOf       time.Time            `json:"as_of"`
	Price      float64              `json:"price"`
	Bars       int                  `json:"bars"`
	Indicators indicator.Report     `json:"indicators"`
	Conditions indicator.Conditions `json:"conditions"`
	Decision   decision.Decision    `json:"decision"`
	Verdict    *risk.Verdict        `json:"verdict,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// Status 是对外暴露的运行状态快照。
type Status struct {
	Symbol           string             `json:"symbol"`
	State            State              `json:"state"`
	LastDecision     *decision.Decision `json:"last_decision,omitempty"`
	LastDecisionTime *time.Time         `json:"last_decision_time,omitempty"`
	LastTick         *time.Time         `json:"last_tick,omitempty"`
	LastResult       State              `json:"last_result,omitempty"`
	LastError        string             `json:"last_error,omitempty"`
	Ticks            int                `json:"ticks"`
	Errors           int                `json:"errors"`
	Fills            int                `json:"fills"`
}
