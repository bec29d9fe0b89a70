// Package engine 编排单轮 tick：取行情 → 决策 → 风控 → 执行 → 记账。
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"autotrader/internal/decision"
	"autotrader/internal/execution"
	"autotrader/internal/gateway/notifier"
	"autotrader/internal/indicator"
	"autotrader/internal/ledger"
	"autotrader/internal/logger"
	"autotrader/internal/market"
	"autotrader/internal/metrics"
	"autotrader/internal/risk"
	"autotrader/internal/types"

	"github.com/shopspring/decimal"
)

// ErrStaleSnapshot 表示行情时间没有晚于上一次决策。
var ErrStaleSnapshot = errors.New("stale market snapshot")

type Params struct {
	Mode       string
	Symbol     string
	Lookback   int
	Provider   market.Provider
	Indicators *indicator.Library
	Strategy   decision.Strategy
	Gate       *risk.Gate
	Risk       risk.Config
	Ledger     *ledger.Ledger
	Execution  execution.Client
	History    *decision.History
	NewOrderID execution.IDGenerator
	Clock      func() time.Time
	Notifier   notifier.TextNotifier
}

// Engine 独占账本与决策历史；同一时刻最多执行一轮 tick。
type Engine struct {
	mode     string
	symbol   string
	lookback int
	provider market.Provider
	lib      *indicator.Library
	strategy decision.Strategy
	gate     *risk.Gate
	ledger   *ledger.Ledger
	exec     execution.Client
	history  *decision.History
	newID    execution.IDGenerator
	clock    func() time.Time
	notifier notifier.TextNotifier

	tickMu sync.Mutex

	mu        sync.RWMutex
	riskCfg   risk.Config
	state     State
	status    Status
	analysis  *Analysis
	portfolio ledger.View
	records   []decision.Record
}

func New(p Params) (*Engine, error) {
	switch {
	case strings.TrimSpace(p.Symbol) == "":
		return nil, fmt.Errorf("engine symbol is required")
	case p.Provider == nil:
		return nil, fmt.Errorf("engine requires a market provider")
	case p.Strategy == nil:
		return nil, fmt.Errorf("engine requires a strategy")
	case p.Ledger == nil:
		return nil, fmt.Errorf("engine requires a ledger")
	case p.Execution == nil:
		return nil, fmt.Errorf("engine requires an execution client")
	case p.Ledger.Symbol() != p.Symbol:
		return nil, fmt.Errorf("ledger symbol %s does not match engine symbol %s", p.Ledger.Symbol(), p.Symbol)
	}
	if err := p.Risk.Validate(); err != nil {
		return nil, fmt.Errorf("risk config: %w", err)
	}
	if p.Mode == "" {
		p.Mode = "live"
	}
	if p.Lookback <= 0 {
		p.Lookback = 120
	}
	if p.Indicators == nil {
		p.Indicators = indicator.New(indicator.DefaultSettings())
	}
	if p.Gate == nil {
		p.Gate = risk.NewGate(nil)
	}
	if p.History == nil {
		p.History = decision.NewHistory(500)
	}
	if p.NewOrderID == nil {
		p.NewOrderID = execution.UUIDGenerator()
	}
	if p.Clock == nil {
		p.Clock = func() time.Time { return time.Now().UTC() }
	}
	if p.Notifier == nil {
		p.Notifier = notifier.Nop{}
	}
	return &Engine{
		mode:     p.Mode,
		symbol:   p.Symbol,
		lookback: p.Lookback,
		provider: p.Provider,
		lib:      p.Indicators,
		strategy: p.Strategy,
		gate:     p.Gate,
		ledger:   p.Ledger,
		exec:     p.Execution,
		history:  p.History,
		newID:    p.NewOrderID,
		clock:    p.Clock,
		notifier: p.Notifier,
		riskCfg:  p.Risk,
		state:    StateIdle,
		status:   Status{Symbol: p.Symbol, State: StateIdle},
		records:  p.History.Records(),
		portfolio: ledger.View{
			Symbol: p.Symbol,
			Cash:   p.Ledger.Cash(),
			Equity: p.Ledger.Cash(),
		},
	}, nil
}

func (e *Engine) Symbol() string { return e.symbol }

// SetRiskConfig 在下一轮 tick 生效。
func (e *Engine) SetRiskConfig(cfg risk.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.riskCfg = cfg
	e.mu.Unlock()
	logger.Infof("engine %s: risk config updated min_confidence=%.3f interval=%s", e.symbol, cfg.MinConfidence, cfg.MinDecisionInterval)
	return nil
}

func (e *Engine) RiskConfig() risk.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.riskCfg
}

// tickRun 保存一轮 tick 的中间结果。
type tickRun struct {
	rep    TickReport
	snap   market.Snapshot
	report indicator.Report
	cond   indicator.Conditions
	view   ledger.View
}

// Tick 执行一轮完整的状态机。所有错误都收敛在返回的报告里。
func (e *Engine) Tick(ctx context.Context) TickReport {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	run := &tickRun{rep: TickReport{Symbol: e.symbol, Started: e.clock()}}
	rep := e.tick(ctx, run)
	e.finish(rep)
	return rep
}

func (e *Engine) tick(ctx context.Context, run *tickRun) TickReport {
	e.setState(StateCollecting)
	if err := e.collect(ctx, run); err != nil {
		return e.fail(run, StateCollecting, err)
	}

	e.setState(StateDeciding)
	d, oracleErr, err := e.decide(ctx, run)
	if err != nil {
		return e.fail(run, StateDeciding, err)
	}
	run.rep.Decision = &d
	run.rep.Err = oracleErr

	e.setState(StateGating)
	verdict := e.gate.Evaluate(d, run.view, run.cond, e.history, e.RiskConfig())
	run.rep.Verdict = &verdict
	e.storeAnalysis(run, d, &verdict, oracleErr)
	if !verdict.Accepted {
		e.record(d, decision.OutcomeRejected, string(verdict.Reason), nil)
		return e.settle(run)
	}

	e.setState(StateExecuting)
	order := *verdict.Order
	order.ID = e.newID()
	if err := ctx.Err(); err != nil {
		e.record(d, decision.OutcomeFailed, err.Error(), &order)
		return e.fail(run, StateExecuting, err)
	}
	fill, err := e.exec.Submit(ctx, order, run.rep.Price)
	if err != nil {
		e.record(d, decision.OutcomeFailed, err.Error(), &order)
		return e.fail(run, StateExecuting, err)
	}
	e.record(d, decision.OutcomeAccepted, "", &order)
	run.rep.Fill = &fill
	metrics.ObserveFill(e.mode, string(fill.Side))
	logger.Infof("engine %s: filled %s", e.symbol, fill)
	return e.settle(run)
}

func (e *Engine) collect(ctx context.Context, run *tickRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap, err := e.provider.Fetch(ctx, e.symbol, e.lookback)
	if err != nil {
		return market.Unavailable(e.symbol, err)
	}
	last, ok := snap.Last()
	if !ok {
		return market.Unavailable(e.symbol, fmt.Errorf("empty snapshot"))
	}
	if last.Close <= 0 {
		return market.Unavailable(e.symbol, fmt.Errorf("non-positive close %v", last.Close))
	}
	if snap.AsOf.IsZero() {
		snap.AsOf = e.clock()
	}
	if prev, ok := e.history.Last(); ok && !snap.AsOf.After(prev.Decision.Timestamp) {
		return fmt.Errorf("%w: %s is not after last decision %s", ErrStaleSnapshot,
			snap.AsOf.Format(time.RFC3339), prev.Decision.Timestamp.Format(time.RFC3339))
	}
	run.snap = snap
	run.rep.AsOf = snap.AsOf
	run.rep.Price = decimal.NewFromFloat(last.Close)
	run.report = e.lib.Compute(snap.Candles)
	run.cond = e.lib.Conditions(run.report)
	run.view = e.ledger.View(run.rep.Price)
	return nil
}

// decide 返回决策；oracle 不可用时返回观望决策与 oracle 错误，不使本轮失败。
func (e *Engine) decide(ctx context.Context, run *tickRun) (decision.Decision, error, error) {
	in := decision.Input{
		Snapshot:   run.snap,
		Report:     run.report,
		Conditions: run.cond,
		Portfolio:  run.view,
		AsOf:       run.snap.AsOf,
	}
	d, err := e.strategy.Generate(ctx, in)
	var oracleErr error
	if err != nil {
		if !errors.Is(err, decision.ErrOracleUnavailable) {
			return decision.Decision{}, nil, err
		}
		oracleErr = err
		d = decision.Hold(run.snap.AsOf, e.strategy.Name(), "oracle unavailable")
	}
	if err := decision.Validate(d); err != nil {
		return decision.Decision{}, nil, fmt.Errorf("strategy %s: invalid decision: %w", e.strategy.Name(), err)
	}
	if prev, ok := e.history.Last(); ok && !d.Timestamp.After(prev.Decision.Timestamp) {
		return decision.Decision{}, nil, fmt.Errorf("%w: decision at %s", decision.ErrOutOfOrder, d.Timestamp.Format(time.RFC3339))
	}
	return d, oracleErr, nil
}

// record 之前已校验时间顺序，这里的追加不会失败。
func (e *Engine) record(d decision.Decision, outcome decision.Outcome, reason string, order *types.Order) {
	if err := e.history.Append(decision.Record{Decision: d, Outcome: outcome, Reason: reason, Order: order}); err != nil {
		logger.Errorf("engine %s: record decision: %v", e.symbol, err)
	}
	metrics.ObserveDecision(e.mode, string(d.Action), string(outcome), rejectionReason(outcome, reason))
	records := e.history.Records()
	e.mu.Lock()
	e.records = records
	e.status.LastDecision = &d
	ts := d.Timestamp
	e.status.LastDecisionTime = &ts
	e.mu.Unlock()
}

func rejectionReason(outcome decision.Outcome, reason string) string {
	if outcome == decision.OutcomeRejected {
		return reason
	}
	return ""
}

func (e *Engine) settle(run *tickRun) TickReport {
	e.setState(StateSettled)
	equity, err := e.ledger.MarkToMarket(run.rep.AsOf, run.rep.Price)
	if err != nil {
		logger.Warnf("engine %s: mark to market: %v", e.symbol, err)
	}
	run.rep.Equity = equity
	run.rep.State = StateSettled
	if run.rep.Err != nil {
		run.rep.ErrorText = run.rep.Err.Error()
	}
	if run.rep.Fill != nil {
		e.notify(run.rep)
	}
	return run.rep
}

func (e *Engine) fail(run *tickRun, at State, err error) TickReport {
	run.rep.State = StateErrored
	run.rep.FailedAt = at
	run.rep.Err = err
	run.rep.ErrorText = err.Error()
	logger.Errorf("engine %s: tick failed at %s: %v", e.symbol, at, err)
	if e.mode == "live" {
		if nerr := e.notifier.SendText(notifier.ErrorMessage(e.mode, e.symbol, string(at), err)); nerr != nil {
			logger.Warnf("engine %s: notify error: %v", e.symbol, nerr)
		}
	}
	return run.rep
}

func (e *Engine) finish(rep TickReport) {
	metrics.ObserveTick(e.mode, string(rep.State), e.clock().Sub(rep.Started))
	price := rep.Price
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateIdle
	e.status.LastResult = rep.State
	e.status.Ticks++
	started := rep.Started
	e.status.LastTick = &started
	e.status.LastError = rep.ErrorText
	if rep.Failed() {
		e.status.Errors++
	}
	if rep.Fill != nil {
		e.status.Fills++
	}
	if price.IsPositive() {
		e.portfolio = e.ledger.View(price)
		metrics.SetPortfolio(e.mode, e.symbol, e.portfolio.Equity.InexactFloat64(), e.portfolio.Cash.InexactFloat64())
	}
}

func (e *Engine) notify(rep TickReport) {
	f := rep.Fill
	rationale := ""
	if rep.Decision != nil {
		rationale = rep.Decision.Rationale
	}
	msg := notifier.FillMessage(e.mode, e.symbol, string(f.Side), f.Quantity.String(), f.Price.String(),
		f.Commission.String(), rep.Equity.StringFixed(2), rationale)
	if err := e.notifier.SendText(msg); err != nil {
		logger.Warnf("engine %s: notify fill: %v", e.symbol, err)
	}
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) storeAnalysis(run *tickRun, d decision.Decision, v *risk.Verdict, oracleErr error) {
	a := Analysis{
		Symbol:     e.symbol,
		AsOf:       run.snap.AsOf,
		Price:      run.rep.Price.InexactFloat64(),
		Bars:       len(run.snap.Candles),
		Indicators: run.report,
		Conditions: run.cond,
		Decision:   d,
		Verdict:    v,
	}
	if oracleErr != nil {
		a.Error = oracleErr.Error()
	}
	e.mu.Lock()
	e.analysis = &a
	e.mu.Unlock()
}

// Analyze 只执行取数与决策，并给出不记录的风控预判；不会下单。
func (e *Engine) Analyze(ctx context.Context) (Analysis, error) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	run := &tickRun{rep: TickReport{Symbol: e.symbol, Started: e.clock()}}
	if err := e.collect(ctx, run); err != nil {
		return Analysis{}, err
	}
	d, oracleErr, err := e.decide(ctx, run)
	if err != nil {
		return Analysis{}, err
	}
	verdict := e.gate.Evaluate(d, run.view, run.cond, e.history, e.RiskConfig())
	e.storeAnalysis(run, d, &verdict, oracleErr)
	a, _ := e.LastAnalysis()
	return a, nil
}

func (e *Engine) LastAnalysis() (Analysis, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.analysis == nil {
		return Analysis{}, false
	}
	return *e.analysis, true
}

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := e.status
	st.State = e.state
	return st
}

// Portfolio 返回最近一次 tick 结束时的账本快照。
func (e *Engine) Portfolio() ledger.View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.portfolio
}

// History 返回最近一次记录后的决策历史副本，不等待进行中的 tick。
func (e *Engine) History() []decision.Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]decision.Record, len(e.records))
	copy(out, e.records)
	return out
}
