package scheduler

import (
	"context"
	"sync"
	"time"

	"autotrader/internal/engine"
	"autotrader/internal/logger"
	"autotrader/internal/metrics"
	"autotrader/internal/pkg/circuit"
)

// Ticker 是被调度的一轮 tick。
type Ticker interface {
	Symbol() string
	Tick(ctx context.Context) engine.TickReport
}

type Status struct {
	Running    bool       `json:"scheduler_running"`
	NextTickAt *time.Time `json:"next_scheduled_time,omitempty"`
	LastTick   *time.Time `json:"last_tick,omitempty"`
	Breaker    string     `json:"breaker"`
}

// Runner 是协作式实盘循环：等待到期 → 跑完一轮 tick → 再等待，tick 之间不会重叠。
type Runner struct {
	ticker  Ticker
	breaker *circuit.Breaker

	nowFn func() time.Time
	after func(time.Duration) <-chan time.Time

	mu       sync.RWMutex
	policy   Policy
	running  bool
	nextAt   time.Time
	lastTick time.Time
}

func NewRunner(policy Policy, ticker Ticker, breaker *circuit.Breaker) *Runner {
	if breaker == nil {
		breaker = circuit.New(ticker.Symbol(), 0, 0)
	}
	return &Runner{
		policy:  policy,
		ticker:  ticker,
		breaker: breaker,
		nowFn:   time.Now,
		after:   time.After,
	}
}

// Run 阻塞直到 ctx 结束。
func (r *Runner) Run(ctx context.Context) error {
	prefix := "Runner[" + r.ticker.Symbol() + "]"
	r.setRunning(true)
	defer r.setRunning(false)
	p := r.Policy()
	logger.Infof("%s: started market_hours_only=%v poll=%s min_interval=%s",
		prefix, p.MarketHoursOnly, p.PollInterval, p.MinDecisionInterval)

	for {
		now := r.nowFn()
		p = r.Policy()
		next := p.NextTickAt(now, r.LastTick())
		if retry := r.breaker.RetryAt(); retry.After(next) {
			next = retry
		}
		r.setNext(next)
		if wait := next.Sub(now); wait > 0 {
			logger.Infof("%s: next tick at %s (in %s)", prefix, next.Format(time.RFC3339), wait.Truncate(time.Second))
		}
		if !r.waitUntil(ctx, next) {
			logger.Infof("%s: ctx done, exit", prefix)
			return ctx.Err()
		}

		now = r.nowFn()
		if !r.Policy().ShouldTick(now, r.LastTick()) || !r.breaker.Allow() {
			continue
		}
		rep := r.ticker.Tick(ctx)
		r.setLastTick(now)
		if rep.Failed() {
			r.breaker.RecordFailure()
			logger.Warnf("%s: tick error %s", prefix, rep)
		} else {
			r.breaker.RecordSuccess()
			logger.Infof("%s: %s", prefix, rep)
		}
	}
}

func (r *Runner) waitUntil(ctx context.Context, target time.Time) bool {
	wait := target.Sub(r.nowFn())
	if wait <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	select {
	case <-ctx.Done():
		return false
	case <-r.after(wait):
		return ctx.Err() == nil
	}
}

func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := Status{Running: r.running, Breaker: r.breaker.State().String()}
	if r.running && !r.nextAt.IsZero() {
		next := r.nextAt
		st.NextTickAt = &next
	}
	if !r.lastTick.IsZero() {
		last := r.lastTick
		st.LastTick = &last
	}
	return st
}

func (r *Runner) Policy() Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.policy
}

// SetPolicy 替换节奏策略，从下一次等待开始生效。
func (r *Runner) SetPolicy(p Policy) {
	r.mu.Lock()
	r.policy = p
	r.mu.Unlock()
}

func (r *Runner) LastTick() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastTick
}

func (r *Runner) setRunning(v bool) {
	r.mu.Lock()
	r.running = v
	r.mu.Unlock()
	metrics.SetSchedulerRunning(v)
}

func (r *Runner) setNext(t time.Time) {
	r.mu.Lock()
	r.nextAt = t
	r.mu.Unlock()
}

func (r *Runner) setLastTick(t time.Time) {
	r.mu.Lock()
	r.lastTick = t
	r.mu.Unlock()
}
