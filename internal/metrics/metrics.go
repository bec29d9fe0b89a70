// Package metrics 暴露引擎的 Prometheus 指标，init 中注册到默认 registry，
// 由 HTTP 服务的 /metrics 路由输出。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_ticks_total",
			Help: "Engine ticks by final state",
		},
		[]string{"mode", "state"},
	)

	tickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autotrader_tick_duration_seconds",
			Help:    "Wall time of one engine tick",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"mode"},
	)

	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_decisions_total",
			Help: "Decisions by action and outcome",
		},
		[]string{"mode", "action", "outcome"},
	)

	// rejection reasons are the risk gate codes (LowConfidence, TooSoon, ...).
	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_rejections_total",
			Help: "Risk gate rejections by reason",
		},
		[]string{"mode", "reason"},
	)

	fillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotrader_fills_total",
			Help: "Fills applied to the ledger",
		},
		[]string{"mode", "side"},
	)

	equityGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autotrader_equity",
			Help: "Marked-to-market equity",
		},
		[]string{"mode", "symbol"},
	)

	cashGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autotrader_cash",
			Help: "Ledger cash",
		},
		[]string{"mode", "symbol"},
	)

	schedulerRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autotrader_scheduler_running",
			Help: "1 while the live loop is running",
		},
	)
)

func init() {
	prometheus.MustRegister(ticksTotal, tickDuration, decisionsTotal, rejectionsTotal, fillsTotal, equityGauge, cashGauge, schedulerRunning)
}

func ObserveTick(mode, state string, elapsed time.Duration) {
	ticksTotal.WithLabelValues(mode, state).Inc()
	tickDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func ObserveDecision(mode, action, outcome, reason string) {
	decisionsTotal.WithLabelValues(mode, action, outcome).Inc()
	if reason != "" {
		rejectionsTotal.WithLabelValues(mode, reason).Inc()
	}
}

func ObserveFill(mode, side string) {
	fillsTotal.WithLabelValues(mode, side).Inc()
}

func SetPortfolio(mode, symbol string, equity, cash float64) {
	equityGauge.WithLabelValues(mode, symbol).Set(equity)
	cashGauge.WithLabelValues(mode, symbol).Set(cash)
}

func SetSchedulerRunning(running bool) {
	if running {
		schedulerRunning.Set(1)
		return
	}
	schedulerRunning.Set(0)
}
