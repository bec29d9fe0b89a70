package app

import (
	"fmt"
	"strings"
	"time"

	brcfg "autotrader/internal/config"
	"autotrader/internal/pkg/symbol"
	"autotrader/internal/scheduler"
)

type StartupSummary struct {
	Trading   TradingSummary
	Risk      RiskSummary
	Scheduler SchedulerSummary
	HTTPAddr  string
}

type TradingSummary struct {
	Symbol   string
	Strategy string
	Interval string
	Cash     string
	Source   string
}

type RiskSummary struct {
	MinConfidence  float64
	MinInterval    string
	RiskPerTrade   float64
	MaxPositionPct float64
	SlippageBps    float64
	Commission     string
}

type SchedulerSummary struct {
	MarketHoursOnly bool
	Poll            string
	Hours           string
	Breaker         string
}

func newStartupSummary(cfg *brcfg.Config, strategy string, policy scheduler.Policy) *StartupSummary {
	hours := policy.Hours
	return &StartupSummary{
		Trading: TradingSummary{
			Symbol:   symbol.Parse(cfg.Trading.Symbol).Pair(),
			Strategy: strategy,
			Interval: cfg.Trading.Interval,
			Cash:     cfg.Trading.Cash().StringFixed(2),
			Source:   cfg.Market.Source,
		},
		Risk: RiskSummary{
			MinConfidence:  cfg.Risk.MinConfidence,
			MinInterval:    policy.MinDecisionInterval.String(),
			RiskPerTrade:   cfg.Risk.RiskPerTrade,
			MaxPositionPct: cfg.Risk.MaxPositionPct,
			SlippageBps:    cfg.Execution.SlippageBps,
			Commission:     fmt.Sprintf("%s %g", cfg.Execution.CommissionMode, cfg.Execution.Commission),
		},
		Scheduler: SchedulerSummary{
			MarketHoursOnly: policy.MarketHoursOnly,
			Poll:            policy.PollInterval.String(),
			Hours:           fmt.Sprintf("%s %s-%s", hours.Location, clock(hours.Open), clock(hours.Close)),
			Breaker:         fmt.Sprintf("%d failures / %s", cfg.Scheduler.BreakerThreshold, cfg.Scheduler.BreakerCooldown()),
		},
		HTTPAddr: cfg.App.HTTPAddr,
	}
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 64))
	fmt.Printf("%*s\n", 32+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 64))

	fmt.Println("[交易 (TRADING)]")
	fmt.Printf("  标的: %s  策略: %s  周期: %s\n", s.Trading.Symbol, s.Trading.Strategy, s.Trading.Interval)
	fmt.Printf("  初始资金: %s  行情源: %s\n", s.Trading.Cash, orDash(s.Trading.Source))
	fmt.Println()

	fmt.Println("[风控 (RISK)]")
	fmt.Printf("  最低置信度: %.4f  最小决策间隔: %s\n", s.Risk.MinConfidence, s.Risk.MinInterval)
	fmt.Printf("  单笔风险: %.2f%%  最大仓位: %.2f%%\n", s.Risk.RiskPerTrade*100, s.Risk.MaxPositionPct*100)
	fmt.Printf("  滑点: %gbps  手续费: %s\n", s.Risk.SlippageBps, s.Risk.Commission)
	fmt.Println()

	fmt.Println("[调度 (SCHEDULER)]")
	fmt.Printf("  仅交易时段: %v  轮询: %s\n", s.Scheduler.MarketHoursOnly, s.Scheduler.Poll)
	fmt.Printf("  交易时段: %s\n", s.Scheduler.Hours)
	fmt.Printf("  熔断: %s\n", s.Scheduler.Breaker)
	fmt.Printf("  HTTP: %s\n", orDash(s.HTTPAddr))
	fmt.Println(strings.Repeat("=", 64))
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
