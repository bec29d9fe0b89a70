package config

import (
	"strings"
	"time"

	"autotrader/internal/execution"
	"autotrader/internal/gateway/binance"
	"autotrader/internal/gateway/llm"
	"autotrader/internal/logger"
	"autotrader/internal/risk"
	"autotrader/internal/scheduler"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

func (a AppConfig) FileOptions() logger.FileOptions {
	return logger.FileOptions{
		Path:       a.LogPath,
		MaxSizeMB:  a.MaxSizeMB,
		MaxBackups: a.MaxBackups,
		MaxAgeDays: a.MaxAgeDays,
	}
}

func (t TradingConfig) Cash() decimal.Decimal {
	return decimal.NewFromFloat(t.InitialCash)
}

// Gate 转换为风控闸门参数。
func (r RiskConfig) Gate() risk.Config {
	return risk.Config{
		MinConfidence:         r.MinConfidence,
		MinDecisionInterval:   time.Duration(r.MinDecisionIntervalMinutes) * time.Minute,
		RiskPerTrade:          decimal.NewFromFloat(r.RiskPerTrade),
		MaxPositionPct:        decimal.NewFromFloat(r.MaxPositionPct),
		VolatilityThreshold:   r.VolatilityThreshold,
		VolatilityPenalty:     r.VolatilityPenalty,
		HighRiskMinConfidence: r.HighRiskMinConfidence,
		RSIOverbought:         r.RSIOverbought,
		RSIOversold:           r.RSIOversold,
		QuantityStep:          decimal.NewFromFloat(r.QuantityStep),
	}
}

func (e ExecutionConfig) Paper() (execution.PaperConfig, error) {
	mode, err := e.commissionMode()
	if err != nil {
		return execution.PaperConfig{}, err
	}
	cfg := execution.PaperConfig{
		SlippageBps: decimal.NewFromFloat(e.SlippageBps),
		Commission:  execution.CommissionModel{Mode: mode, Value: decimal.NewFromFloat(e.Commission)},
	}
	return cfg, cfg.Validate()
}

// Policy 返回实盘节奏策略；最小决策间隔来自 risk 段。
func (s SchedulerConfig) Policy(minDecision time.Duration) (scheduler.Policy, error) {
	hours, err := scheduler.NewMarketHours(s.Timezone, s.Open, s.Close)
	if err != nil {
		return scheduler.Policy{}, err
	}
	return scheduler.Policy{
		MarketHoursOnly:     s.MarketHoursOnly,
		PollInterval:        time.Duration(s.PollIntervalMinutes) * time.Minute,
		MinDecisionInterval: minDecision,
		Hours:               hours,
	}, nil
}

func (s SchedulerConfig) BreakerCooldown() time.Duration {
	return time.Duration(s.BreakerCooldownSeconds) * time.Second
}

func (m MarketConfig) Binance(interval string) binance.Config {
	return binance.Config{
		RESTBaseURL: strings.TrimSpace(m.BaseURL),
		HTTPTimeout: time.Duration(m.TimeoutSeconds) * time.Second,
		Interval:    interval,
	}
}

func (l LLMConfig) Oracle() llm.Config {
	return llm.Config{
		APIKey:      l.APIKey,
		BaseURL:     l.BaseURL,
		Model:       l.Model,
		MaxTokens:   l.MaxTokens,
		Temperature: l.Temperature,
		Timeout:     time.Duration(l.TimeoutSeconds) * time.Second,
	}
}

func (t TelegramConfig) ChatIDInt() int64 {
	return cast.ToInt64(strings.TrimSpace(t.ChatID))
}
