package config

import (
	"strings"

	"autotrader/internal/decision"
	"autotrader/internal/pkg/symbol"
)

// 默认值常量
const (
	defaultLogLevel          = "info"
	defaultHTTPAddr          = ":9991"
	defaultLogMaxSizeMB      = 50
	defaultLogMaxBackups     = 5
	defaultLogMaxAgeDays     = 14
	defaultSymbol            = "BTCUSDT"
	defaultInitialCash       = 10000
	defaultStrategy          = decision.KindMACross
	defaultInterval          = "1h"
	defaultLookback          = 120
	defaultShortWindow       = 20
	defaultLongWindow        = 50
	defaultOracleConfidence  = 0.6
	defaultMACrossConfidence = 0.005
	defaultDecisionMinutes   = 30
	defaultRiskPerTrade      = 0.1
	defaultMaxPositionPct    = 0.25
	defaultVolatility        = 0.03
	defaultVolatilityPenalty = 0.2
	defaultHighRiskConf      = 0.8
	defaultRSIOverbought     = 70
	defaultRSIOversold       = 30
	defaultQuantityStep      = 0.0001
	defaultHistoryLimit      = 500
	defaultSlippageBps       = 5
	defaultCommissionMode    = "flat"
	defaultPollMinutes       = 60
	defaultTimezone          = "America/New_York"
	defaultMarketOpen        = "09:30"
	defaultMarketClose       = "16:00"
	defaultBreakerThreshold  = 5
	defaultBreakerCooldown   = 600
	defaultMarketSource      = "binance"
	defaultMarketREST        = "https://fapi.binance.com"
	defaultMarketTimeout     = 10
	defaultLLMModel          = "gpt-4o-mini"
	defaultLLMMaxTokens      = 600
	defaultLLMTimeout        = 60
	defaultLLMMinHistory     = 30
)

// applyDefaults 只为未显式设置的字段填充默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Risk.applyDefaults(keys, c.Trading.Strategy)
	c.Execution.applyDefaults(keys)
	c.Scheduler.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.LLM.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.log_level", &a.LogLevel, defaultLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultHTTPAddr),
		intFieldDefault("app.max_size_mb", &a.MaxSizeMB, defaultLogMaxSizeMB),
		intFieldDefault("app.max_backups", &a.MaxBackups, defaultLogMaxBackups),
		intFieldDefault("app.max_age_days", &a.MaxAgeDays, defaultLogMaxAgeDays),
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("trading.symbol", &t.Symbol, defaultSymbol),
		floatFieldDefault("trading.initial_cash", &t.InitialCash, defaultInitialCash),
		stringFieldDefault("trading.strategy", &t.Strategy, defaultStrategy),
		stringFieldDefault("trading.interval", &t.Interval, defaultInterval),
		intFieldDefault("trading.lookback", &t.Lookback, defaultLookback),
		intFieldDefault("trading.short_window", &t.ShortWindow, defaultShortWindow),
		intFieldDefault("trading.long_window", &t.LongWindow, defaultLongWindow),
	)
	t.Symbol = symbol.Normalize(t.Symbol)
	t.Strategy = strings.ToLower(strings.TrimSpace(t.Strategy))
}

// 均线交叉的置信度是均线相对偏离，量级远小于 oracle 给出的置信度。
func (r *RiskConfig) applyDefaults(keys keySet, strategy string) {
	minConf := defaultMACrossConfidence
	if strategy == decision.KindOracle {
		minConf = defaultOracleConfidence
	}
	applyFieldDefaults(keys,
		floatFieldDefault("risk.min_confidence", &r.MinConfidence, minConf),
		intFieldDefault("risk.min_decision_interval_minutes", &r.MinDecisionIntervalMinutes, defaultDecisionMinutes),
		floatFieldDefault("risk.risk_per_trade", &r.RiskPerTrade, defaultRiskPerTrade),
		floatFieldDefault("risk.max_position_pct", &r.MaxPositionPct, defaultMaxPositionPct),
		floatFieldDefault("risk.volatility_threshold", &r.VolatilityThreshold, defaultVolatility),
		floatFieldDefault("risk.volatility_penalty", &r.VolatilityPenalty, defaultVolatilityPenalty),
		floatFieldDefault("risk.high_risk_min_confidence", &r.HighRiskMinConfidence, defaultHighRiskConf),
		floatFieldDefault("risk.rsi_overbought", &r.RSIOverbought, defaultRSIOverbought),
		floatFieldDefault("risk.rsi_oversold", &r.RSIOversold, defaultRSIOversold),
		floatFieldDefault("risk.quantity_step", &r.QuantityStep, defaultQuantityStep),
		intFieldDefault("risk.history_limit", &r.HistoryLimit, defaultHistoryLimit),
	)
}

func (e *ExecutionConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		floatFieldDefault("execution.slippage_bps", &e.SlippageBps, defaultSlippageBps),
		stringFieldDefault("execution.commission_mode", &e.CommissionMode, defaultCommissionMode),
	)
}

func (s *SchedulerConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		boolFieldDefault("scheduler.market_hours_only", &s.MarketHoursOnly, true),
		intFieldDefault("scheduler.poll_interval_minutes", &s.PollIntervalMinutes, defaultPollMinutes),
		stringFieldDefault("scheduler.timezone", &s.Timezone, defaultTimezone),
		stringFieldDefault("scheduler.open", &s.Open, defaultMarketOpen),
		stringFieldDefault("scheduler.close", &s.Close, defaultMarketClose),
		intFieldDefault("scheduler.breaker_threshold", &s.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("scheduler.breaker_cooldown_seconds", &s.BreakerCooldownSeconds, defaultBreakerCooldown),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("market.source", &m.Source, defaultMarketSource),
		stringFieldDefault("market.base_url", &m.BaseURL, defaultMarketREST),
		intFieldDefault("market.timeout_seconds", &m.TimeoutSeconds, defaultMarketTimeout),
	)
	m.Source = strings.ToLower(strings.TrimSpace(m.Source))
}

func (l *LLMConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("llm.model", &l.Model, defaultLLMModel),
		intFieldDefault("llm.max_tokens", &l.MaxTokens, defaultLLMMaxTokens),
		intFieldDefault("llm.timeout_seconds", &l.TimeoutSeconds, defaultLLMTimeout),
		intFieldDefault("llm.min_history", &l.MinHistory, defaultLLMMinHistory),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target == 0 },
		apply: func() { *target = def },
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target == 0 },
		apply: func() { *target = def },
	}
}

// bool 无法用零值判断是否缺省，只看 key 是否出现过。
func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		apply: func() { *target = def },
	}
}
