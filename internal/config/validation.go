package config

import (
	"fmt"
	"strings"

	"autotrader/internal/decision"
	"autotrader/internal/execution"
	"autotrader/internal/market"
	"autotrader/internal/scheduler"

	"github.com/spf13/cast"
)

// validate 对配置进行基础校验，错误在启动时即为致命错误。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Execution.validate(); err != nil {
		return err
	}
	if err := c.Scheduler.validate(); err != nil {
		return err
	}
	if c.Scheduler.PollIntervalMinutes == 0 && c.Risk.MinDecisionIntervalMinutes == 0 {
		return fmt.Errorf("scheduler.poll_interval_minutes and risk.min_decision_interval_minutes cannot both be 0")
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.LLM.validate(c.Trading.Strategy); err != nil {
		return err
	}
	return c.Notify.Telegram.validate()
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("app.log_level must be debug/info/warn/error, got %q", a.LogLevel)
	}
}

func (t *TradingConfig) validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("trading.symbol is required")
	}
	if t.InitialCash <= 0 {
		return fmt.Errorf("trading.initial_cash must be > 0")
	}
	if t.Strategy != decision.KindMACross && t.Strategy != decision.KindOracle {
		return fmt.Errorf("trading.strategy must be %s or %s, got %q", decision.KindMACross, decision.KindOracle, t.Strategy)
	}
	if _, ok := market.ParseInterval(t.Interval); !ok {
		return fmt.Errorf("trading.interval %q is invalid", t.Interval)
	}
	if t.Lookback <= 0 {
		return fmt.Errorf("trading.lookback must be > 0")
	}
	if t.ShortWindow <= 0 || t.ShortWindow >= t.LongWindow {
		return fmt.Errorf("trading.short_window(%d) must be > 0 and < long_window(%d)", t.ShortWindow, t.LongWindow)
	}
	if t.Strategy == decision.KindMACross && t.Lookback <= t.LongWindow {
		return fmt.Errorf("trading.lookback(%d) must exceed long_window(%d)", t.Lookback, t.LongWindow)
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.MinDecisionIntervalMinutes < 0 {
		return fmt.Errorf("risk.min_decision_interval_minutes must be >= 0")
	}
	if r.HistoryLimit < 0 {
		return fmt.Errorf("risk.history_limit must be >= 0")
	}
	if err := r.Gate().Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	return nil
}

func (e *ExecutionConfig) validate() error {
	if _, err := e.Paper(); err != nil {
		return fmt.Errorf("execution: %w", err)
	}
	return nil
}

func (s *SchedulerConfig) validate() error {
	if s.PollIntervalMinutes < 0 {
		return fmt.Errorf("scheduler.poll_interval_minutes must be >= 0")
	}
	if s.BreakerThreshold < 0 || s.BreakerCooldownSeconds < 0 {
		return fmt.Errorf("scheduler breaker settings must be >= 0")
	}
	if _, err := scheduler.NewMarketHours(s.Timezone, s.Open, s.Close); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	return nil
}

func (m *MarketConfig) validate() error {
	switch m.Source {
	case "binance":
		if strings.TrimSpace(m.BaseURL) == "" {
			return fmt.Errorf("market.base_url is required for binance")
		}
	case "csv":
		if strings.TrimSpace(m.CSVPath) == "" {
			return fmt.Errorf("market.csv_path is required for csv source")
		}
	default:
		return fmt.Errorf("market.source must be binance or csv, got %q", m.Source)
	}
	if m.TimeoutSeconds <= 0 {
		return fmt.Errorf("market.timeout_seconds must be > 0")
	}
	return nil
}

func (l *LLMConfig) validate(strategy string) error {
	if strategy != decision.KindOracle {
		return nil
	}
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required for strategy %s (or set %s_LLM_API_KEY)", decision.KindOracle, EnvPrefix)
	}
	if l.MaxTokens <= 0 || l.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm.max_tokens and llm.timeout_seconds must be > 0")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0,2]")
	}
	return nil
}

func (t *TelegramConfig) validate() error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.BotToken) == "" {
		return fmt.Errorf("notify.telegram.bot_token is required when telegram is enabled")
	}
	if _, err := cast.ToInt64E(strings.TrimSpace(t.ChatID)); err != nil {
		return fmt.Errorf("notify.telegram.chat_id must be numeric: %w", err)
	}
	return nil
}

func (e ExecutionConfig) commissionMode() (execution.CommissionMode, error) {
	return execution.ParseCommissionMode(e.CommissionMode)
}
