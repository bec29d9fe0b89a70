package config

import "strings"

// Config 是 autotrader 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Trading   TradingConfig   `toml:"trading"`
	Risk      RiskConfig      `toml:"risk"`
	Execution ExecutionConfig `toml:"execution"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Market    MarketConfig    `toml:"market"`
	LLM       LLMConfig       `toml:"llm"`
	Notify    NotifyConfig    `toml:"notify"`
}

type AppConfig struct {
	LogLevel   string `toml:"log_level"`
	HTTPAddr   string `toml:"http_addr"`
	LogPath    string `toml:"log_path"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

type TradingConfig struct {
	Symbol      string  `toml:"symbol"`
	InitialCash float64 `toml:"initial_cash"`
	// Strategy 取 ma_cross 或 llm。
	Strategy    string `toml:"strategy"`
	Interval    string `toml:"interval"`
	Lookback    int    `toml:"lookback"`
	ShortWindow int    `toml:"short_window"`
	LongWindow  int    `toml:"long_window"`
}

type RiskConfig struct {
	MinConfidence              float64 `toml:"min_confidence"`
	MinDecisionIntervalMinutes int     `toml:"min_decision_interval_minutes"`
	RiskPerTrade               float64 `toml:"risk_per_trade"`
	MaxPositionPct             float64 `toml:"max_position_pct"`
	VolatilityThreshold        float64 `toml:"volatility_threshold"`
	VolatilityPenalty          float64 `toml:"volatility_penalty"`
	HighRiskMinConfidence      float64 `toml:"high_risk_min_confidence"`
	RSIOverbought              float64 `toml:"rsi_overbought"`
	RSIOversold                float64 `toml:"rsi_oversold"`
	QuantityStep               float64 `toml:"quantity_step"`
	HistoryLimit               int     `toml:"history_limit"`
}

type ExecutionConfig struct {
	SlippageBps float64 `toml:"slippage_bps"`
	// CommissionMode 取 flat（每笔固定）或 rate（按成交额比例）。
	CommissionMode string  `toml:"commission_mode"`
	Commission     float64 `toml:"commission"`
}

type SchedulerConfig struct {
	MarketHoursOnly        bool   `toml:"market_hours_only"`
	PollIntervalMinutes    int    `toml:"poll_interval_minutes"`
	Timezone               string `toml:"timezone"`
	Open                   string `toml:"open"`
	Close                  string `toml:"close"`
	BreakerThreshold       int    `toml:"breaker_threshold"`
	BreakerCooldownSeconds int    `toml:"breaker_cooldown_seconds"`
}

type MarketConfig struct {
	// Source 取 binance 或 csv。
	Source         string `toml:"source"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	CSVPath        string `toml:"csv_path"`
}

type LLMConfig struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MinHistory     int     `toml:"min_history"`
	LogPath        string  `toml:"log_path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// keySet 用于追踪配置文件或环境变量中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
