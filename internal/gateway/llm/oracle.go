// Package llm 用 OpenAI 兼容的 chat completion 接口实现决策 oracle。
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"autotrader/internal/decision"
	"autotrader/internal/logger"
	"autotrader/internal/pkg/jsonutil"

	oa "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const systemPrompt = `You are a trading assistant working with technical indicators, price trends and volatility.
Analyse the market summary and portfolio context supplied by the user and recommend BUY, SELL or HOLD.
Prefer capital preservation: BUY only with strong supporting signals, SELL on clear deterioration or to take profit.
Reply with a single JSON object and nothing else:
{"action":"BUY|SELL|HOLD","confidence":0.0-1.0,"rationale":"short reason","risk_level":"LOW|MEDIUM|HIGH","price_target":null,"stop_loss":null}`

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Model) == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 600
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

// Oracle 实现 decision.Oracle；任何失败都包装为 ErrOracleUnavailable。
type Oracle struct {
	cli oa.Client
	cfg Config
}

func New(cfg Config, extra ...option.RequestOption) (*Oracle, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(1)}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		base = strings.TrimSuffix(base, "/chat/completions")
		opts = append(opts, option.WithBaseURL(base+"/"))
	}
	opts = append(opts, extra...)
	return &Oracle{cli: oa.NewClient(opts...), cfg: cfg}, nil
}

func (o *Oracle) Model() string { return o.cfg.Model }

func (o *Oracle) Decide(ctx context.Context, summary decision.MarketSummary, portfolio decision.PortfolioContext) (decision.Decision, error) {
	prompt, err := userPrompt(summary, portfolio)
	if err != nil {
		return decision.Decision{}, fmt.Errorf("%w: %v", decision.ErrOracleUnavailable, err)
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	params := oa.ChatCompletionNewParams{
		Model: oa.ChatModel(o.cfg.Model),
		Messages: []oa.ChatCompletionMessageParamUnion{
			oa.SystemMessage(systemPrompt),
			oa.UserMessage(prompt),
		},
		MaxTokens: oa.Int(int64(o.cfg.MaxTokens)),
	}
	if o.cfg.Temperature > 0 {
		params.Temperature = oa.Float(o.cfg.Temperature)
	}
	start := time.Now()
	resp, err := o.cli.Chat.Completions.New(ctx, params)
	if err != nil {
		o.transcript(summary.Symbol, prompt, "error: "+err.Error())
		return decision.Decision{}, fmt.Errorf("%w: %v", decision.ErrOracleUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return decision.Decision{}, fmt.Errorf("%w: empty choices", decision.ErrOracleUnavailable)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	o.transcript(summary.Symbol, prompt, content)
	logger.Debugf("llm %s: %s replied in %s", o.cfg.Model, summary.Symbol, time.Since(start).Truncate(time.Millisecond))

	return decision.ParseReply(content)
}

func (o *Oracle) transcript(symbol, prompt, reply string) {
	if !logger.OracleEnabled() {
		return
	}
	logger.LogOracleExchange(o.cfg.Model, symbol, jsonutil.Pretty(prompt), reply)
}

func userPrompt(summary decision.MarketSummary, portfolio decision.PortfolioContext) (string, error) {
	payload := struct {
		Market    decision.MarketSummary    `json:"market"`
		Portfolio decision.PortfolioContext `json:"portfolio"`
	}{summary, portfolio}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return "Market analysis request. Data:\n" + string(b), nil
}
