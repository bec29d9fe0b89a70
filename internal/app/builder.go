package app

import (
	"context"
	"fmt"
	"io"

	brcfg "autotrader/internal/config"
	"autotrader/internal/decision"
	"autotrader/internal/engine"
	"autotrader/internal/execution"
	"autotrader/internal/gateway/notifier"
	"autotrader/internal/ledger"
	"autotrader/internal/logger"
	"autotrader/internal/market"
	"autotrader/internal/risk"
	"autotrader/internal/scheduler"
	livehttp "autotrader/internal/transport/http/live"
)

type AppBuilder struct {
	cfg  *brcfg.Config
	path string

	providerFn  func(*brcfg.Config) (market.Provider, error)
	oracleFn    func(brcfg.LLMConfig) (decision.Oracle, io.Closer, error)
	notifierFn  func(brcfg.TelegramConfig) (notifier.TextNotifier, error)
	liveHTTPFn  func(brcfg.AppConfig, livehttp.EngineView, livehttp.SchedulerView) (*livehttp.Server, error)
	executionFn func(*ledger.Ledger, brcfg.ExecutionConfig) (*execution.PaperBroker, error)
}

type AppBuilderOption func(*AppBuilder)

// WithProvider 替换行情源（测试或离线回放）。
func WithProvider(p market.Provider) AppBuilderOption {
	return func(b *AppBuilder) {
		b.providerFn = func(*brcfg.Config) (market.Provider, error) { return p, nil }
	}
}

func WithOracle(o decision.Oracle) AppBuilderOption {
	return func(b *AppBuilder) {
		b.oracleFn = func(brcfg.LLMConfig) (decision.Oracle, io.Closer, error) { return o, nil, nil }
	}
}

func WithNotifier(n notifier.TextNotifier) AppBuilderOption {
	return func(b *AppBuilder) {
		b.notifierFn = func(brcfg.TelegramConfig) (notifier.TextNotifier, error) { return n, nil }
	}
}

func NewAppBuilder(cfg *brcfg.Config, path string, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:         cfg,
		path:        path,
		providerFn:  buildProvider,
		oracleFn:    buildOracle,
		notifierFn:  buildNotifier,
		liveHTTPFn:  buildLiveHTTPServer,
		executionFn: buildPaperBroker,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func provideAppBuilder(cfg *brcfg.Config, path ConfigPath) *AppBuilder {
	return NewAppBuilder(cfg, string(path))
}

func provideAppFromBuilder(ctx context.Context, b *AppBuilder) (*App, error) {
	return b.Build(ctx)
}

func (b *AppBuilder) Build(ctx context.Context) (app *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	app = &App{cfg: cfg, configPath: b.path}
	defer func() {
		if err != nil {
			_ = app.Close()
			app = nil
		}
	}()

	strat, closer, err := b.buildStrategy(cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}
	provider, err := b.providerFn(cfg)
	if err != nil {
		return nil, err
	}
	textNotifier, err := b.notifierFn(cfg.Notify.Telegram)
	if err != nil {
		return nil, err
	}

	book, err := ledger.New(cfg.Trading.Symbol, cfg.Trading.Cash())
	if err != nil {
		return nil, err
	}
	broker, err := b.executionFn(book, cfg.Execution)
	if err != nil {
		return nil, err
	}
	gateCfg := cfg.Risk.Gate()
	eng, err := engine.New(engine.Params{
		Mode:       "live",
		Symbol:     cfg.Trading.Symbol,
		Lookback:   cfg.Trading.Lookback,
		Provider:   provider,
		Indicators: buildIndicators(cfg),
		Strategy:   strat,
		Gate:       risk.NewGate(broker),
		Risk:       gateCfg,
		Ledger:     book,
		Execution:  broker,
		History:    decision.NewHistory(cfg.Risk.HistoryLimit),
		Notifier:   textNotifier,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化引擎失败: %w", err)
	}
	app.engine = eng

	policy, err := cfg.Scheduler.Policy(gateCfg.MinDecisionInterval)
	if err != nil {
		return nil, err
	}
	app.runner = scheduler.NewRunner(policy, eng, buildBreaker(cfg, textNotifier))

	server, err := b.liveHTTPFn(cfg.App, eng, app.runner)
	if err != nil {
		return nil, err
	}
	app.liveHTTP = server
	app.Summary = newStartupSummary(cfg, strat.Name(), policy)
	logger.Infof("✓ 引擎就绪: symbol=%s strategy=%s mode=live", cfg.Trading.Symbol, strat.Name())
	return app, nil
}

func buildPaperBroker(book *ledger.Ledger, cfg brcfg.ExecutionConfig) (*execution.PaperBroker, error) {
	paper, err := cfg.Paper()
	if err != nil {
		return nil, err
	}
	return execution.NewPaperBroker(book, paper)
}
