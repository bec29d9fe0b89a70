package app

import (
	"fmt"
	"io"
	"strings"

	brcfg "autotrader/internal/config"
	"autotrader/internal/decision"
	"autotrader/internal/gateway/llm"
	"autotrader/internal/indicator"
	"autotrader/internal/logger"
)

// BuildStrategy 按 trading.strategy 构建决策策略；llm 策略会返回需要关闭的转录文件。
func BuildStrategy(cfg *brcfg.Config) (decision.Strategy, io.Closer, error) {
	return NewAppBuilder(cfg, "").buildStrategy(cfg)
}

func (b *AppBuilder) buildStrategy(cfg *brcfg.Config) (decision.Strategy, io.Closer, error) {
	deps := decision.FactoryDeps{
		ShortWindow: cfg.Trading.ShortWindow,
		LongWindow:  cfg.Trading.LongWindow,
		MinHistory:  cfg.LLM.MinHistory,
	}
	var closer io.Closer
	if strings.EqualFold(strings.TrimSpace(cfg.Trading.Strategy), decision.KindOracle) {
		oracle, c, err := b.oracleFn(cfg.LLM)
		if err != nil {
			return nil, nil, err
		}
		deps.Oracle = oracle
		closer = c
	}
	strat, err := decision.NewStrategy(cfg.Trading.Strategy, deps)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, err
	}
	return strat, closer, nil
}

func buildOracle(cfg brcfg.LLMConfig) (decision.Oracle, io.Closer, error) {
	oracle, err := llm.New(cfg.Oracle())
	if err != nil {
		return nil, nil, fmt.Errorf("初始化 LLM oracle 失败: %w", err)
	}
	logger.Infof("✓ LLM oracle: model=%s", oracle.Model())
	w := logger.RotatingFile(logger.FileOptions{Path: cfg.LogPath, MaxSizeMB: 50, MaxBackups: 3})
	if w == nil {
		return oracle, nil, nil
	}
	logger.SetOracleWriter(w)
	logger.Infof("✓ LLM 转录写入 %s", cfg.LogPath)
	return oracle, w, nil
}

func buildIndicators(cfg *brcfg.Config) *indicator.Library {
	settings := indicator.DefaultSettings()
	if cfg.Trading.ShortWindow > 0 {
		settings.ShortWindow = cfg.Trading.ShortWindow
	}
	if cfg.Trading.LongWindow > 0 {
		settings.LongWindow = cfg.Trading.LongWindow
	}
	if cfg.Risk.RSIOverbought > 0 {
		settings.RSIOverbought = cfg.Risk.RSIOverbought
	}
	if cfg.Risk.RSIOversold > 0 {
		settings.RSIOversold = cfg.Risk.RSIOversold
	}
	return indicator.New(settings)
}
