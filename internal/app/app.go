package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	brcfg "autotrader/internal/config"
	"autotrader/internal/engine"
	"autotrader/internal/logger"
	"autotrader/internal/scheduler"
	livehttp "autotrader/internal/transport/http/live"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// ConfigPath 是加载配置所用的文件路径，空值表示不监听热更新。
type ConfigPath string

// App 负责应用级编排：持有引擎、调度循环与状态 HTTP 服务。
type App struct {
	cfg        *brcfg.Config
	configPath string
	engine     *engine.Engine
	runner     *scheduler.Runner
	liveHTTP   *livehttp.Server
	closers    []io.Closer
	Summary    *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(ctx context.Context, cfg *brcfg.Config, path string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(ctx, cfg, ConfigPath(path))
}

// Run 启动调度循环、HTTP 服务与风控配置热更新，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.runner == nil {
		return fmt.Errorf("scheduler not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	if err := a.watchRisk(); err != nil {
		logger.Warnf("config hot reload disabled: %v", err)
	}

	group, ctx := errgroup.WithContext(ctx)
	if a.liveHTTP != nil {
		group.Go(func() error {
			if err := a.liveHTTP.Start(ctx); err != nil {
				return fmt.Errorf("live http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		return a.runner.Run(ctx)
	})
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) watchRisk() error {
	path := strings.TrimSpace(a.configPath)
	if path == "" {
		return nil
	}
	return brcfg.Watch(path, a.applyReload)
}

// applyReload 把新的风控参数推给引擎，并同步调度节奏。
func (a *App) applyReload(next *brcfg.Config) {
	gate := next.Risk.Gate()
	if err := a.engine.SetRiskConfig(gate); err != nil {
		logger.Errorf("risk config reload rejected: %v", err)
		return
	}
	if a.runner != nil {
		policy, err := next.Scheduler.Policy(gate.MinDecisionInterval)
		if err != nil {
			logger.Errorf("scheduler policy reload rejected: %v", err)
		} else {
			a.runner.SetPolicy(policy)
		}
	}
	logger.Infof("risk config reloaded: min_confidence=%.4f risk_per_trade=%.4f min_interval=%s",
		next.Risk.MinConfidence, next.Risk.RiskPerTrade, gate.MinDecisionInterval)
}

func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

func (a *App) Runner() *scheduler.Runner {
	if a == nil {
		return nil
	}
	return a.runner
}

func (a *App) Server() *livehttp.Server {
	if a == nil {
		return nil
	}
	return a.liveHTTP
}

// Close 释放构建期打开的资源（oracle 转录文件等）。
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var err error
	for _, c := range a.closers {
		err = multierr.Append(err, c.Close())
	}
	a.closers = nil
	logger.SetOracleWriter(nil)
	return err
}
