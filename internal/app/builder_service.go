package app

import (
	"fmt"
	"strings"

	brcfg "autotrader/internal/config"
	"autotrader/internal/gateway/notifier"
	"autotrader/internal/logger"
	"autotrader/internal/pkg/circuit"
	livehttp "autotrader/internal/transport/http/live"
)

func buildLiveHTTPServer(cfg brcfg.AppConfig, eng livehttp.EngineView, sched livehttp.SchedulerView) (*livehttp.Server, error) {
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return nil, nil
	}
	server, err := livehttp.NewServer(livehttp.ServerConfig{
		Addr:      cfg.HTTPAddr,
		Engine:    eng,
		Scheduler: sched,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 live HTTP 失败: %w", err)
	}
	logger.Infof("✓ Live HTTP 接口监听 %s", server.Addr())
	return server, nil
}

func buildNotifier(cfg brcfg.TelegramConfig) (notifier.TextNotifier, error) {
	if !cfg.Enabled {
		return notifier.Nop{}, nil
	}
	tg, err := notifier.NewTelegram(cfg.BotToken, cfg.ChatIDInt())
	if err != nil {
		return nil, err
	}
	logger.Infof("✓ Telegram 通知已启用")
	return tg, nil
}

// BuildNotifier 供 CLI 在回测结束后推送摘要。
func BuildNotifier(cfg *brcfg.Config) (notifier.TextNotifier, error) {
	return buildNotifier(cfg.Notify.Telegram)
}

// buildBreaker 在熔断打开时推送一次告警。
func buildBreaker(cfg *brcfg.Config, n notifier.TextNotifier) *circuit.Breaker {
	b := circuit.New(cfg.Trading.Symbol, cfg.Scheduler.BreakerThreshold, cfg.Scheduler.BreakerCooldown())
	b.SetStateChangeHandler(func(name string, from, to circuit.State) {
		logger.Warnf("circuit[%s]: %s -> %s", name, from, to)
		if to != circuit.StateOpen || n == nil {
			return
		}
		msg := fmt.Sprintf("⚠️ %s 连续 %d 轮失败，暂停 %s", name, cfg.Scheduler.BreakerThreshold, cfg.Scheduler.BreakerCooldown())
		if err := n.SendText(msg); err != nil {
			logger.Warnf("circuit[%s]: notify failed: %v", name, err)
		}
	})
	return b
}
