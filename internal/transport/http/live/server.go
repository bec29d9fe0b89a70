// Package livehttp 提供实盘状态查询与 Prometheus 指标的 HTTP 服务。
package livehttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"autotrader/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultAddr     = ":9991"
	shutdownTimeout = 5 * time.Second
)

type ServerConfig struct {
	Addr      string
	Engine    EngineView
	Scheduler SchedulerView
}

type Server struct {
	srv *http.Server
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("live http server requires an engine")
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), accessLog())
	engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	NewRouter(cfg.Engine, cfg.Scheduler).Register(engine.Group("/api"))

	return &Server{srv: &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}}, nil
}

// accessLog 以 debug 级别记录每个请求。
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.RequestURI(), c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.srv.Addr
}

func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start 阻塞到 ctx 取消（优雅关闭后返回 nil）或监听失败。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	errCh := make(chan error, 1)
	go func() {
		err := s.srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()
	logger.Infof("live http listening on %s", s.srv.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shCtx); err != nil {
		logger.Warnf("live http shutdown: %v", err)
	}
	return nil
}
