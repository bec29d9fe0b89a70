package livehttp

import (
	"net/http"
	"strconv"
	"time"

	"autotrader/internal/decision"
	"autotrader/internal/engine"
	"autotrader/internal/ledger"
	"autotrader/internal/scheduler"

	"github.com/gin-gonic/gin"
)

// EngineView 是引擎对外只读的部分。
type EngineView interface {
	Status() engine.Status
	LastAnalysis() (engine.Analysis, bool)
	Portfolio() ledger.View
	History() []decision.Record
}

type SchedulerView interface {
	Status() scheduler.Status
}

// StatusResponse 合并引擎与调度器的状态。
type StatusResponse struct {
	engine.Status
	NextScheduledTime *time.Time `json:"next_scheduled_time,omitempty"`
	SchedulerRunning  bool       `json:"scheduler_running"`
	Breaker           string     `json:"breaker,omitempty"`
}

type Router struct {
	engine    EngineView
	scheduler SchedulerView
}

func NewRouter(eng EngineView, sched SchedulerView) *Router {
	return &Router{engine: eng, scheduler: sched}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.GET("/analysis", r.handleAnalysis)
	group.GET("/portfolio", r.handlePortfolio)
	group.GET("/decisions", r.handleDecisions)
}

func (r *Router) handleStatus(c *gin.Context) {
	resp := StatusResponse{Status: r.engine.Status()}
	if r.scheduler != nil {
		st := r.scheduler.Status()
		resp.NextScheduledTime = st.NextTickAt
		resp.SchedulerRunning = st.Running
		resp.Breaker = st.Breaker
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleAnalysis(c *gin.Context) {
	a, ok := r.engine.LastAnalysis()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no analysis yet"})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (r *Router) handlePortfolio(c *gin.Context) {
	c.JSON(http.StatusOK, r.engine.Portfolio())
}

// handleDecisions 按时间倒序返回最近的决策记录，limit 默认 50。
func (r *Router) handleDecisions(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	records := r.engine.History()
	out := make([]decision.Record, 0, min(limit, len(records)))
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, records[i])
	}
	c.JSON(http.StatusOK, gin.H{"decisions": out, "total": len(records)})
}
