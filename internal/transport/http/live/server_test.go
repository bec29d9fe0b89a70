package livehttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"autotrader/internal/decision"
	"autotrader/internal/engine"
	"autotrader/internal/ledger"
	"autotrader/internal/scheduler"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)

type fakeEngine struct {
	analysis *engine.Analysis
	records  []decision.Record
}

func (f *fakeEngine) Status() engine.Status {
	d := decision.Decision{Action: decision.ActionBuy, Confidence: 0.8, Timestamp: t0}
	ts := t0
	return engine.Status{Symbol: "BTCUSDT", State: engine.StateIdle, LastDecision: &d, LastDecisionTime: &ts, Ticks: 3, Errors: 1, LastError: "feed down"}
}

func (f *fakeEngine) LastAnalysis() (engine.Analysis, bool) {
	if f.analysis == nil {
		return engine.Analysis{}, false
	}
	return *f.analysis, true
}

func (f *fakeEngine) Portfolio() ledger.View {
	return ledger.View{Symbol: "BTCUSDT", Cash: decimal.NewFromInt(9000), Equity: decimal.NewFromInt(10000)}
}

func (f *fakeEngine) History() []decision.Record { return f.records }

type fakeScheduler struct{}

func (fakeScheduler) Status() scheduler.Status {
	next := t0.Add(time.Hour)
	return scheduler.Status{Running: true, NextTickAt: &next, Breaker: "CLOSED"}
}

func newTestServer(t *testing.T, eng *fakeEngine) http.Handler {
	t.Helper()
	srv, err := NewServer(ServerConfig{Engine: eng, Scheduler: fakeScheduler{}})
	require.NoError(t, err)
	return srv.Handler()
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestStatusEndpoint(t *testing.T) {
	h := newTestServer(t, &fakeEngine{})

	rec, body := get(t, h, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["scheduler_running"])
	assert.Equal(t, t0.Add(time.Hour).Format(time.RFC3339), body["next_scheduled_time"])
	assert.Equal(t, t0.Format(time.RFC3339), body["last_decision_time"])
	assert.Equal(t, "feed down", body["last_error"])
	assert.Equal(t, "CLOSED", body["breaker"])
	last, ok := body["last_decision"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "BUY", last["action"])
}

func TestAnalysisEndpoint(t *testing.T) {
	eng := &fakeEngine{}
	h := newTestServer(t, eng)

	rec, _ := get(t, h, "/api/analysis")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	eng.analysis = &engine.Analysis{Symbol: "BTCUSDT", AsOf: t0, Price: 65000, Decision: decision.Hold(t0, "ma_cross", "flat")}
	rec, body := get(t, h, "/api/analysis")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BTCUSDT", body["symbol"])
	assert.EqualValues(t, 65000, body["price"])
}

func TestPortfolioAndDecisions(t *testing.T) {
	eng := &fakeEngine{records: []decision.Record{
		{Decision: decision.Hold(t0, "s", "a"), Outcome: decision.OutcomeRejected, Reason: "NoAction"},
		{Decision: decision.Hold(t0.Add(time.Hour), "s", "b"), Outcome: decision.OutcomeRejected, Reason: "NoAction"},
	}}
	h := newTestServer(t, eng)

	rec, body := get(t, h, "/api/portfolio")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BTCUSDT", body["symbol"])

	rec, body = get(t, h, "/api/decisions?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["total"])
	list, ok := body["decisions"].([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	first := list[0].(map[string]any)["decision"].(map[string]any)
	assert.Equal(t, "b", first["rationale"])

	rec, _ = get(t, h, "/api/decisions?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, &fakeEngine{})

	rec, body := get(t, h, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStartStopsOnCancel(t *testing.T) {
	srv, err := NewServer(ServerConfig{Addr: "127.0.0.1:0", Engine: &fakeEngine{}})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewServerRequiresEngine(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}
