package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"autotrader/internal/decision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completion(content string) string {
	b, _ := json.Marshal(content)
	return fmt.Sprintf(`{"id":"cmpl-1","object":"chat.completion","created":1710000000,"model":"gpt-4o-mini",
"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":%s}}]}`, b)
}

func newServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(raw, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func summary() decision.MarketSummary {
	return decision.MarketSummary{Symbol: "BTCUSDT", Interval: "1h", LastPrice: 65000, Bars: 120}
}

func TestOracleDecide(t *testing.T) {
	var req map[string]any
	reply := "```json\n{\"action\":\"buy\",\"confidence\":0.72,\"rationale\":\"trend up\",\"risk_level\":\"LOW\",\"stop_loss\":63000}\n```"
	srv := newServer(t, http.StatusOK, completion(reply), &req)

	o, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-test", MaxTokens: 300})
	require.NoError(t, err)

	d, err := o.Decide(context.Background(), summary(), decision.PortfolioContext{Cash: 10000, Equity: 10000})
	require.NoError(t, err)
	assert.Equal(t, decision.ActionBuy, d.Action)
	assert.InDelta(t, 0.72, d.Confidence, 1e-9)
	assert.Equal(t, decision.RiskLow, d.RiskLevel)
	require.NotNil(t, d.StopLoss)
	assert.InDelta(t, 63000, *d.StopLoss, 1e-9)

	assert.Equal(t, "gpt-test", req["model"])
	assert.EqualValues(t, 300, req["max_tokens"])
	msgs, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	user, _ := msgs[1].(map[string]any)
	assert.Contains(t, fmt.Sprint(user["content"]), `"symbol": "BTCUSDT"`)
}

func TestOracleMalformedReply(t *testing.T) {
	srv := newServer(t, http.StatusOK, completion("I think you should buy."), nil)
	o, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = o.Decide(context.Background(), summary(), decision.PortfolioContext{})
	assert.ErrorIs(t, err, decision.ErrOracleUnavailable)
}

func TestOracleHTTPError(t *testing.T) {
	srv := newServer(t, http.StatusBadRequest, `{"error":{"message":"bad model","type":"invalid_request_error"}}`, nil)
	o, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/chat/completions"})
	require.NoError(t, err)

	_, err = o.Decide(context.Background(), summary(), decision.PortfolioContext{})
	assert.ErrorIs(t, err, decision.ErrOracleUnavailable)
}

func TestOracleTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	o, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = o.Decide(context.Background(), summary(), decision.PortfolioContext{})
	assert.ErrorIs(t, err, decision.ErrOracleUnavailable)
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	o, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", o.Model())
}
