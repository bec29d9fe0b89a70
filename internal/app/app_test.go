package app

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	brcfg "autotrader/internal/config"
	"autotrader/internal/decision"
	"autotrader/internal/engine"
	"autotrader/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func writeBars(t *testing.T, dir string, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("time,open,high,low,close,volume\n")
	for i := 0; i < n; i++ {
		c := 100 + 10*math.Sin(float64(i)/5)
		fmt.Fprintf(&b, "%s,%.4f,%.4f,%.4f,%.4f,1000\n", start.Add(time.Duration(i)*time.Hour).Format(time.RFC3339), c, c+1, c-1, c)
	}
	p := filepath.Join(dir, "bars.csv")
	require.NoError(t, os.WriteFile(p, []byte(b.String()), 0o644))
	return p
}

func loadConfig(t *testing.T, extra string) (*brcfg.Config, string) {
	t.Helper()
	dir := t.TempDir()
	bars := writeBars(t, dir, 80)
	body := fmt.Sprintf(`app:
  http_addr: ""
trading:
  symbol: BTCUSDT
  short_window: 3
  long_window: 8
  lookback: 40
market:
  source: csv
  csv_path: %s
scheduler:
  market_hours_only: false
%s`, bars, extra)
	p := filepath.Join(dir, "autotrader.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	cfg, err := brcfg.Load(p)
	require.NoError(t, err)
	return cfg, bars
}

func TestReloadUpdatesEngineAndRunner(t *testing.T) {
	cfg, _ := loadConfig(t, "")
	app, err := NewApp(context.Background(), cfg, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	require.Equal(t, 30*time.Minute, app.Runner().Policy().MinDecisionInterval)

	next, _ := loadConfig(t, "risk:\n  min_decision_interval_minutes: 90\n")
	app.applyReload(next)

	assert.Equal(t, 90*time.Minute, app.Engine().RiskConfig().MinDecisionInterval)
	assert.Equal(t, 90*time.Minute, app.Runner().Policy().MinDecisionInterval)
	assert.Equal(t, time.Hour, app.Runner().Policy().PollInterval)
}

type recorder struct{ msgs []string }

func (r *recorder) SendText(s string) error {
	r.msgs = append(r.msgs, s)
	return nil
}

type cannedOracle struct{ calls int }

func (o *cannedOracle) Decide(_ context.Context, s decision.MarketSummary, _ decision.PortfolioContext) (decision.Decision, error) {
	o.calls++
	return decision.Decision{Action: decision.ActionBuy, Confidence: 0.9, RiskLevel: decision.RiskLow, Timestamp: s.AsOf}, nil
}

func TestNewAppRunsOneTickFromCSV(t *testing.T) {
	cfg, _ := loadConfig(t, "")

	app, err := NewApp(context.Background(), cfg, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.Nil(t, app.Server())
	require.NotNil(t, app.Runner())
	rep := app.Engine().Tick(context.Background())
	assert.Equal(t, engine.StateSettled, rep.State, rep.String())
	assert.Equal(t, start.Add(79*time.Hour), rep.AsOf)
	assert.Equal(t, "BTCUSDT", app.Engine().Portfolio().Symbol)
	assert.Equal(t, decision.KindMACross, app.Summary.Trading.Strategy)
}

func TestBuilderWiresOracleStrategy(t *testing.T) {
	cfg, _ := loadConfig(t, "llm:\n  api_key: sk-test\n  min_history: 10\n")
	cfg.Trading.Strategy = decision.KindOracle
	oracle := &cannedOracle{}
	notes := &recorder{}

	app, err := NewAppBuilder(cfg, "", WithOracle(oracle), WithNotifier(notes)).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	rep := app.Engine().Tick(context.Background())
	require.Equal(t, engine.StateSettled, rep.State, rep.String())
	assert.Equal(t, 1, oracle.calls)
	require.NotNil(t, rep.Fill, rep.String())
	require.Len(t, notes.msgs, 1)
	assert.Contains(t, notes.msgs[0], "BTCUSDT")
}

func TestAppRunReturnsOnCancel(t *testing.T) {
	cfg, _ := loadConfig(t, "")
	app, err := NewApp(context.Background(), cfg, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, app.Run(ctx))
	assert.False(t, app.Runner().Status().Running)
}

func TestBuildProviderRejectsUnknownSource(t *testing.T) {
	cfg, _ := loadConfig(t, "")
	cfg.Market.Source = "ftp"
	_, err := buildProvider(cfg)
	assert.Error(t, err)
}

func TestRunBacktestWritesReportAndNotifies(t *testing.T) {
	cfg, bars := loadConfig(t, "")
	notes := &recorder{}

	out, err := RunBacktest(context.Background(), cfg, BacktestRequest{
		Bars:      BarsRequest{CSVPath: bars},
		ReportDir: t.TempDir(),
		Format:    "yaml",
		Chart:     true,
		Notifier:  notes,
	})
	require.NoError(t, err)
	assert.Equal(t, 80, out.Result.Bars)
	assert.Equal(t, decision.KindMACross, out.Result.Strategy)
	require.Len(t, out.Files, 2)
	for _, f := range out.Files {
		assert.FileExists(t, f)
	}
	require.Len(t, notes.msgs, 1)
	assert.Contains(t, notes.msgs[0], "Backtest BTCUSDT")
}

func TestLoadBars(t *testing.T) {
	cfg, bars := loadConfig(t, "")

	all, err := LoadBars(context.Background(), cfg, BarsRequest{CSVPath: bars})
	require.NoError(t, err)
	assert.Len(t, all, 80)

	clipped, err := LoadBars(context.Background(), cfg, BarsRequest{CSVPath: bars, Start: start.Add(10 * time.Hour), End: start.Add(20 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, clipped, 10)
	assert.Equal(t, start.Add(10*time.Hour), clipped[0].Time())

	_, err = LoadBars(context.Background(), cfg, BarsRequest{})
	assert.Error(t, err)
}

type rangeStub struct{ bars market.Candles }

func (r rangeStub) FetchRange(context.Context, string, time.Time, time.Time) (market.Candles, error) {
	return r.bars, nil
}

func TestFetchRangeEmptyIsUnavailable(t *testing.T) {
	_, err := fetchRange(context.Background(), rangeStub{}, "BTCUSDT", start, start.Add(time.Hour))
	assert.ErrorIs(t, err, market.ErrDataUnavailable)
}
