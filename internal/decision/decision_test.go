package decision

import (
	"context"
	"errors"
	"testing"
	"time"

	"autotrader/internal/indicator"
	"autotrader/internal/ledger"
	"autotrader/internal/market"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 2, 5, 15, 0, 0, 0, time.UTC)

func candles(closes []float64) market.Candles {
	out := make(market.Candles, len(closes))
	for i, c := range closes {
		ts := t0.Add(time.Duration(i-len(closes)+1) * time.Hour).UnixMilli()
		out[i] = market.Candle{OpenTime: ts, CloseTime: ts, Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 5}
	}
	return out
}

func input(closes []float64, qty string) Input {
	return Input{
		Snapshot:  market.Snapshot{Symbol: "AAPL", Interval: "1h", Candles: candles(closes)},
		Portfolio: ledger.View{Symbol: "AAPL", Quantity: decimal.RequireFromString(qty)},
		AsOf:      t0,
	}
}

func TestValidate(t *testing.T) {
	ok := Decision{Action: ActionBuy, Confidence: 0.7, RiskLevel: RiskLow, Timestamp: t0}
	assert.NoError(t, Validate(ok))

	neg := -1.0
	bad := []Decision{
		{Action: "SHORT", Confidence: 0.5, RiskLevel: RiskLow, Timestamp: t0},
		{Action: ActionBuy, Confidence: 1.2, RiskLevel: RiskLow, Timestamp: t0},
		{Action: ActionBuy, Confidence: 0.5, RiskLevel: "EXTREME", Timestamp: t0},
		{Action: ActionBuy, Confidence: 0.5, RiskLevel: RiskLow, Timestamp: t0, StopLoss: &neg},
		{Action: ActionBuy, Confidence: 0.5, RiskLevel: RiskLow},
	}
	for _, d := range bad {
		assert.Error(t, Validate(d), d.String())
	}
	assert.NoError(t, Validate(Hold(t0, "x", "y")))
}

func TestHistoryOrderingAndRetention(t *testing.T) {
	h := NewHistory(2)
	rec := func(min int, outcome Outcome) Record {
		return Record{Decision: Decision{Action: ActionBuy, Timestamp: t0.Add(time.Duration(min) * time.Minute)}, Outcome: outcome}
	}
	require.NoError(t, h.Append(rec(0, OutcomeAccepted)))
	require.NoError(t, h.Append(rec(5, OutcomeRejected)))

	assert.ErrorIs(t, h.Append(rec(5, OutcomeRejected)), ErrOutOfOrder)
	assert.ErrorIs(t, h.Append(rec(1, OutcomeRejected)), ErrOutOfOrder)

	require.NoError(t, h.Append(rec(10, OutcomeRejected)))
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, t0.Add(5*time.Minute), h.Records()[0].Decision.Timestamp)

	last, ok := h.LastAccepted()
	require.True(t, ok, "evicted accepted record must still gate the interval")
	assert.Equal(t, t0, last.Decision.Timestamp)

	require.NoError(t, h.Append(rec(20, OutcomeFailed)))
	last, _ = h.LastAccepted()
	assert.Equal(t, t0, last.Decision.Timestamp)
}

func rising(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestMACross(t *testing.T) {
	s, err := NewMACross(3, 5)
	require.NoError(t, err)

	t.Run("insufficient history holds", func(t *testing.T) {
		d, err := s.Generate(context.Background(), input([]float64{1, 2, 3}, "0"))
		require.NoError(t, err)
		assert.Equal(t, ActionHold, d.Action)
		assert.Zero(t, d.Confidence)
		assert.Equal(t, t0, d.Timestamp)
	})

	// 先下跌后拉升：最后一根出现金叉。
	golden := []float64{10, 9, 8, 7, 6, 5, 5, 5, 9}
	t.Run("golden cross buys when flat", func(t *testing.T) {
		d, err := s.Generate(context.Background(), input(golden, "0"))
		require.NoError(t, err)
		assert.Equal(t, ActionBuy, d.Action)
		assert.Greater(t, d.Confidence, 0.0)
		assert.LessOrEqual(t, d.Confidence, 1.0)
		assert.NoError(t, Validate(d))
	})
	t.Run("golden cross holds when already long", func(t *testing.T) {
		d, err := s.Generate(context.Background(), input(golden, "3"))
		require.NoError(t, err)
		assert.Equal(t, ActionHold, d.Action)
	})

	death := []float64{5, 6, 7, 8, 9, 10, 10, 10, 6}
	t.Run("death cross sells when long", func(t *testing.T) {
		d, err := s.Generate(context.Background(), input(death, "3"))
		require.NoError(t, err)
		assert.Equal(t, ActionSell, d.Action)
	})
	t.Run("death cross holds when flat", func(t *testing.T) {
		d, err := s.Generate(context.Background(), input(death, "0"))
		require.NoError(t, err)
		assert.Equal(t, ActionHold, d.Action)
	})

	_, err = NewMACross(5, 5)
	assert.Error(t, err)
}

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) Decide(ctx context.Context, summary MarketSummary, portfolio PortfolioContext) (Decision, error) {
	args := m.Called(ctx, summary, portfolio)
	return args.Get(0).(Decision), args.Error(1)
}

func TestOracleStrategy(t *testing.T) {
	closes := rising(40, 100, 1)

	t.Run("passes decision through with snapshot time", func(t *testing.T) {
		o := &mockOracle{}
		o.On("Decide", mock.Anything, mock.MatchedBy(func(s MarketSummary) bool {
			return s.Symbol == "AAPL" && s.LastPrice == 139 && s.Bars == 40
		}), mock.Anything).Return(Decision{Action: ActionBuy, Confidence: 0.9}, nil).Once()

		d, err := NewOracleStrategy(o, 30).Generate(context.Background(), input(closes, "0"))
		require.NoError(t, err)
		assert.Equal(t, ActionBuy, d.Action)
		assert.Equal(t, RiskMedium, d.RiskLevel)
		assert.Equal(t, t0, d.Timestamp)
		assert.Equal(t, KindOracle, d.Source)
		o.AssertExpectations(t)
	})

	t.Run("failure degrades to hold", func(t *testing.T) {
		o := &mockOracle{}
		o.On("Decide", mock.Anything, mock.Anything, mock.Anything).Return(Decision{}, context.DeadlineExceeded).Once()

		d, err := NewOracleStrategy(o, 30).Generate(context.Background(), input(closes, "0"))
		assert.ErrorIs(t, err, ErrOracleUnavailable)
		assert.Equal(t, ActionHold, d.Action)
		assert.Zero(t, d.Confidence)
		assert.NoError(t, Validate(d))
	})

	t.Run("malformed decision degrades to hold", func(t *testing.T) {
		o := &mockOracle{}
		o.On("Decide", mock.Anything, mock.Anything, mock.Anything).Return(Decision{Action: ActionBuy, Confidence: 3}, nil).Once()

		d, err := NewOracleStrategy(o, 30).Generate(context.Background(), input(closes, "0"))
		assert.ErrorIs(t, err, ErrOracleUnavailable)
		assert.Equal(t, ActionHold, d.Action)
	})

	t.Run("short history skips the oracle", func(t *testing.T) {
		o := &mockOracle{}
		d, err := NewOracleStrategy(o, 30).Generate(context.Background(), input(closes[:10], "0"))
		require.NoError(t, err)
		assert.Equal(t, ActionHold, d.Action)
		o.AssertNotCalled(t, "Decide", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBuildSummary(t *testing.T) {
	in := input([]float64{100, 110, 90, 105}, "2")
	in.Report = indicator.Report{Values: map[string]indicator.Value{"rsi": {Latest: 55}}}
	in.Portfolio.Cash = decimal.NewFromInt(500)
	s := BuildSummary(in)
	assert.Equal(t, 105.0, s.LastPrice)
	assert.InDelta(t, 5.0, s.ChangePct, 1e-9)
	assert.Equal(t, 111.0, s.High)
	assert.Equal(t, 89.0, s.Low)
	assert.Equal(t, 55.0, s.Indicators["rsi"].Latest)

	p := BuildPortfolioContext(in)
	assert.Equal(t, 500.0, p.Cash)
	assert.Equal(t, 2.0, p.Quantity)
}

func TestNewStrategy(t *testing.T) {
	s, err := NewStrategy("MA_CROSS", FactoryDeps{ShortWindow: 2, LongWindow: 4})
	require.NoError(t, err)
	assert.Equal(t, KindMACross, s.Name())

	_, err = NewStrategy(KindOracle, FactoryDeps{})
	assert.Error(t, err)

	s, err = NewStrategy(KindOracle, FactoryDeps{Oracle: &mockOracle{}})
	require.NoError(t, err)
	assert.Equal(t, KindOracle, s.Name())

	_, err = NewStrategy("astrology", FactoryDeps{})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrOracleUnavailable))
}
