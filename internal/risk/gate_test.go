package risk

import (
	"testing"
	"time"

	"autotrader/internal/decision"
	"autotrader/internal/indicator"
	"autotrader/internal/ledger"
	"autotrader/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func baseConfig() Config {
	return Config{
		MinConfidence:         0.6,
		MinDecisionInterval:   30 * time.Minute,
		RiskPerTrade:          dec("0.1"),
		MaxPositionPct:        dec("0.25"),
		VolatilityThreshold:   0.03,
		VolatilityPenalty:     0.2,
		HighRiskMinConfidence: 0.8,
		RSIOverbought:         70,
		RSIOversold:           30,
		QuantityStep:          dec("1"),
	}
}

func book(cash, qty, price string) ledger.View {
	c, q, p := dec(cash), dec(qty), dec(price)
	return ledger.View{Symbol: "AAPL", Price: p, Cash: c, Quantity: q, Equity: c.Add(q.Mul(p))}
}

func buy(conf float64, at time.Time) decision.Decision {
	return decision.Decision{Action: decision.ActionBuy, Confidence: conf, RiskLevel: decision.RiskMedium, Timestamp: at}
}

func TestEvaluateRejections(t *testing.T) {
	accepted := decision.NewHistory(10)
	require.NoError(t, accepted.Append(decision.Record{Decision: buy(0.9, t0), Outcome: decision.OutcomeAccepted}))

	sell := buy(0.9, t0)
	sell.Action = decision.ActionSell
	highRisk := buy(0.7, t0)
	highRisk.RiskLevel = decision.RiskHigh

	tests := []struct {
		name string
		d    decision.Decision
		book ledger.View
		cond indicator.Conditions
		hist *decision.History
		want Reason
	}{
		{name: "hold", d: decision.Hold(t0, "x", ""), book: book("10000", "0", "100"), want: ReasonNoAction},
		{name: "confidence gate", d: buy(0.5, t0), book: book("10000", "0", "100"), want: ReasonLowConfidence},
		{name: "interval gate", d: buy(0.9, t0.Add(10*time.Minute)), book: book("10000", "0", "100"), hist: accepted, want: ReasonTooSoon},
		{
			name: "high volatility",
			d:    buy(0.7, t0),
			book: book("10000", "0", "100"),
			cond: indicator.Conditions{HasVolatility: true, Volatility: 0.05},
			want: ReasonHighVolatility,
		},
		{name: "high risk", d: highRisk, book: book("10000", "0", "100"), want: ReasonHighRisk},
		{name: "overbought", d: buy(0.9, t0), book: book("10000", "0", "100"), cond: indicator.Conditions{HasRSI: true, RSI: 75}, want: ReasonOverbought},
		{name: "oversold", d: sell, book: book("10000", "5", "100"), cond: indicator.Conditions{HasRSI: true, RSI: 25}, want: ReasonOversold},
		{name: "sell when flat", d: sell, book: book("10000", "0", "100"), want: ReasonSizeTooSmall},
		{name: "position at limit", d: buy(0.9, t0), book: book("7500", "25", "100"), want: ReasonSizeTooSmall},
		{name: "price too high for one unit", d: buy(0.9, t0), book: book("1000", "0", "2000"), want: ReasonSizeTooSmall},
	}
	gate := NewGate(nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := gate.Evaluate(tc.d, tc.book, tc.cond, tc.hist, baseConfig())
			assert.False(t, v.Accepted)
			assert.Equal(t, tc.want, v.Reason)
			assert.Nil(t, v.Order)
			assert.NotEmpty(t, v.Detail)
		})
	}
}

func TestEvaluateCheckOrder(t *testing.T) {
	// 同时触发低置信度和超买时，先报低置信度。
	v := NewGate(nil).Evaluate(buy(0.1, t0), book("10000", "0", "100"), indicator.Conditions{HasRSI: true, RSI: 99}, nil, baseConfig())
	assert.Equal(t, ReasonLowConfidence, v.Reason)
}

func TestIntervalCountsAcceptedOnly(t *testing.T) {
	hist := decision.NewHistory(10)
	require.NoError(t, hist.Append(decision.Record{Decision: buy(0.9, t0), Outcome: decision.OutcomeRejected, Reason: string(ReasonOverbought)}))

	v := NewGate(nil).Evaluate(buy(0.9, t0.Add(10*time.Minute)), book("10000", "0", "100"), indicator.Conditions{}, hist, baseConfig())
	assert.True(t, v.Accepted)

	require.NoError(t, hist.Append(decision.Record{Decision: buy(0.9, t0.Add(20*time.Minute)), Outcome: decision.OutcomeAccepted}))
	v = NewGate(nil).Evaluate(buy(0.9, t0.Add(50*time.Minute)), book("10000", "0", "100"), indicator.Conditions{}, hist, baseConfig())
	assert.True(t, v.Accepted, "exactly the minimum interval is allowed")
}

func TestHighVolatilityWithStrongConfidence(t *testing.T) {
	cond := indicator.Conditions{HasVolatility: true, Volatility: 0.05}
	v := NewGate(nil).Evaluate(buy(0.85, t0), book("10000", "0", "100"), cond, nil, baseConfig())
	assert.True(t, v.Accepted)
}

func TestSizing(t *testing.T) {
	gate := NewGate(nil)
	cfg := baseConfig()

	t.Run("risk per trade bound", func(t *testing.T) {
		v := gate.Evaluate(buy(0.9, t0), book("10000", "0", "100"), indicator.Conditions{}, nil, cfg)
		require.True(t, v.Accepted)
		assert.True(t, v.Order.Quantity.Equal(dec("10")), "qty %s", v.Order.Quantity)
		assert.Equal(t, types.SideBuy, v.Order.Side)
		assert.Equal(t, types.OrderTypeMarket, v.Order.Type)
		assert.Equal(t, "AAPL", v.Order.Symbol)
		assert.Equal(t, t0, v.Order.CreatedAt)
		assert.Empty(t, v.Order.ID)
	})
	t.Run("position limit bound", func(t *testing.T) {
		b := book("8000", "20", "100")
		v := gate.Evaluate(buy(0.9, t0), b, indicator.Conditions{}, nil, cfg)
		require.True(t, v.Accepted)
		assert.True(t, v.Order.Quantity.Equal(dec("5")), "qty %s", v.Order.Quantity)
		after := b.Quantity.Add(v.Order.Quantity).Mul(b.Price)
		assert.True(t, after.LessThanOrEqual(b.Equity.Mul(cfg.MaxPositionPct)))
	})
	t.Run("fractional step", func(t *testing.T) {
		c := cfg
		c.QuantityStep = dec("0.01")
		v := gate.Evaluate(buy(0.9, t0), book("1000", "0", "2000"), indicator.Conditions{}, nil, c)
		require.True(t, v.Accepted)
		assert.True(t, v.Order.Quantity.Equal(dec("0.05")), "qty %s", v.Order.Quantity)
	})
	t.Run("sell closes the position", func(t *testing.T) {
		d := buy(0.9, t0)
		d.Action = decision.ActionSell
		v := gate.Evaluate(d, book("100", "7.5", "100"), indicator.Conditions{}, nil, cfg)
		require.True(t, v.Accepted)
		assert.Equal(t, types.SideSell, v.Order.Side)
		assert.True(t, v.Order.Quantity.Equal(dec("7.5")))
	})
}

type fixedCosts struct{}

// EstimateBuyCost 模拟 1% 滑点加 5 的固定手续费。
func (fixedCosts) EstimateBuyCost(qty, ref decimal.Decimal) decimal.Decimal {
	return qty.Mul(ref).Mul(dec("1.01")).Add(dec("5"))
}

func TestBuyAtPositionCap(t *testing.T) {
	v := NewGate(nil).Evaluate(buy(0.9, t0), book("7000", "30", "100"), indicator.Conditions{}, decision.NewHistory(10), baseConfig())

	assert.False(t, v.Accepted)
	assert.Equal(t, ReasonSizeTooSmall, v.Reason)
	assert.Contains(t, v.Detail, "max_position_pct cap")
	assert.Nil(t, v.Order)
}

func TestSizingShrinksToAffordable(t *testing.T) {
	cfg := baseConfig()
	cfg.RiskPerTrade = dec("1")
	cfg.MaxPositionPct = dec("1")
	v := NewGate(fixedCosts{}).Evaluate(buy(0.9, t0), book("1000", "0", "100"), indicator.Conditions{}, nil, cfg)
	require.True(t, v.Accepted)
	assert.True(t, v.Order.Quantity.Equal(dec("9")), "qty %s", v.Order.Quantity)
	assert.True(t, fixedCosts{}.EstimateBuyCost(v.Order.Quantity, dec("100")).LessThanOrEqual(dec("1000")))
}

func TestEvaluateDeterministic(t *testing.T) {
	hist := decision.NewHistory(0)
	require.NoError(t, hist.Append(decision.Record{Decision: buy(0.9, t0), Outcome: decision.OutcomeAccepted}))
	d := buy(0.75, t0.Add(time.Hour))
	b := book("5000", "3", "123.45")
	cond := indicator.Conditions{HasVolatility: true, Volatility: 0.02, HasRSI: true, RSI: 55}
	gate := NewGate(nil)

	first := gate.Evaluate(d, b, cond, hist, baseConfig())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, gate.Evaluate(d, b, cond, hist, baseConfig()))
	}
	assert.Equal(t, 1, hist.Len(), "evaluate must not record history")
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, baseConfig().Validate())
	mutations := map[string]func(*Config){
		"confidence":   func(c *Config) { c.MinConfidence = 1.5 },
		"risk":         func(c *Config) { c.RiskPerTrade = dec("0") },
		"max position": func(c *Config) { c.MaxPositionPct = dec("1.5") },
		"rsi order":    func(c *Config) { c.RSIOversold = 80 },
		"step":         func(c *Config) { c.QuantityStep = decimal.Zero },
		"interval":     func(c *Config) { c.MinDecisionInterval = -time.Second },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			c := baseConfig()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
