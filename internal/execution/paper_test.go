package execution

import (
	"context"
	"testing"
	"time"

	"autotrader/internal/ledger"
	"autotrader/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func order(side types.Side, qty string) types.Order {
	return types.Order{
		ID:        "o-1",
		Symbol:    "AAPL",
		Side:      side,
		Quantity:  dec(qty),
		Type:      types.OrderTypeMarket,
		CreatedAt: time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC),
	}
}

func newBroker(t *testing.T, cash, bps string, commission CommissionModel) (*PaperBroker, *ledger.Ledger) {
	t.Helper()
	l, err := ledger.New("AAPL", dec(cash))
	require.NoError(t, err)
	b, err := NewPaperBroker(l, PaperConfig{SlippageBps: dec(bps), Commission: commission})
	require.NoError(t, err)
	return b, l
}

func TestPaperBrokerFullFill(t *testing.T) {
	b, l := newBroker(t, "10000", "50", CommissionModel{Mode: CommissionFlat, Value: dec("1")})

	fill, err := b.Submit(context.Background(), order(types.SideBuy, "10"), dec("100"))
	require.NoError(t, err)

	assert.True(t, fill.Price.Equal(dec("100.5")), "fill price %s", fill.Price)
	assert.True(t, fill.Quantity.Equal(dec("10")))
	assert.True(t, fill.Commission.Equal(dec("1")))
	assert.Equal(t, "o-1", fill.OrderRef)
	assert.True(t, l.Cash().Equal(dec("8994")), "cash %s", l.Cash())
	assert.True(t, l.Position().Quantity.Equal(dec("10")))
	assert.True(t, l.Position().AverageCost.Equal(dec("100.5")))
}

func TestSlippageDirection(t *testing.T) {
	refs := []string{"0.01", "1", "99.99", "100", "43123.57"}
	bps := []string{"0", "1", "5", "50", "250"}
	for _, r := range refs {
		for _, s := range bps {
			ref := dec(r)
			buy := SlippagePrice(types.SideBuy, ref, dec(s))
			sell := SlippagePrice(types.SideSell, ref, dec(s))
			assert.True(t, buy.GreaterThanOrEqual(ref), "buy %s bps=%s ref=%s", buy, s, r)
			assert.True(t, sell.LessThanOrEqual(ref), "sell %s bps=%s ref=%s", sell, s, r)
		}
	}
}

func TestCommissionModel(t *testing.T) {
	flat := CommissionModel{Mode: CommissionFlat, Value: dec("2.5")}
	rate := CommissionModel{Mode: CommissionRate, Value: dec("0.001")}
	assert.True(t, flat.For(dec("1000")).Equal(dec("2.5")))
	assert.True(t, rate.For(dec("1000")).Equal(dec("1")))
	assert.Error(t, CommissionModel{Mode: "tiered"}.Validate())
	assert.Error(t, CommissionModel{Mode: CommissionFlat, Value: dec("-1")}.Validate())

	assert.NoError(t, CommissionModel{}.Validate())
	assert.True(t, CommissionModel{Value: dec("3")}.For(dec("1000")).Equal(dec("3")))

	mode, err := ParseCommissionMode("RATE")
	require.NoError(t, err)
	assert.Equal(t, CommissionRate, mode)
	_, err = ParseCommissionMode("bogus")
	assert.Error(t, err)
}

func TestPaperBrokerRejectsBeforeLedger(t *testing.T) {
	t.Run("insufficient funds", func(t *testing.T) {
		b, l := newBroker(t, "1000", "50", CommissionModel{Mode: CommissionFlat, Value: dec("1")})
		_, err := b.Submit(context.Background(), order(types.SideBuy, "10"), dec("100"))
		assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
		assert.True(t, l.Cash().Equal(dec("1000")))
		assert.True(t, l.Position().Flat())
	})
	t.Run("insufficient position", func(t *testing.T) {
		b, l := newBroker(t, "1000", "0", CommissionModel{Mode: CommissionFlat})
		_, err := b.Submit(context.Background(), order(types.SideSell, "1"), dec("100"))
		assert.ErrorIs(t, err, ledger.ErrInsufficientPosition)
		assert.True(t, l.Cash().Equal(dec("1000")))
	})
	t.Run("cancelled context", func(t *testing.T) {
		b, l := newBroker(t, "1000", "0", CommissionModel{Mode: CommissionFlat})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := b.Submit(ctx, order(types.SideBuy, "1"), dec("100"))
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, l.Cash().Equal(dec("1000")))
	})
	t.Run("invalid order", func(t *testing.T) {
		b, _ := newBroker(t, "1000", "0", CommissionModel{Mode: CommissionFlat})
		_, err := b.Submit(context.Background(), order(types.SideBuy, "0"), dec("100"))
		assert.Error(t, err)
	})
}

func TestPaperBrokerRoundTripWithRateCommission(t *testing.T) {
	b, l := newBroker(t, "10000", "10", CommissionModel{Mode: CommissionRate, Value: dec("0.001")})
	buy, err := b.Submit(context.Background(), order(types.SideBuy, "20"), dec("200"))
	require.NoError(t, err)
	sell, err := b.Submit(context.Background(), order(types.SideSell, "20"), dec("200"))
	require.NoError(t, err)

	assert.True(t, sell.Price.LessThan(buy.Price))
	expected := dec("10000").
		Sub(buy.Notional().Add(buy.Commission)).
		Add(sell.Notional().Sub(sell.Commission))
	assert.True(t, l.Cash().Equal(expected))
	assert.True(t, l.Cash().LessThan(dec("10000")), "a round trip always costs slippage and fees")
	assert.True(t, l.Position().Flat())
}

func TestEstimateBuyCost(t *testing.T) {
	b, _ := newBroker(t, "10000", "50", CommissionModel{Mode: CommissionFlat, Value: dec("1")})
	assert.True(t, b.EstimateBuyCost(dec("10"), dec("100")).Equal(dec("1006")))
}

func TestSequenceGenerator(t *testing.T) {
	gen := SequenceGenerator("bt-")
	assert.Equal(t, "bt-1", gen())
	assert.Equal(t, "bt-2", gen())
	assert.NotEqual(t, UUIDGenerator()(), UUIDGenerator()())
}
