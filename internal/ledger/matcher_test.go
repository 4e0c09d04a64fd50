package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktimofeev/robinfolio/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testOrder(id string, side model.Side, qty, price, fees string, executedAt string) model.Order {
	ts, err := time.Parse(time.RFC3339, executedAt)
	if err != nil {
		panic(err)
	}
	return model.Order{
		ID:         id,
		Ticker:     "ABT",
		Side:       side,
		Quantity:   d(qty),
		Price:      d(price),
		Fees:       d(fees),
		ExecutedAt: ts,
	}
}

func TestMatchLots_FIFOWithFees(t *testing.T) {
	// buy 10 @ $10 (fee $1), buy 5 @ $12, sell 12 @ $15 (fee $1.20)
	orders := []model.Order{
		testOrder("b1", model.Buy, "10", "10", "1", "2021-01-04T15:00:00Z"),
		testOrder("b2", model.Buy, "5", "12", "0", "2021-02-01T15:00:00Z"),
		testOrder("s1", model.Sell, "12", "15", "1.20", "2021-03-01T15:00:00Z"),
	}

	sellLots, open, err := MatchLots(orders, FIFO)
	require.NoError(t, err)
	require.Len(t, sellLots, 2)

	first := sellLots[0]
	assert.Equal(t, "s1", first.SellOrderID)
	assert.Equal(t, "b1", first.BuyOrderID)
	assert.True(t, first.Quantity.Equal(d("10")), "quantity %s", first.Quantity)
	// unit cost basis 10 + 1/10 = 10.10
	assert.True(t, first.CostBasis.Equal(d("101")), "cost basis %s", first.CostBasis)
	assert.True(t, first.Proceeds.Equal(d("150")), "proceeds %s", first.Proceeds)
	assert.True(t, first.FeeShare.Equal(d("1.00")), "fee share %s", first.FeeShare)
	assert.True(t, first.Gain.Equal(d("48")), "gain %s", first.Gain)

	second := sellLots[1]
	assert.Equal(t, "b2", second.BuyOrderID)
	assert.True(t, second.Quantity.Equal(d("2")), "quantity %s", second.Quantity)
	assert.True(t, second.CostBasis.Equal(d("24")), "cost basis %s", second.CostBasis)
	assert.True(t, second.FeeShare.Equal(d("0.20")), "fee share %s", second.FeeShare)
	assert.True(t, second.Gain.Equal(d("5.80")), "gain %s", second.Gain)

	require.Len(t, open, 1)
	assert.Equal(t, "b2", open[0].BuyOrderID)
	assert.True(t, open[0].Remaining.Equal(d("3")), "remaining %s", open[0].Remaining)
	assert.True(t, open[0].UnitCost.Equal(d("12")), "unit cost %s", open[0].UnitCost)
}

func TestMatchLots_FeeRounding(t *testing.T) {
	// $1 fee split pro-rata over a 10/2 match rounds to 0.83/0.17, total exact
	orders := []model.Order{
		testOrder("b1", model.Buy, "10", "5", "0", "2021-01-04T15:00:00Z"),
		testOrder("b2", model.Buy, "2", "5", "0", "2021-01-05T15:00:00Z"),
		testOrder("s1", model.Sell, "12", "6", "1", "2021-01-06T15:00:00Z"),
	}

	sellLots, _, err := MatchLots(orders, FIFO)
	require.NoError(t, err)
	require.Len(t, sellLots, 2)

	assert.True(t, sellLots[0].FeeShare.Equal(d("0.83")), "fee share %s", sellLots[0].FeeShare)
	assert.True(t, sellLots[1].FeeShare.Equal(d("0.17")), "fee share %s", sellLots[1].FeeShare)

	total := sellLots[0].FeeShare.Add(sellLots[1].FeeShare)
	assert.True(t, total.Equal(d("1")), "total fee %s", total)
}

func TestMatchLots_InsufficientLots(t *testing.T) {
	// 15 shares ever bought, 20 sold: partial match of 15, no negative lot
	orders := []model.Order{
		testOrder("b1", model.Buy, "10", "10", "0", "2021-01-04T15:00:00Z"),
		testOrder("b2", model.Buy, "5", "11", "0", "2021-01-05T15:00:00Z"),
		testOrder("s1", model.Sell, "20", "12", "0", "2021-01-06T15:00:00Z"),
	}

	sellLots, open, err := MatchLots(orders, FIFO)
	require.ErrorIs(t, err, ErrInsufficientLots)
	require.Len(t, sellLots, 2)

	matched := sellLots[0].Quantity.Add(sellLots[1].Quantity)
	assert.True(t, matched.Equal(d("15")), "matched %s", matched)
	assert.Empty(t, open)
}

func TestMatchLots_SellWithNoPriorBuys(t *testing.T) {
	orders := []model.Order{
		testOrder("s1", model.Sell, "5", "12", "0", "2021-01-06T15:00:00Z"),
	}

	sellLots, open, err := MatchLots(orders, FIFO)
	require.ErrorIs(t, err, ErrInsufficientLots)
	assert.Empty(t, sellLots)
	assert.Empty(t, open)
}

func TestMatchLots_SellExactlyEmptiesLastLot(t *testing.T) {
	orders := []model.Order{
		testOrder("b1", model.Buy, "10", "10", "0", "2021-01-04T15:00:00Z"),
		testOrder("s1", model.Sell, "10", "12", "0", "2021-01-05T15:00:00Z"),
	}

	sellLots, open, err := MatchLots(orders, FIFO)
	require.NoError(t, err)
	require.Len(t, sellLots, 1)
	assert.True(t, sellLots[0].Gain.Equal(d("20")), "gain %s", sellLots[0].Gain)
	assert.Empty(t, open)
}

func TestMatchLots_FIFOConsumesEarlierLotsFirst(t *testing.T) {
	orders := []model.Order{
		testOrder("b1", model.Buy, "3", "10", "0", "2021-01-04T15:00:00Z"),
		testOrder("b2", model.Buy, "3", "11", "0", "2021-01-05T15:00:00Z"),
		testOrder("s1", model.Sell, "2", "12", "0", "2021-01-06T15:00:00Z"),
		testOrder("b3", model.Buy, "3", "12", "0", "2021-01-07T15:00:00Z"),
		testOrder("s2", model.Sell, "5", "12", "0", "2021-01-08T15:00:00Z"),
	}

	sellLots, open, err := MatchLots(orders, FIFO)
	require.NoError(t, err)

	gotBuyIDs := make([]string, 0, len(sellLots))
	for _, sl := range sellLots {
		gotBuyIDs = append(gotBuyIDs, sl.BuyOrderID)
	}
	assert.Equal(t, []string{"b1", "b1", "b2", "b3"}, gotBuyIDs)

	require.Len(t, open, 1)
	assert.Equal(t, "b3", open[0].BuyOrderID)
	assert.True(t, open[0].Remaining.Equal(d("2")), "remaining %s", open[0].Remaining)
}

func TestMatchLots_LIFOConsumesLatestLotsFirst(t *testing.T) {
	orders := []model.Order{
		testOrder("b1", model.Buy, "5", "10", "0", "2021-01-04T15:00:00Z"),
		testOrder("b2", model.Buy, "5", "12", "0", "2021-01-05T15:00:00Z"),
		testOrder("s1", model.Sell, "6", "13", "0", "2021-01-06T15:00:00Z"),
	}

	sellLots, open, err := MatchLots(orders, LIFO)
	require.NoError(t, err)
	require.Len(t, sellLots, 2)

	assert.Equal(t, "b2", sellLots[0].BuyOrderID)
	assert.True(t, sellLots[0].Quantity.Equal(d("5")), "quantity %s", sellLots[0].Quantity)
	assert.Equal(t, "b1", sellLots[1].BuyOrderID)
	assert.True(t, sellLots[1].Quantity.Equal(d("1")), "quantity %s", sellLots[1].Quantity)

	require.Len(t, open, 1)
	assert.Equal(t, "b1", open[0].BuyOrderID)
	assert.True(t, open[0].Remaining.Equal(d("4")), "remaining %s", open[0].Remaining)
}

func TestMatchLots_FractionalShares(t *testing.T) {
	orders := []model.Order{
		testOrder("b1", model.Buy, "2.5", "100", "0", "2021-01-04T15:00:00Z"),
		testOrder("s1", model.Sell, "1.25", "110", "0", "2021-01-05T15:00:00Z"),
	}

	sellLots, open, err := MatchLots(orders, FIFO)
	require.NoError(t, err)
	require.Len(t, sellLots, 1)
	assert.True(t, sellLots[0].Gain.Equal(d("12.5")), "gain %s", sellLots[0].Gain)

	require.Len(t, open, 1)
	assert.True(t, open[0].Remaining.Equal(d("1.25")), "remaining %s", open[0].Remaining)
}

func TestMatchLots_Conservation(t *testing.T) {
	orders := []model.Order{
		testOrder("b1", model.Buy, "7", "10", "0.50", "2021-01-04T15:00:00Z"),
		testOrder("b2", model.Buy, "4.5", "11", "0", "2021-01-05T15:00:00Z"),
		testOrder("s1", model.Sell, "3", "12", "0.30", "2021-01-06T15:00:00Z"),
		testOrder("b3", model.Buy, "2", "9", "0", "2021-01-07T15:00:00Z"),
		testOrder("s2", model.Sell, "6.5", "13", "0", "2021-01-08T15:00:00Z"),
	}

	sellLots, open, err := MatchLots(orders, FIFO)
	require.NoError(t, err)

	bought := d("13.5")
	sold := decimal.Zero
	for _, sl := range sellLots {
		sold = sold.Add(sl.Quantity)
	}
	remaining := decimal.Zero
	for _, lot := range open {
		remaining = remaining.Add(lot.Remaining)
	}

	assert.True(t, sold.Add(remaining).Equal(bought), "sold %s + open %s != bought %s", sold, remaining, bought)
}

func TestMatchLots_Idempotent(t *testing.T) {
	orders := []model.Order{
		testOrder("b1", model.Buy, "10", "10", "1", "2021-01-04T15:00:00Z"),
		testOrder("b2", model.Buy, "5", "12", "0", "2021-02-01T15:00:00Z"),
		testOrder("s1", model.Sell, "12", "15", "1.20", "2021-03-01T15:00:00Z"),
	}

	sellLots1, open1, err1 := MatchLots(orders, FIFO)
	sellLots2, open2, err2 := MatchLots(orders, FIFO)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, sellLots1, sellLots2)
	assert.Equal(t, open1, open2)
}

func TestMatchLots_MatchingContinuesAfterFault(t *testing.T) {
	// the faulted sell must not poison later orders
	orders := []model.Order{
		testOrder("s1", model.Sell, "5", "10", "0", "2021-01-04T15:00:00Z"),
		testOrder("b1", model.Buy, "10", "10", "0", "2021-01-05T15:00:00Z"),
		testOrder("s2", model.Sell, "4", "11", "0", "2021-01-06T15:00:00Z"),
	}

	sellLots, open, err := MatchLots(orders, FIFO)
	require.ErrorIs(t, err, ErrInsufficientLots)

	require.Len(t, sellLots, 1)
	assert.Equal(t, "s2", sellLots[0].SellOrderID)

	require.Len(t, open, 1)
	assert.True(t, open[0].Remaining.Equal(d("6")), "remaining %s", open[0].Remaining)
}
