package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktimofeev/robinfolio/internal/ledger"
	"github.com/ktimofeev/robinfolio/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testOrder(id, ticker string, side model.Side, qty, price string, executedAt string) model.Order {
	ts, err := time.Parse(time.RFC3339, executedAt)
	if err != nil {
		panic(err)
	}
	return model.Order{
		ID:         id,
		Ticker:     ticker,
		Side:       side,
		Quantity:   d(qty),
		Price:      d(price),
		Fees:       decimal.Zero,
		ExecutedAt: ts,
	}
}

func testHistory() []model.Order {
	return []model.Order{
		testOrder("abt-b1", "ABT", model.Buy, "10", "10", "2021-01-04T15:00:00Z"),
		testOrder("abt-s1", "ABT", model.Sell, "4", "12", "2021-01-05T15:00:00Z"),
		testOrder("goog-b1", "GOOG", model.Buy, "2", "100", "2021-01-04T16:00:00Z"),
		testOrder("goog-b2", "GOOG", model.Buy, "1", "110", "2021-01-06T16:00:00Z"),
	}
}

func TestRun_ProducesResultPerSecurity(t *testing.T) {
	r := New(ledger.FIFO, 4)

	results, report, err := r.Run(context.Background(), testHistory(), nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// results are ordered by ticker
	assert.Equal(t, "ABT", results[0].Ticker)
	assert.Equal(t, "GOOG", results[1].Ticker)

	abt := results[0]
	assert.True(t, abt.Summary.OpenQuantity.Equal(d("6")), "open %s", abt.Summary.OpenQuantity)
	assert.True(t, abt.Summary.RealizedGain.Equal(d("8")), "realized %s", abt.Summary.RealizedGain)
	assert.Len(t, abt.Orders, 2)
	assert.Len(t, abt.SellLots, 1)
	assert.Equal(t, "abt-s1", abt.Checkpoint)

	goog := results[1]
	assert.True(t, goog.Summary.OpenQuantity.Equal(d("3")), "open %s", goog.Summary.OpenQuantity)
	assert.Empty(t, goog.SellLots)
	assert.Equal(t, "goog-b2", goog.Checkpoint)

	assert.ElementsMatch(t, []string{"ABT", "GOOG"}, report.Succeeded)
	assert.Empty(t, report.Failed)
}

func TestRun_CheckpointTrimsOutputNotSummary(t *testing.T) {
	r := New(ledger.FIFO, 1)

	full, _, err := r.Run(context.Background(), testHistory(), nil, nil)
	require.NoError(t, err)

	checkpoints := map[string]string{"ABT": "abt-s1", "GOOG": "goog-b1"}
	incremental, _, err := r.Run(context.Background(), testHistory(), checkpoints, nil)
	require.NoError(t, err)
	require.Len(t, incremental, 2)

	abt := incremental[0]
	assert.Empty(t, abt.Orders)
	assert.Empty(t, abt.SellLots)
	// the summary always reflects the whole history
	assert.Equal(t, full[0].Summary, abt.Summary)

	goog := incremental[1]
	require.Len(t, goog.Orders, 1)
	assert.Equal(t, "goog-b2", goog.Orders[0].ID)
	assert.Equal(t, full[1].Summary, goog.Summary)
}

func TestRun_UnknownCheckpointResyncsEverything(t *testing.T) {
	r := New(ledger.FIFO, 1)

	results, _, err := r.Run(context.Background(), testHistory(), map[string]string{"ABT": "gone"}, nil)
	require.NoError(t, err)
	assert.Len(t, results[0].Orders, 2)
}

func TestRun_FaultIsolation(t *testing.T) {
	history := append(testHistory(),
		testOrder("fail-s1", "FAIL", model.Sell, "5", "10", "2021-01-04T15:00:00Z"),
	)

	r := New(ledger.FIFO, 4)

	results, report, err := r.Run(context.Background(), history, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	var fail model.SecurityResult
	for _, res := range results {
		if res.Ticker == "FAIL" {
			fail = res
		}
	}

	require.ErrorIs(t, fail.Err, ledger.ErrInsufficientLots)
	assert.True(t, fail.Summary.Stale)

	assert.ElementsMatch(t, []string{"ABT", "GOOG"}, report.Succeeded)
	assert.Contains(t, report.Failed, "FAIL")
}

func TestRun_UsesProvidedQuotes(t *testing.T) {
	r := New(ledger.FIFO, 2)

	prices := map[string]decimal.Decimal{"ABT": d("11")}

	results, _, err := r.Run(context.Background(), testHistory(), nil, prices)
	require.NoError(t, err)

	abt := results[0]
	require.True(t, abt.Summary.HasPrice)
	// 6 open @ $10, quoted $11
	assert.True(t, abt.Summary.UnrealizedGain.Equal(d("6")), "unrealized %s", abt.Summary.UnrealizedGain)

	assert.False(t, results[1].Summary.HasPrice)
}

func TestRun_RejectsConflictingHistory(t *testing.T) {
	a := testOrder("abt-b1", "ABT", model.Buy, "10", "10", "2021-01-04T15:00:00Z")
	conflicting := a
	conflicting.Price = d("11")

	r := New(ledger.FIFO, 1)

	_, _, err := r.Run(context.Background(), []model.Order{a, conflicting}, nil, nil)
	require.ErrorIs(t, err, ledger.ErrOrderConflict)
}

func TestRun_Idempotent(t *testing.T) {
	r := New(ledger.FIFO, 4)

	results1, _, err1 := r.Run(context.Background(), testHistory(), nil, nil)
	results2, _, err2 := r.Run(context.Background(), testHistory(), nil, nil)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, results1, results2)
}
