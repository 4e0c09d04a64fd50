package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ktimofeev/robinfolio/internal/model"
)

// feePrecision is the scale fee shares are rounded to (cents).
const feePrecision = 2

// MatchLots replays one security's orders (already normalized, see
// NormalizeOrders) and matches every sell against the open lots under the
// given cost basis method. It returns the generated sell lots and the lots
// still open at the end of the history.
//
// A sell that exceeds the total open quantity yields the partial match plus
// an ErrInsufficientLots fault; matching continues with the remaining orders
// so the caller still gets a complete picture of the security. No negative
// lot is ever fabricated.
func MatchLots(orders []model.Order, method CostBasisMethod) ([]model.SellLot, []model.Lot, error) {
	// Open lots live in an append-only arena; FIFO consumes from the head,
	// LIFO from the tail. Retired lots stay in place with zero remaining.
	arena := make([]model.Lot, 0, len(orders))
	head := 0

	var sellLots []model.SellLot
	var matchErr error

	for _, o := range orders {
		if o.Side == model.Buy {
			arena = append(arena, model.Lot{
				BuyOrderID: o.ID,
				Ticker:     o.Ticker,
				Remaining:  o.Quantity,
				UnitCost:   o.Price.Add(o.Fees.Div(o.Quantity)),
				AcquiredAt: o.ExecutedAt,
			})
			continue
		}

		entries, unmatched := consume(arena, &head, o, method)
		sellLots = append(sellLots, allocateFee(entries, o)...)

		if unmatched.IsPositive() && matchErr == nil {
			matchErr = fmt.Errorf(
				"%w: order %s sells %s of %s, %s unmatched",
				ErrInsufficientLots, o.ID, o.Quantity, o.Ticker, unmatched,
			)
		}
	}

	open := make([]model.Lot, 0, len(arena)-head)
	for _, lot := range arena[head:] {
		if lot.Remaining.IsPositive() {
			open = append(open, lot)
		}
	}

	return sellLots, open, matchErr
}

// consume takes shares for one sell order out of the arena and returns the
// raw (sell, lot) entries with fee and gain still unset, plus the quantity
// that could not be matched.
func consume(arena []model.Lot, head *int, sell model.Order, method CostBasisMethod) ([]model.SellLot, decimal.Decimal) {
	var entries []model.SellLot
	left := sell.Quantity

	for left.IsPositive() {
		idx, ok := nextLot(arena, head, method)
		if !ok {
			break
		}

		lot := &arena[idx]
		qty := decimal.Min(left, lot.Remaining)

		entries = append(entries, model.SellLot{
			SellOrderID: sell.ID,
			BuyOrderID:  lot.BuyOrderID,
			Ticker:      sell.Ticker,
			Quantity:    qty,
			CostBasis:   lot.UnitCost.Mul(qty),
			Proceeds:    sell.Price.Mul(qty),
			SoldAt:      sell.ExecutedAt,
		})

		lot.Remaining = lot.Remaining.Sub(qty)
		left = left.Sub(qty)
	}

	return entries, left
}

// nextLot picks the lot the current method consumes from, skipping retired
// lots. For FIFO the head index advances past retired lots so the scan stays
// amortized linear over the whole history.
func nextLot(arena []model.Lot, head *int, method CostBasisMethod) (int, bool) {
	switch method {
	case LIFO:
		for i := len(arena) - 1; i >= *head; i-- {
			if arena[i].Remaining.IsPositive() {
				return i, true
			}
		}
	default:
		for *head < len(arena) {
			if arena[*head].Remaining.IsPositive() {
				return *head, true
			}
			*head++
		}
	}
	return 0, false
}

// allocateFee spreads the sell order's fee pro-rata by matched quantity,
// rounds each share to cents and folds the rounding residual into the last
// entry so the shares always sum to the exact fee. Gains are finalized here.
func allocateFee(entries []model.SellLot, sell model.Order) []model.SellLot {
	if len(entries) == 0 {
		return entries
	}

	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Quantity)
	}

	allocated := decimal.Zero
	for i := range entries {
		var share decimal.Decimal
		if i == len(entries)-1 {
			share = sell.Fees.Sub(allocated)
		} else {
			share = sell.Fees.Mul(entries[i].Quantity).Div(total).Round(feePrecision)
			allocated = allocated.Add(share)
		}
		entries[i].FeeShare = share
		entries[i].Gain = entries[i].Proceeds.Sub(entries[i].CostBasis).Sub(share)
	}

	return entries
}
