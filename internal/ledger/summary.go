package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/ktimofeev/robinfolio/internal/model"
)

// Summarize folds the final open lots and the full sell-lot history of one
// security into its summary row. Pure function: same inputs, same summary.
//
// Unrealized gain needs a live quote the ledger does not own; pass nil when
// no quote is available and the summary reports realized figures only.
func Summarize(ticker string, open []model.Lot, sellLots []model.SellLot, price *decimal.Decimal) model.SecuritySummary {
	s := model.SecuritySummary{
		Ticker:         ticker,
		OpenQuantity:   decimal.Zero,
		AvgUnitCost:    decimal.Zero,
		RealizedGain:   decimal.Zero,
		UnrealizedGain: decimal.Zero,
	}

	openCost := decimal.Zero
	for _, lot := range open {
		s.OpenQuantity = s.OpenQuantity.Add(lot.Remaining)
		openCost = openCost.Add(lot.UnitCost.Mul(lot.Remaining))
	}
	if s.OpenQuantity.IsPositive() {
		s.AvgUnitCost = openCost.Div(s.OpenQuantity)
	}

	for _, sl := range sellLots {
		s.RealizedGain = s.RealizedGain.Add(sl.Gain)
	}

	if price != nil {
		s.HasPrice = true
		s.CurrentPrice = *price
		s.UnrealizedGain = s.OpenQuantity.Mul(price.Sub(s.AvgUnitCost))
	}

	return s
}
