package notionConverter

import (
	"fmt"

	"github.com/ktimofeev/robinfolio/internal/model"
	"github.com/ktimofeev/robinfolio/internal/model/notionModel"
)

// Property names of the three Notion databases. The databases themselves
// are set up by hand once; the sync only fills them.
const (
	PropStock       = "Stock"
	PropOrder       = "Order"
	PropOrderID     = "Order ID"
	PropOrderDate   = "Order date"
	PropType        = "Type"
	PropShares      = "Shares"
	PropUnitCost    = "Unit cost"
	PropFee         = "Fee"
	PropOpenShares  = "Open shares"
	PropAvgUnitCost = "Avg unit cost"
	PropRealized    = "Realized gain"
	PropUnrealized  = "Unrealized gain"
	PropPrice       = "Current price"
	PropStale       = "Needs review"
	PropLotID       = "Lot ID"
	PropCostBasis   = "Cost basis"
	PropProceeds    = "Proceeds"
	PropGain        = "Gain"
	PropSellOrder   = "Sell order"
	PropSoldFrom    = "Lots sold from"
)

// ConvertSummary maps a security summary onto the summary database row
// titled by the ticker symbol.
func ConvertSummary(s model.SecuritySummary) map[string]notionModel.Property {
	props := map[string]notionModel.Property{
		PropStock:       notionModel.TitleProp(s.Ticker),
		PropOpenShares:  notionModel.NumberProp(s.OpenQuantity.InexactFloat64()),
		PropAvgUnitCost: notionModel.NumberProp(s.AvgUnitCost.Round(4).InexactFloat64()),
		PropRealized:    notionModel.NumberProp(s.RealizedGain.Round(2).InexactFloat64()),
		PropStale:       notionModel.CheckboxProp(s.Stale),
	}

	if s.HasPrice {
		props[PropPrice] = notionModel.NumberProp(s.CurrentPrice.Round(4).InexactFloat64())
		props[PropUnrealized] = notionModel.NumberProp(s.UnrealizedGain.Round(2).InexactFloat64())
	}

	return props
}

// ConvertOrder maps a pass-through order onto the orders database row,
// related to its stock page in the summary database. Fee is only a sell
// side property in the original schema, buy fees are already folded into
// the unit cost.
func ConvertOrder(o model.Order, stockPageID string) map[string]notionModel.Property {
	props := map[string]notionModel.Property{
		PropOrder:     notionModel.TitleProp(o.Name()),
		PropOrderID:   notionModel.TextProp(o.ID),
		PropOrderDate: notionModel.DateProp(o.ExecutedAt),
		PropType:      notionModel.SelectProp(string(o.Side)),
		PropShares:    notionModel.NumberProp(o.Quantity.InexactFloat64()),
		PropUnitCost:  notionModel.NumberProp(o.Price.Round(4).InexactFloat64()),
		PropStock:     notionModel.RelationProp(stockPageID),
	}

	if o.Side == model.Sell {
		props[PropFee] = notionModel.NumberProp(o.Fees.Round(4).InexactFloat64())
	}

	return props
}

// ConvertSellLot maps one (sell, lot) match onto the sell lots database
// row. seq numbers the lots of one sell order from 1, giving titles like
// "2021/10/18 ABT SELL 12 @ $15.0000 -2".
func ConvertSellLot(sell model.Order, sl model.SellLot, seq int, sellPageID, buyPageID string) map[string]notionModel.Property {
	return map[string]notionModel.Property{
		PropOrder:     notionModel.TitleProp(fmt.Sprintf("%s -%d", sell.Name(), seq)),
		PropLotID:     notionModel.TextProp(sl.Key()),
		PropShares:    notionModel.NumberProp(sl.Quantity.InexactFloat64()),
		PropCostBasis: notionModel.NumberProp(sl.CostBasis.Round(2).InexactFloat64()),
		PropProceeds:  notionModel.NumberProp(sl.Proceeds.Round(2).InexactFloat64()),
		PropFee:       notionModel.NumberProp(sl.FeeShare.InexactFloat64()),
		PropGain:      notionModel.NumberProp(sl.Gain.Round(2).InexactFloat64()),
		PropSellOrder: notionModel.RelationProp(sellPageID),
		PropSoldFrom:  notionModel.RelationProp(buyPageID),
	}
}
