package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot is the still-open part of one BUY order. Remaining only decreases;
// a lot at zero is retired from the working set.
type Lot struct {
	BuyOrderID string
	Ticker     string
	Remaining  decimal.Decimal
	UnitCost   decimal.Decimal // price + buy fee allocated per share
	AcquiredAt time.Time
}

// SellLot is the match of one SELL order against one open lot.
// One sell order produces one or more SellLots, in lot-consumption order.
type SellLot struct {
	SellOrderID string
	BuyOrderID  string
	Ticker      string
	Quantity    decimal.Decimal
	CostBasis   decimal.Decimal // UnitCost of the matched lot × Quantity
	Proceeds    decimal.Decimal // sell price × Quantity
	FeeShare    decimal.Decimal // pro-rata slice of the sell order's fee
	Gain        decimal.Decimal // Proceeds − CostBasis − FeeShare
	SoldAt      time.Time
}

// Key is the stable upsert identifier for the sell lots database.
func (l SellLot) Key() string {
	return l.SellOrderID + ":" + l.BuyOrderID
}
