package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Order is one filled brokerage transaction, normalized from the raw
// Robinhood payload. ID is assigned by the brokerage and immutable.
type Order struct {
	ID         string
	Ticker     string
	Side       Side
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Fees       decimal.Decimal
	ExecutedAt time.Time
}

// Name builds the display title used for the order page in Notion,
// e.g. "2021/10/18 ABT BUY 10 @ $121.5000".
func (o Order) Name() string {
	return fmt.Sprintf(
		"%s %s %s %s @ $%s",
		o.ExecutedAt.Format("2006/01/02"),
		o.Ticker,
		o.Side,
		o.Quantity.String(),
		o.Price.StringFixed(4),
	)
}
