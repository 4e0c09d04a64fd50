package robinhoodModel

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrdersPage is one page of GET /orders/. Next carries the cursor URL of
// the following page, empty on the last one.
type OrdersPage struct {
	Next    string     `json:"next"`
	Results []RawOrder `json:"results"`
}

// RawOrder is the order payload as Robinhood returns it: decimals as
// strings, the security referenced by instrument ID only.
type RawOrder struct {
	ID                 string    `json:"id"`
	Side               string    `json:"side"`
	State              string    `json:"state"`
	InstrumentID       string    `json:"instrument_id"`
	AveragePrice       string    `json:"average_price"`
	Fees               string    `json:"fees"`
	CumulativeQuantity string    `json:"cumulative_quantity"`
	LastTransactionAt  time.Time `json:"last_transaction_at"`
}

type Instrument struct {
	Symbol     string `json:"symbol"`
	SimpleName string `json:"simple_name"`
}

type RawQuote struct {
	Symbol         string `json:"symbol"`
	LastTradePrice string `json:"last_trade_price"`
}

type Quote struct {
	Ticker string
	Price  decimal.Decimal
}
