package model

import "github.com/shopspring/decimal"

// SecuritySummary is the per-ticker roll-up. It is recomputed in full on
// every reconciliation run, never patched in place.
type SecuritySummary struct {
	Ticker         string
	OpenQuantity   decimal.Decimal
	AvgUnitCost    decimal.Decimal // weighted mean over remaining lot quantities
	RealizedGain   decimal.Decimal
	UnrealizedGain decimal.Decimal
	CurrentPrice   decimal.Decimal
	HasPrice       bool // UnrealizedGain is meaningless without a quote
	Stale          bool // reconciliation fault left this summary incomplete
}
