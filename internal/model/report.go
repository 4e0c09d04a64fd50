package model

import "time"

// SecurityResult is one ticker's output of a reconciliation run: the
// recomputed summary plus the orders and sell lots not yet synced.
type SecurityResult struct {
	Ticker     string
	Summary    SecuritySummary
	Orders     []Order   // pass-through rows after the checkpoint
	SellLots   []SellLot // sell lots produced by orders after the checkpoint
	OpenLots   []Lot
	Checkpoint string // last order ID covered by this result
	Err        error  // reconciliation fault, nil on success
}

// RunReport summarizes one reconciliation run across all securities.
type RunReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  []string
	Failed     map[string]string // ticker -> fault description
}
