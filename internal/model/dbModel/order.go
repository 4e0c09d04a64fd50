package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	OrderID    string          `db:"order_id"`
	Ticker     string          `db:"ticker"`
	Side       string          `db:"side"`
	Quantity   decimal.Decimal `db:"quantity"`
	Price      decimal.Decimal `db:"price"`
	Fees       decimal.Decimal `db:"fees"`
	ExecutedAt time.Time       `db:"executed_at"`
}

type Checkpoint struct {
	Ticker      string    `db:"ticker"`
	LastOrderID string    `db:"last_order_id"`
	UpdatedAt   time.Time `db:"dt_update"`
}

type SyncRun struct {
	RunID      int64     `db:"run_id"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
	Succeeded  int       `db:"succeeded"`
	Failed     int       `db:"failed"`
	Faults     string    `db:"faults"`
}
