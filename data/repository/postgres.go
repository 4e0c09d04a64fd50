package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/jmoiron/sqlx"

	"github.com/ktimofeev/robinfolio/config"
	"github.com/ktimofeev/robinfolio/internal/converter/dbConverter"
	"github.com/ktimofeev/robinfolio/internal/model"
	"github.com/ktimofeev/robinfolio/internal/model/dbModel"
	"github.com/ktimofeev/robinfolio/utils"
)

type Postgres struct {
	db  *sqlx.DB
	cfg *config.Config
}

func NewPostgres(cfg *config.Config, db *sqlx.DB) *Postgres {
	return &Postgres{db: db, cfg: cfg}
}

// UpsertOrders writes the fetched order history in one statement; the order
// ID is the conflict key, so refetching the same pages is harmless.
func (p *Postgres) UpsertOrders(ctx context.Context, orders []model.Order) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("UpsertOrders start", slog.String("rqID", rqID), slog.Int("orders", len(orders)))

	defer func() {
		if err != nil {
			slog.Error("UpsertOrders failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertOrders completed", slog.String("rqID", rqID))
		}
	}()

	if len(orders) == 0 {
		return nil
	}

	sb := strings.Builder{}
	args := make([]any, 0, len(orders)*7)

	sb.WriteString(`INSERT INTO orders (order_id, ticker, side, quantity, price, fees, executed_at) VALUES `)

	for i, order := range orders {
		o := dbConverter.ToDbOrder(order)
		args = append(args, o.OrderID, o.Ticker, o.Side, o.Quantity, o.Price, o.Fees, o.ExecutedAt)

		start := i*7 + 1
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			start, start+1, start+2, start+3, start+4, start+5, start+6,
		))

		if i < len(orders)-1 {
			sb.WriteString(",")
		}
	}

	sb.WriteString(`
		ON CONFLICT (order_id) DO UPDATE SET
			ticker = EXCLUDED.ticker,
			side = EXCLUDED.side,
			quantity = EXCLUDED.quantity,
			price = EXCLUDED.price,
			fees = EXCLUDED.fees,
			executed_at = EXCLUDED.executed_at;
	`)

	_, err = p.db.ExecContext(ctx, sb.String(), args...)
	return err
}

func (p *Postgres) GetAllOrders(ctx context.Context) (orders []model.Order, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT order_id, ticker, side, quantity, price, fees, executed_at FROM orders ORDER BY executed_at, order_id`

	slog.Debug("GetAllOrders start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetAllOrders failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetAllOrders completed", slog.String("rqID", rqID), slog.Int("orders", len(orders)))
		}
	}()

	dbOrders := []dbModel.Order{}
	err = p.db.SelectContext(ctx, &dbOrders, query)
	if err != nil {
		return nil, err
	}

	return dbConverter.ConvertOrders(dbOrders), nil
}

func (p *Postgres) GetCheckpoints(ctx context.Context) (checkpoints map[string]string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `SELECT ticker, last_order_id, dt_update FROM sync_checkpoints`

	slog.Debug("GetCheckpoints start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetCheckpoints failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetCheckpoints completed", slog.String("rqID", rqID))
		}
	}()

	dbCheckpoints := []dbModel.Checkpoint{}
	err = p.db.SelectContext(ctx, &dbCheckpoints, query)
	if err != nil {
		return nil, err
	}

	checkpoints = make(map[string]string, len(dbCheckpoints))
	for _, c := range dbCheckpoints {
		checkpoints[c.Ticker] = c.LastOrderID
	}

	return checkpoints, nil
}

// UpsertCheckpoint advances a security's sync marker. Called only after the
// security's record set landed in Notion, so an interrupted run re-syncs
// instead of skipping.
func (p *Postgres) UpsertCheckpoint(ctx context.Context, ticker, lastOrderID string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		INSERT INTO sync_checkpoints(ticker, last_order_id, dt_update) VALUES($1, $2, now())
		ON CONFLICT (ticker) DO UPDATE SET last_order_id = EXCLUDED.last_order_id, dt_update = now()
	`

	slog.Debug("UpsertCheckpoint start", slog.String("rqID", rqID), slog.String("ticker", ticker))
	defer func() {
		if err != nil {
			slog.Error("UpsertCheckpoint failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertCheckpoint completed", slog.String("rqID", rqID), slog.String("ticker", ticker))
		}
	}()

	_, err = p.db.ExecContext(ctx, query, ticker, lastOrderID)
	return err
}

func (p *Postgres) InsertSyncRun(ctx context.Context, report model.RunReport) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	query := `
		INSERT INTO sync_runs(started_at, finished_at, succeeded, failed, faults)
		VALUES(:started_at, :finished_at, :succeeded, :failed, :faults)
	`

	slog.Debug("InsertSyncRun start", slog.String("rqID", rqID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertSyncRun failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertSyncRun completed", slog.String("rqID", rqID))
		}
	}()

	run, err := dbConverter.ToDbSyncRun(report)
	if err != nil {
		return err
	}

	_, err = p.db.NamedExecContext(ctx, query, run)
	return err
}
