package dbConverter

import (
	"encoding/json"
	"fmt"

	"github.com/ktimofeev/robinfolio/internal/model"
	"github.com/ktimofeev/robinfolio/internal/model/dbModel"
)

func ConvertOrder(dbOrder dbModel.Order) model.Order {
	return model.Order{
		ID:         dbOrder.OrderID,
		Ticker:     dbOrder.Ticker,
		Side:       model.Side(dbOrder.Side),
		Quantity:   dbOrder.Quantity,
		Price:      dbOrder.Price,
		Fees:       dbOrder.Fees,
		ExecutedAt: dbOrder.ExecutedAt,
	}
}

func ConvertOrders(dbOrders []dbModel.Order) []model.Order {
	orders := make([]model.Order, 0, len(dbOrders))
	for _, o := range dbOrders {
		orders = append(orders, ConvertOrder(o))
	}
	return orders
}

func ToDbOrder(order model.Order) dbModel.Order {
	return dbModel.Order{
		OrderID:    order.ID,
		Ticker:     order.Ticker,
		Side:       string(order.Side),
		Quantity:   order.Quantity,
		Price:      order.Price,
		Fees:       order.Fees,
		ExecutedAt: order.ExecutedAt,
	}
}

// ToDbSyncRun flattens a run report into its audit row; the per-ticker
// fault map goes into the JSONB faults column.
func ToDbSyncRun(report model.RunReport) (dbModel.SyncRun, error) {
	faults, err := json.Marshal(report.Failed)
	if err != nil {
		return dbModel.SyncRun{}, fmt.Errorf("can't marshal run faults: %w", err)
	}

	return dbModel.SyncRun{
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Succeeded:  len(report.Succeeded),
		Failed:     len(report.Failed),
		Faults:     string(faults),
	}, nil
}
