package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ktimofeev/robinfolio/internal/model"
)

var (
	ErrInsufficientLots = errors.New("sell quantity exceeds open lots")
	ErrOrderConflict    = errors.New("duplicate order id with conflicting data")
	ErrInvalidOrder     = errors.New("invalid order")
)

// CostBasisMethod selects which open lot a sell consumes first.
type CostBasisMethod int

const (
	FIFO CostBasisMethod = iota
	LIFO
)

func (m CostBasisMethod) String() string {
	switch m {
	case FIFO:
		return "fifo"
	case LIFO:
		return "lifo"
	default:
		return "unknown"
	}
}

func ParseCostBasisMethod(s string) (CostBasisMethod, error) {
	switch s {
	case "fifo":
		return FIFO, nil
	case "lifo":
		return LIFO, nil
	default:
		return 0, fmt.Errorf("unknown cost basis method %q", s)
	}
}

// NormalizeOrders validates a raw order history and puts it into the
// canonical processing order: ascending ExecutedAt, ties broken by order ID.
// Exact duplicates collapse into one record; a duplicate ID with different
// data is rejected with ErrOrderConflict before it can reach the matcher.
func NormalizeOrders(orders []model.Order) ([]model.Order, error) {
	seen := make(map[string]model.Order, len(orders))
	res := make([]model.Order, 0, len(orders))

	for _, o := range orders {
		if err := validateOrder(o); err != nil {
			return nil, err
		}

		prev, ok := seen[o.ID]
		if ok {
			if !ordersEqual(prev, o) {
				return nil, fmt.Errorf("%w: id %s", ErrOrderConflict, o.ID)
			}
			continue
		}

		seen[o.ID] = o
		res = append(res, o)
	}

	sort.Slice(res, func(i, j int) bool {
		if !res[i].ExecutedAt.Equal(res[j].ExecutedAt) {
			return res[i].ExecutedAt.Before(res[j].ExecutedAt)
		}
		return res[i].ID < res[j].ID
	})

	return res, nil
}

// GroupByTicker partitions normalized orders per security, keeping the
// order within each partition.
func GroupByTicker(orders []model.Order) map[string][]model.Order {
	res := make(map[string][]model.Order)
	for _, o := range orders {
		res[o.Ticker] = append(res[o.Ticker], o)
	}
	return res
}

func validateOrder(o model.Order) error {
	switch {
	case o.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidOrder)
	case o.Ticker == "":
		return fmt.Errorf("%w: order %s has empty ticker", ErrInvalidOrder, o.ID)
	case o.Side != model.Buy && o.Side != model.Sell:
		return fmt.Errorf("%w: order %s has side %q", ErrInvalidOrder, o.ID, o.Side)
	case !o.Quantity.IsPositive():
		return fmt.Errorf("%w: order %s has quantity %s", ErrInvalidOrder, o.ID, o.Quantity)
	case !o.Price.IsPositive():
		return fmt.Errorf("%w: order %s has price %s", ErrInvalidOrder, o.ID, o.Price)
	case o.Fees.IsNegative():
		return fmt.Errorf("%w: order %s has negative fees %s", ErrInvalidOrder, o.ID, o.Fees)
	case o.ExecutedAt.IsZero():
		return fmt.Errorf("%w: order %s has no executed timestamp", ErrInvalidOrder, o.ID)
	}
	return nil
}

func ordersEqual(a, b model.Order) bool {
	return a.ID == b.ID &&
		a.Ticker == b.Ticker &&
		a.Side == b.Side &&
		a.Quantity.Equal(b.Quantity) &&
		a.Price.Equal(b.Price) &&
		a.Fees.Equal(b.Fees) &&
		a.ExecutedAt.Equal(b.ExecutedAt)
}
