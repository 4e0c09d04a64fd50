package robinhoodApi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktimofeev/robinfolio/config"
	"github.com/ktimofeev/robinfolio/internal/externalApi"
	"github.com/ktimofeev/robinfolio/internal/model"
)

func testConfig(url string) *config.Config {
	return &config.Config{
		API: config.API{
			Timeout: 5 * time.Second,
			Robinhood: config.Robinhood{
				Url:        url,
				Token:      "test-token",
				ApiVersion: "1.431.4",
			},
		},
	}
}

func TestGetOrderHistory_PaginatesAndFilters(t *testing.T) {
	var gotAuth string

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/orders/", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		if r.URL.Query().Get("cursor") == "" {
			// the cursor leaks the internal load balancer host on purpose
			fmt.Fprintf(w, `{
				"next": "%s/orders/?cursor=2",
				"results": [
					{"id": "b1", "side": "buy", "state": "filled", "instrument_id": "inst-abt",
					 "average_price": "10.000000", "fees": "1.00", "cumulative_quantity": "10.00000000",
					 "last_transaction_at": "2021-01-04T15:00:00Z"},
					{"id": "x1", "side": "buy", "state": "cancelled", "instrument_id": "inst-abt",
					 "average_price": "9.000000", "fees": "0.00", "cumulative_quantity": "5.00000000",
					 "last_transaction_at": "2021-01-04T16:00:00Z"}
				]
			}`, "http://loadbalancer-brokeback.nginx.service.robinhood")
			return
		}

		fmt.Fprint(w, `{
			"next": null,
			"results": [
				{"id": "s1", "side": "sell", "state": "filled", "instrument_id": "inst-abt",
				 "average_price": "15.000000", "fees": "1.20", "cumulative_quantity": "12.00000000",
				 "last_transaction_at": "2021-03-01T15:00:00Z"}
			]
		}`)
	})

	instrumentCalls := 0
	mux.HandleFunc("/instruments/inst-abt/", func(w http.ResponseWriter, r *http.Request) {
		instrumentCalls++
		fmt.Fprint(w, `{"symbol": "ABT", "simple_name": "Abbott Laboratories"}`)
	})

	api := New(testConfig(srv.URL))

	orders, err := api.GetOrderHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, "Bearer test-token", gotAuth)
	// the instrument lookup is memoized across orders
	assert.Equal(t, 1, instrumentCalls)

	buy := orders[0]
	assert.Equal(t, "b1", buy.ID)
	assert.Equal(t, "ABT", buy.Ticker)
	assert.Equal(t, model.Buy, buy.Side)
	assert.True(t, buy.Quantity.Equal(decimal.RequireFromString("10")), "quantity %s", buy.Quantity)
	assert.True(t, buy.Fees.Equal(decimal.RequireFromString("1")), "fees %s", buy.Fees)

	sell := orders[1]
	assert.Equal(t, "s1", sell.ID)
	assert.Equal(t, model.Sell, sell.Side)
	assert.True(t, sell.Price.Equal(decimal.RequireFromString("15")), "price %s", sell.Price)
}

func TestGetOrderHistory_PropagatesApiError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	api := New(testConfig(srv.URL))

	_, err := api.GetOrderHistory(context.Background())
	require.Error(t, err)
}

func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quotes/ABT/", r.URL.Path)
		fmt.Fprint(w, `{"symbol": "ABT", "last_trade_price": "123.450000"}`)
	}))
	defer srv.Close()

	api := New(testConfig(srv.URL))

	quote, err := api.GetQuote(context.Background(), "ABT")
	require.NoError(t, err)
	assert.Equal(t, "ABT", quote.Ticker)
	assert.True(t, quote.Price.Equal(decimal.RequireFromString("123.45")), "price %s", quote.Price)
}

func TestGetQuote_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	api := New(testConfig(srv.URL))

	_, err := api.GetQuote(context.Background(), "NOPE")
	require.ErrorIs(t, err, externalApi.ErrNotFound)
}
