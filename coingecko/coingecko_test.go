package coingecko

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marache/coinfolio"
)

// newTestClient points a client at a test server, with fast retries and no
// response caching.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New("AUD",
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithRetryPolicy(2, time.Millisecond),
	)
}

func TestCurrentPrices(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		ids := r.URL.Query().Get("ids")
		if !strings.Contains(ids, "bitcoin") || !strings.Contains(ids, "ethereum") {
			t.Errorf("ids=%q, want bitcoin and ethereum", ids)
		}
		if got := r.URL.Query().Get("vs_currencies"); got != "aud" {
			t.Errorf("vs_currencies=%q, want aud", got)
		}
		fmt.Fprint(w, `{"bitcoin": {"aud": 98000.5}, "ethereum": {"aud": 5100}}`)
	}))

	prices, err := client.CurrentPrices(context.Background(), []string{"BTC", "ETH"})
	if err != nil {
		t.Fatalf("CurrentPrices() failed: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("got %d prices, want 2", len(prices))
	}
	if !prices["BTC"].Equal(coinfolio.M(98000.5, "AUD")) {
		t.Errorf("BTC price %s, want 98000.5 AUD", prices["BTC"].Decimal())
	}
	if !prices["ETH"].Equal(coinfolio.M(5100, "AUD")) {
		t.Errorf("ETH price %s, want 5100 AUD", prices["ETH"].Decimal())
	}
}

func TestCurrentPrices_SkipsUnknownSymbols(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ids := r.URL.Query().Get("ids"); ids != "bitcoin" {
			t.Errorf("ids=%q, want only bitcoin", ids)
		}
		fmt.Fprint(w, `{"bitcoin": {"aud": 98000}}`)
	}))

	// The unmapped symbol is skipped, not fatal: the caller flags it.
	prices, err := client.CurrentPrices(context.Background(), []string{"BTC", "NOPE"})
	if err != nil {
		t.Fatalf("CurrentPrices() failed: %v", err)
	}
	if len(prices) != 1 {
		t.Fatalf("got %d prices, want 1", len(prices))
	}
	if _, ok := prices["NOPE"]; ok {
		t.Error("unmapped symbol should not be priced")
	}
}

func TestCurrentPrice_RetriesOnRateLimit(t *testing.T) {
	var calls int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"bitcoin": {"aud": 98000}}`)
	}))

	price, err := client.CurrentPrice(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("CurrentPrice() failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("server called %d times, want 2 (one retry)", calls)
	}
	if !price.Equal(coinfolio.M(98000, "AUD")) {
		t.Errorf("price %s, want 98000 AUD", price.Decimal())
	}
}

func TestCurrentPrice_GivesUpAfterRetries(t *testing.T) {
	var calls int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.CurrentPrice(context.Background(), "BTC")
	if !errors.Is(err, coinfolio.ErrPriceUnavailable) {
		t.Errorf("error = %v, want ErrPriceUnavailable", err)
	}
	if calls != 3 {
		t.Errorf("server called %d times, want 3 (initial + 2 retries)", calls)
	}
}

func TestCurrentPrice_UnknownSymbol(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made for an unmapped symbol")
	}))

	_, err := client.CurrentPrice(context.Background(), "NOPE")
	if !errors.Is(err, coinfolio.ErrPriceUnavailable) {
		t.Errorf("error = %v, want ErrPriceUnavailable", err)
	}
}

func TestHistoricalPrice(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/history" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		// CoinGecko's history endpoint wants dd-mm-yyyy.
		if got := r.URL.Query().Get("date"); got != "05-01-2026" {
			t.Errorf("date=%q, want 05-01-2026", got)
		}
		fmt.Fprint(w, `{"market_data": {"current_price": {"aud": 64250.25, "usd": 42000}}}`)
	}))

	day := time.Date(2026, time.January, 5, 10, 30, 0, 0, time.UTC)
	price, err := client.HistoricalPrice(context.Background(), "BTC", day)
	if err != nil {
		t.Fatalf("HistoricalPrice() failed: %v", err)
	}
	if !price.Equal(coinfolio.M(64250.25, "AUD")) {
		t.Errorf("price %s, want 64250.25 AUD", price.Decimal())
	}
}

func TestHistoricalPrice_NoMarketData(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CoinGecko answers 200 with no market_data for dates before listing.
		fmt.Fprint(w, `{"id": "bitcoin", "name": "Bitcoin"}`)
	}))

	day := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)
	_, err := client.HistoricalPrice(context.Background(), "BTC", day)
	if !errors.Is(err, coinfolio.ErrPriceUnavailable) {
		t.Errorf("error = %v, want ErrPriceUnavailable", err)
	}
}

func TestWithCoinIDs(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ids := r.URL.Query().Get("ids"); ids != "pepecoin-2" {
			t.Errorf("ids=%q, want pepecoin-2", ids)
		}
		fmt.Fprint(w, `{"pepecoin-2": {"aud": 0.002}}`)
	}))
	WithCoinIDs(map[string]string{"pepe": "pepecoin-2"})(client)

	price, err := client.CurrentPrice(context.Background(), "PEPE")
	if err != nil {
		t.Fatalf("CurrentPrice() failed: %v", err)
	}
	if !price.Equal(coinfolio.M(0.002, "AUD")) {
		t.Errorf("price %s, want 0.002 AUD", price.Decimal())
	}
}
