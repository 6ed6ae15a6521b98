// Package coingecko fetches spot and historical cryptocurrency prices from
// the CoinGecko public API. It implements coinfolio.PriceOracle.
package coingecko

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"github.com/marache/coinfolio"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// defaultCoinIDs maps ticker symbols to CoinGecko coin ids. CoinGecko keys
// everything by its own id, not by ticker.
var defaultCoinIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"XRP":  "ripple",
	"SOL":  "solana",
	"LINK": "chainlink",
	"BCH":  "bitcoin-cash",
	"UNI":  "uniswap",
	"LEO":  "leo-token",
	"WBT":  "whitebit",
	"WLFI": "world-liberty-financial",
}

// Client queries the CoinGecko API. The zero value is not usable; use New.
type Client struct {
	baseURL    string
	vsCurrency string // lowercase CoinGecko currency code, e.g. "aud"
	coinIDs    map[string]string
	retries    int
	backoff    time.Duration
	live       *http.Client // spot prices, uncached
	daily      *http.Client // historical prices, cached until midnight
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root, typically a test server.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") } }

// WithHTTPClient replaces both the live and the cached HTTP clients.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.live, c.daily = hc, hc }
}

// WithRetryPolicy overrides how often and how patiently requests are retried.
func WithRetryPolicy(retries int, backoff time.Duration) Option {
	return func(c *Client) { c.retries, c.backoff = retries, backoff }
}

// WithCoinIDs adds or overrides symbol to coin-id mappings.
func WithCoinIDs(ids map[string]string) Option {
	return func(c *Client) {
		for symbol, id := range ids {
			c.coinIDs[strings.ToUpper(symbol)] = id
		}
	}
}

// New returns a client pricing in the given currency ("AUD", "USD", ...).
func New(currency string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		vsCurrency: strings.ToLower(currency),
		coinIDs:    make(map[string]string, len(defaultCoinIDs)),
		retries:    3,
		backoff:    2 * time.Second,
		live:       new(http.Client),
		daily:      dailyCached(),
	}
	for symbol, id := range defaultCoinIDs {
		c.coinIDs[symbol] = id
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) coinID(symbol string) (string, error) {
	id, ok := c.coinIDs[strings.ToUpper(symbol)]
	if !ok {
		return "", fmt.Errorf("%w: no CoinGecko id for %q", coinfolio.ErrUnknownSymbol, symbol)
	}
	return id, nil
}

// CurrentPrice returns the current price of one symbol.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (coinfolio.Money, error) {
	prices, err := c.CurrentPrices(ctx, []string{symbol})
	if err != nil {
		return coinfolio.Money{}, err
	}
	price, ok := prices[strings.ToUpper(symbol)]
	if !ok {
		return coinfolio.Money{}, fmt.Errorf("%w: no price for %q", coinfolio.ErrPriceUnavailable, symbol)
	}
	return price, nil
}

// CurrentPrices fetches current prices for the given symbols in one call to
// the simple/price endpoint. Symbols with no known coin id are skipped with
// a log line; the result map holds only the symbols that priced.
func (c *Client) CurrentPrices(ctx context.Context, symbols []string) (map[string]coinfolio.Money, error) {
	prices := make(map[string]coinfolio.Money)
	if len(symbols) == 0 {
		return prices, nil
	}

	var ids []string
	idToSymbol := make(map[string]string)
	for _, symbol := range symbols {
		id, err := c.coinID(symbol)
		if err != nil {
			log.Printf("skipping %s: %v", symbol, err)
			continue
		}
		ids = append(ids, id)
		idToSymbol[id] = strings.ToUpper(symbol)
	}
	if len(ids) == 0 {
		return prices, nil
	}

	addr := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s",
		c.baseURL, url.QueryEscape(strings.Join(ids, ",")), c.vsCurrency)

	// payload: {"bitcoin": {"aud": 98000.12}, ...}
	content := make(map[string]map[string]float64)
	if err := c.getJSON(ctx, c.live, addr, &content); err != nil {
		return nil, fmt.Errorf("%w: %v", coinfolio.ErrPriceUnavailable, err)
	}

	cur := strings.ToUpper(c.vsCurrency)
	for id, quote := range content {
		symbol, ok := idToSymbol[id]
		if !ok {
			continue
		}
		value, ok := quote[c.vsCurrency]
		if !ok {
			continue
		}
		prices[symbol] = coinfolio.M(value, cur)
	}
	return prices, nil
}

// HistoricalPrice returns the price of symbol on the given day. Historical
// snapshots never change, so these responses come from the daily cache.
func (c *Client) HistoricalPrice(ctx context.Context, symbol string, day time.Time) (coinfolio.Money, error) {
	id, err := c.coinID(symbol)
	if err != nil {
		return coinfolio.Money{}, err
	}

	// CoinGecko wants dd-mm-yyyy here, unlike everywhere else.
	addr := fmt.Sprintf("%s/coins/%s/history?date=%s&localization=false",
		c.baseURL, url.PathEscape(id), day.UTC().Format("02-01-2006"))

	var jobj any
	if err := c.getJSON(ctx, c.daily, addr, &jobj); err != nil {
		return coinfolio.Money{}, fmt.Errorf("%w: %v", coinfolio.ErrPriceUnavailable, err)
	}

	path := "$.market_data.current_price." + c.vsCurrency
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return coinfolio.Money{}, fmt.Errorf("%w: %s on %s: no market data (%v)",
			coinfolio.ErrPriceUnavailable, symbol, day.Format("2006-01-02"), err)
	}
	value, ok := jval.(float64)
	if !ok {
		return coinfolio.Money{}, fmt.Errorf("%w: %s on %s: %q is not a number",
			coinfolio.ErrPriceUnavailable, symbol, day.Format("2006-01-02"), path)
	}
	return coinfolio.M(value, strings.ToUpper(c.vsCurrency)), nil
}

// getJSON performs a GET and unmarshals the JSON response, retrying on
// rate limiting and transport errors with a linearly growing backoff.
func (c *Client) getJSON(ctx context.Context, client *http.Client, addr string, data any) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt+1) * c.backoff
			log.Printf("retrying in %v (attempt %d/%d): %v", wait, attempt, c.retries, lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited by %s: %s", resp.Request.URL.Host, resp.Status)
			continue
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("cannot http GET %v/%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
		}
		return json.Unmarshal(body, data)
	}
	return lastErr
}

// diskCache implements a simple disk cache for HTTP responses.
type diskCache struct {
	base http.RoundTripper
}

func (c *diskCache) RoundTrip(req *http.Request) (resp *http.Response, err error) {
	// The key includes today's date, so cached entries expire at midnight.
	key := fmt.Sprintf("%s %s %s", time.Now().UTC().Format("2006-01-02"), req.Method, req.URL.String())
	key = fmt.Sprintf("%x", sha1.Sum([]byte(key)))

	cachedResp, err := c.get(key, req)
	if err == nil { // Cache hit
		return cachedResp, nil
	}

	resp, err = c.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	log.Printf("%v %v/%v %v", resp.Request.Method, resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	if resp.StatusCode >= 300 {
		return resp, nil
	}

	if err := c.put(key, resp); err != nil {
		log.Printf("cache write err (ignored): %v", err)
	}
	return resp, nil
}

func (c *diskCache) get(key string, req *http.Request) (*http.Response, error) {
	file := filepath.Join(os.TempDir(), key)
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return http.ReadResponse(bufio.NewReader(bytes.NewBuffer(content)), req)
}

func (c *diskCache) put(key string, resp *http.Response) error {
	file := filepath.Join(os.TempDir(), key)

	content, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return err
	}

	f, err := os.Create(file)
	if err != nil {
		return err
	}
	_, err = f.Write(content)
	f.Close()
	return err
}

// dailyCached returns a client whose responses are cached until midnight.
func dailyCached() *http.Client {
	client := new(http.Client)
	client.Transport = &diskCache{http.DefaultTransport}
	return client
}
