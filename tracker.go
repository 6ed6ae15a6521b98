package coinfolio

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PriceOracle supplies unit prices for symbols. Implementations return
// errors wrapping ErrPriceUnavailable so aggregate calls can degrade to
// partial results. CurrentPrices may return a partial map together with a
// nil error when only some symbols resolve.
type PriceOracle interface {
	CurrentPrice(ctx context.Context, symbol string) (Money, error)
	CurrentPrices(ctx context.Context, symbols []string) (map[string]Money, error)
	HistoricalPrice(ctx context.Context, symbol string, day time.Time) (Money, error)
}

// Tracker is the cost basis accounting engine. It owns a Store handle and
// funnels every write through Record, the single entry point. Writes take a
// per-symbol lock for the duration of the call; reads only need the store's
// own snapshot consistency and may run concurrently.
type Tracker struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTracker creates a tracker over the given store. The store's lifecycle
// stays with the caller.
func NewTracker(store Store) *Tracker {
	return &Tracker{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// Store returns the underlying store handle.
func (tr *Tracker) Store() Store { return tr.store }

func (tr *Tracker) symbolLock(symbol string) *sync.Mutex {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	l, ok := tr.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		tr.locks[symbol] = l
	}
	return l
}

// Record validates and records a transaction, returning it with its
// assigned id. A buy opens a new cost basis lot with the buy-side fee
// amortized into the cost per unit. A sell is matched against open lots
// under the symbol lock; on any error the ledger is left unchanged.
//
// Recording the same transaction twice produces a duplicate lot or entry;
// dedup by external reference is the caller's choice (TransactionExists).
func (tr *Tracker) Record(t Transaction) (Transaction, error) {
	if err := t.Validate(); err != nil {
		return t, err
	}
	if err := tr.checkCurrency(t); err != nil {
		return t, err
	}

	l := tr.symbolLock(t.Symbol)
	l.Lock()
	defer l.Unlock()

	switch t.Type {
	case Buy:
		lot := newLotForBuy(t)
		if err := tr.store.RecordBuy(&t, lot); err != nil {
			return t, fmt.Errorf("recording buy: %w", err)
		}
		return t, nil
	case Sell:
		return tr.recordSell(t)
	default:
		return t, fmt.Errorf("unknown transaction type: %q", t.Type)
	}
}

// checkCurrency rejects a transaction priced in a different currency than
// the ledger already uses. One reporting currency per ledger keeps money
// aggregation across symbols well defined; FX conversion is out of scope.
// The "" currency stays weak here, as in Money arithmetic.
func (tr *Tracker) checkCurrency(t Transaction) error {
	if t.Price.Currency() == "" {
		return nil
	}
	existing, err := tr.store.Transactions(TransactionFilter{})
	if err != nil {
		return err
	}
	for _, e := range existing {
		c := e.Price.Currency()
		if c == "" {
			continue
		}
		if c != t.Price.Currency() {
			return fmt.Errorf("%w: ledger is in %s, transaction is in %s",
				ErrCurrencyMismatch, c, t.Price.Currency())
		}
		return nil
	}
	return nil
}

func (tr *Tracker) recordSell(t Transaction) (Transaction, error) {
	all, err := tr.store.Lots(t.Symbol)
	if err != nil {
		return t, err
	}
	if len(all) == 0 {
		return t, fmt.Errorf("%w: %s", ErrUnknownSymbol, t.Symbol)
	}

	open, err := tr.store.OpenLots(t.Symbol)
	if err != nil {
		return t, err
	}

	entries, err := matchSell(open, t)
	if err != nil {
		return t, err
	}

	touched := touchedLots(open, entries)
	if err := tr.store.RecordSell(&t, touched, entries); err != nil {
		return t, fmt.Errorf("recording sell: %w", err)
	}
	return t, nil
}

// touchedLots keeps only the lots the matcher actually consumed from.
func touchedLots(lots []*CostBasisLot, entries []*RealizedPnL) []*CostBasisLot {
	ids := make(map[int64]bool, len(entries))
	for _, e := range entries {
		ids[e.LotID] = true
	}
	var out []*CostBasisLot
	for _, l := range lots {
		if ids[l.ID] {
			out = append(out, l)
		}
	}
	return out
}

// Holdings derives the currently held amount per symbol from open lot
// remainders. The holding is never stored independently.
func (tr *Tracker) Holdings() (map[string]Quantity, error) {
	symbols, err := tr.store.OpenSymbols()
	if err != nil {
		return nil, err
	}
	held := make(map[string]Quantity, len(symbols))
	for _, s := range symbols {
		lots, err := tr.store.OpenLots(s)
		if err != nil {
			return nil, err
		}
		held[s] = openQuantity(lots)
	}
	return held, nil
}

// OpenLots returns the open lots for a symbol, oldest first.
func (tr *Tracker) OpenLots(symbol string) ([]*CostBasisLot, error) {
	lots, err := tr.store.Lots(symbol)
	if err != nil {
		return nil, err
	}
	if len(lots) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return tr.store.OpenLots(symbol)
}

// History returns recorded transactions matching the filter, oldest first.
func (tr *Tracker) History(f TransactionFilter) ([]Transaction, error) {
	return tr.store.Transactions(f)
}

// TransactionExists reports whether a transaction with this external
// reference id was already recorded, for importers that dedup on it.
func (tr *Tracker) TransactionExists(externalRef string) (bool, error) {
	return tr.store.HasExternalRef(externalRef)
}
