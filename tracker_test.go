package coinfolio

import (
	"errors"
	"sync"
	"testing"
)

// setupTracker creates a tracker over a fresh in-memory store.
func setupTracker(t *testing.T) *Tracker {
	t.Helper()
	return NewTracker(NewMemStore())
}

// mustRecord records a transaction that the test expects to succeed.
func mustRecord(t *testing.T, tr *Tracker, tx Transaction) Transaction {
	t.Helper()
	recorded, err := tr.Record(tx)
	if err != nil {
		t.Fatalf("Record(%s %s %s) failed: %v", tx.Type, tx.Amount, tx.Symbol, err)
	}
	return recorded
}

func TestRecord_BuyOpensAmortizedLot(t *testing.T) {
	tr := setupTracker(t)

	// 2 units at $100 with a $10 fee: cost per unit is (200+10)/2 = 105.
	buy := NewBuy(day(1), "ETH", Q(2), M(100, "AUD"), M(10, "AUD"))
	recorded := mustRecord(t, tr, buy)
	if recorded.ID == 0 {
		t.Error("recorded buy has no id")
	}

	lots, err := tr.OpenLots("ETH")
	if err != nil {
		t.Fatalf("OpenLots() failed: %v", err)
	}
	if len(lots) != 1 {
		t.Fatalf("got %d lots, want 1", len(lots))
	}
	lot := lots[0]
	if !lot.CostPerUnit.Equal(M(105, "AUD")) {
		t.Errorf("cost per unit %s, want 105", lot.CostPerUnit.Decimal())
	}
	if !lot.Remaining.Equal(Q(2)) || !lot.Amount.Equal(Q(2)) {
		t.Errorf("lot amounts %s/%s, want 2/2", lot.Remaining, lot.Amount)
	}
	if lot.TransactionID != recorded.ID {
		t.Errorf("lot points at transaction %d, want %d", lot.TransactionID, recorded.ID)
	}
	if lot.Closed {
		t.Error("fresh lot should be open")
	}
}

func TestRecord_Validation(t *testing.T) {
	tr := setupTracker(t)

	testCases := []struct {
		name    string
		tx      Transaction
		wantErr error
	}{
		{
			name:    "zero amount",
			tx:      NewBuy(day(1), "BTC", Q(0), M(100, "AUD"), Money{}),
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			tx:      NewBuy(day(1), "BTC", Q(-1), M(100, "AUD"), Money{}),
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "zero price",
			tx:      NewBuy(day(1), "BTC", Q(1), M(0, "AUD"), Money{}),
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative fee",
			tx:      NewBuy(day(1), "BTC", Q(1), M(100, "AUD"), M(-5, "AUD")),
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "sell with invalid method",
			tx:      NewSell(day(1), "BTC", Q(1), M(100, "AUD"), Money{}, AccountingMethod(42)),
			wantErr: ErrInvalidAccountingMethod,
		},
		{
			name:    "missing symbol",
			tx:      NewBuy(day(1), "", Q(1), M(100, "AUD"), Money{}),
			wantErr: ErrUnknownSymbol,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tr.Record(tc.tx); !errors.Is(err, tc.wantErr) {
				t.Errorf("Record() error = %v, want %v", err, tc.wantErr)
			}
		})
	}

	// None of the rejected transactions may have reached the ledger.
	history, err := tr.History(TransactionFilter{})
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("rejected transactions leaked into the ledger: %d recorded", len(history))
	}
}

func TestRecord_RejectsCurrencyMismatch(t *testing.T) {
	tr := setupTracker(t)
	mustRecord(t, tr, NewBuy(day(1), "BTC", Q(1), M(100, "AUD"), Money{}))

	// The first recorded transaction fixes the ledger currency. That holds
	// across symbols too, since summaries aggregate money over all of them.
	if _, err := tr.Record(NewBuy(day(2), "ETH", Q(1), M(50, "USD"), Money{})); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("buy in a second currency: error = %v, want ErrCurrencyMismatch", err)
	}
	if _, err := tr.Record(NewSell(day(3), "BTC", Q(1), M(150, "USD"), Money{}, FIFO)); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("sell in a second currency: error = %v, want ErrCurrencyMismatch", err)
	}

	history, err := tr.History(TransactionFilter{})
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("rejected transactions leaked into the ledger: %d recorded", len(history))
	}
}

func TestRecord_SellUnknownSymbol(t *testing.T) {
	tr := setupTracker(t)
	mustRecord(t, tr, NewBuy(day(1), "BTC", Q(1), M(100, "AUD"), Money{}))

	_, err := tr.Record(NewSell(day(2), "DOGE", Q(1), M(1, "AUD"), Money{}, FIFO))
	if !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("selling a never-bought symbol: error = %v, want ErrUnknownSymbol", err)
	}
}

func TestRecord_SellOutAndRebuy(t *testing.T) {
	tr := setupTracker(t)
	mustRecord(t, tr, NewBuy(day(1), "BTC", Q(1), M(100, "AUD"), Money{}))
	mustRecord(t, tr, NewSell(day(2), "BTC", Q(1), M(150, "AUD"), Money{}, FIFO))

	// Sold out is not unknown: open lots is just empty.
	open, err := tr.OpenLots("BTC")
	if err != nil {
		t.Fatalf("OpenLots() after sell out failed: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("got %d open lots after selling out, want 0", len(open))
	}

	// A later buy starts a fresh lot with a fresh basis.
	mustRecord(t, tr, NewBuy(day(3), "BTC", Q(2), M(200, "AUD"), Money{}))
	held, err := tr.Holdings()
	if err != nil {
		t.Fatalf("Holdings() failed: %v", err)
	}
	if !held["BTC"].Equal(Q(2)) {
		t.Errorf("holdings after rebuy %s, want 2", held["BTC"])
	}
}

func TestHoldings_DerivedFromLots(t *testing.T) {
	tr := setupTracker(t)
	mustRecord(t, tr, NewBuy(day(1), "BTC", Q(1), M(100, "AUD"), Money{}))
	mustRecord(t, tr, NewBuy(day(2), "BTC", Q(0.5), M(120, "AUD"), Money{}))
	mustRecord(t, tr, NewBuy(day(3), "ETH", Q(10), M(5, "AUD"), Money{}))
	mustRecord(t, tr, NewSell(day(4), "BTC", Q(0.25), M(150, "AUD"), Money{}, FIFO))

	held, err := tr.Holdings()
	if err != nil {
		t.Fatalf("Holdings() failed: %v", err)
	}
	if !held["BTC"].Equal(Q(1.25)) {
		t.Errorf("BTC holdings %s, want 1.25", held["BTC"])
	}
	if !held["ETH"].Equal(Q(10)) {
		t.Errorf("ETH holdings %s, want 10", held["ETH"])
	}

	// The holding equals the sum of open lot remainders by construction.
	lots, err := tr.OpenLots("BTC")
	if err != nil {
		t.Fatalf("OpenLots() failed: %v", err)
	}
	if !openQuantity(lots).Equal(held["BTC"]) {
		t.Errorf("holdings %s diverge from lot remainders %s", held["BTC"], openQuantity(lots))
	}
}

func TestRecord_RejectedSellLeavesLedgerUntouched(t *testing.T) {
	tr := setupTracker(t)
	mustRecord(t, tr, NewBuy(day(1), "BTC", Q(1), M(100, "AUD"), Money{}))

	_, err := tr.Record(NewSell(day(2), "BTC", Q(3), M(150, "AUD"), Money{}, FIFO))
	if !errors.Is(err, ErrInsufficientHoldings) {
		t.Fatalf("oversell error = %v, want ErrInsufficientHoldings", err)
	}

	held, err := tr.Holdings()
	if err != nil {
		t.Fatalf("Holdings() failed: %v", err)
	}
	if !held["BTC"].Equal(Q(1)) {
		t.Errorf("holdings after rejected sell %s, want 1", held["BTC"])
	}
	realized, err := tr.RealizedPnL(RealizedFilter{})
	if err != nil {
		t.Fatalf("RealizedPnL() failed: %v", err)
	}
	if realized.TradeCount != 0 {
		t.Errorf("rejected sell realized %d trades, want 0", realized.TradeCount)
	}
	history, err := tr.History(TransactionFilter{Type: Sell})
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("rejected sell recorded in history: %d sells", len(history))
	}
}

func TestTransactionExists(t *testing.T) {
	tr := setupTracker(t)
	buy := NewBuy(day(1), "BTC", Q(1), M(100, "AUD"), Money{})
	buy.ExternalRef = "kraken-42"
	mustRecord(t, tr, buy)

	for _, tc := range []struct {
		ref  string
		want bool
	}{
		{"kraken-42", true},
		{"kraken-43", false},
		{"", false},
	} {
		got, err := tr.TransactionExists(tc.ref)
		if err != nil {
			t.Fatalf("TransactionExists(%q) failed: %v", tc.ref, err)
		}
		if got != tc.want {
			t.Errorf("TransactionExists(%q) = %v, want %v", tc.ref, got, tc.want)
		}
	}
}

func TestRecord_ConcurrentSells(t *testing.T) {
	tr := setupTracker(t)
	mustRecord(t, tr, NewBuy(day(1), "BTC", Q(10), M(100, "AUD"), Money{}))

	// 20 concurrent sells of 1 unit against 10 held: exactly 10 must
	// succeed, and the lot accounting must still add up afterwards.
	const sellers = 20
	var wg sync.WaitGroup
	errs := make([]error, sellers)
	for i := 0; i < sellers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = tr.Record(NewSell(day(2), "BTC", Q(1), M(150, "AUD"), Money{}, FIFO))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientHoldings):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 10 {
		t.Errorf("%d sells succeeded, want exactly 10", succeeded)
	}

	held, err := tr.Holdings()
	if err != nil {
		t.Fatalf("Holdings() failed: %v", err)
	}
	if held["BTC"].IsPositive() {
		t.Errorf("holdings after selling out %s, want 0", held["BTC"])
	}
	realized, err := tr.RealizedPnL(RealizedFilter{Symbol: "BTC"})
	if err != nil {
		t.Fatalf("RealizedPnL() failed: %v", err)
	}
	if realized.TradeCount != 10 {
		t.Errorf("realized trade count %d, want 10", realized.TradeCount)
	}
}

func TestRealizedEntries_CarrySellTransactionID(t *testing.T) {
	tr := setupTracker(t)
	mustRecord(t, tr, NewBuy(day(1), "BTC", Q(1), M(100, "AUD"), Money{}))
	mustRecord(t, tr, NewBuy(day(2), "BTC", Q(1), M(200, "AUD"), Money{}))
	sell := mustRecord(t, tr, NewSell(day(3), "BTC", Q(1.5), M(300, "AUD"), Money{}, FIFO))

	entries, err := tr.Store().Realized(RealizedFilter{Symbol: "BTC"})
	if err != nil {
		t.Fatalf("Realized() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (one per lot touched)", len(entries))
	}
	for _, e := range entries {
		if e.SellTransactionID != sell.ID {
			t.Errorf("entry points at sell %d, want %d", e.SellTransactionID, sell.ID)
		}
	}
}
