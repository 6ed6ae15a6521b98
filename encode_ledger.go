package coinfolio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// journalRecord is a specialized struct for decoding one journal line.
type journalRecord struct {
	Type      string           `json:"type"`
	Timestamp string           `json:"timestamp"`
	Symbol    string           `json:"symbol"`
	Amount    Quantity         `json:"amount"`
	Price     decimal.Decimal  `json:"price"`
	Currency  string           `json:"currency"`
	Fee       decimal.Decimal  `json:"fee"`
	Method    AccountingMethod `json:"method"`
	Exchange  string           `json:"exchange"`
	Ref       string           `json:"ref"`
	Notes     string           `json:"notes"`
}

func (r journalRecord) transaction() (Transaction, error) {
	ts, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return Transaction{}, fmt.Errorf("invalid timestamp %q: %w", r.Timestamp, err)
	}
	txType, err := ParseTransactionType(r.Type)
	if err != nil {
		return Transaction{}, err
	}
	t := Transaction{
		Timestamp:   ts,
		Symbol:      r.Symbol,
		Type:        txType,
		Amount:      r.Amount,
		Price:       M(r.Price, r.Currency),
		Fee:         M(r.Fee, r.Currency),
		Exchange:    r.Exchange,
		ExternalRef: r.Ref,
		Notes:       r.Notes,
	}
	if txType == Sell {
		t.Method = r.Method
	}
	return t, nil
}

// DecodeJournal decodes transactions from a stream of JSONL data and
// returns them in chronological order. The sort is stable, so retroactive
// entries appended out of order land where their timestamp says while
// same-instant transactions keep their file order.
func DecodeJournal(r io.Reader) ([]Transaction, error) {
	var journal []Transaction
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineBytes := scanner.Bytes()
		if len(lineBytes) == 0 {
			continue // Skip empty lines
		}
		var rec journalRecord
		if err := json.Unmarshal(lineBytes, &rec); err != nil {
			return nil, fmt.Errorf("could not decode journal line %q: %w", string(lineBytes), err)
		}
		t, err := rec.transaction()
		if err != nil {
			return nil, err
		}
		journal = append(journal, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(journal, func(i, j int) bool {
		return journal[i].Timestamp.Before(journal[j].Timestamp)
	})
	return journal, nil
}

// EncodeTransaction writes one transaction as a single JSONL line.
func EncodeTransaction(w io.Writer, t Transaction) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// EncodeJournal writes transactions in their current order, one per line.
func EncodeJournal(w io.Writer, journal []Transaction) error {
	for _, t := range journal {
		if err := EncodeTransaction(w, t); err != nil {
			return err
		}
	}
	return nil
}

// Replay records a chronological journal into a fresh store and returns the
// tracker over it. Replaying the same journal always rebuilds identical
// lots and realized entries, which is what makes the JSONL file the durable
// form of the in-memory ledger.
func Replay(store Store, journal []Transaction) (*Tracker, error) {
	tracker := NewTracker(store)
	for _, t := range journal {
		if _, err := tracker.Record(t); err != nil {
			return nil, fmt.Errorf("replaying %s %s %s at %s: %w",
				t.Type, t.Amount, t.Symbol, t.Timestamp.Format(time.RFC3339), err)
		}
	}
	return tracker, nil
}
