package coinfolio

import "time"

// TransactionFilter selects transactions. Zero values mean "no constraint".
type TransactionFilter struct {
	Symbol string
	Type   TransactionType
	From   time.Time // inclusive
	To     time.Time // inclusive
}

func (f TransactionFilter) matches(t Transaction) bool {
	if f.Symbol != "" && t.Symbol != f.Symbol {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if !f.From.IsZero() && t.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.Timestamp.After(f.To) {
		return false
	}
	return true
}

// Store is the append-only ledger the engine writes to and aggregates from.
// Implementations assign record ids on append and must make RecordBuy and
// RecordSell atomic: either every record of the call is persisted or none.
//
// RecordSell receives the lots the matcher touched (with their already
// reduced remaining amounts) and the realized entries it produced; the
// store stamps the assigned sell transaction id onto each entry.
type Store interface {
	RecordBuy(t *Transaction, lot *CostBasisLot) error
	RecordSell(t *Transaction, touched []*CostBasisLot, entries []*RealizedPnL) error

	// OpenLots returns copies of the open lots for symbol, ordered by
	// purchase date ascending, lot id ascending.
	OpenLots(symbol string) ([]*CostBasisLot, error)
	// Lots returns copies of every lot ever created for symbol, open or
	// closed, in the same order.
	Lots(symbol string) ([]*CostBasisLot, error)
	// OpenSymbols lists symbols that currently have open lots.
	OpenSymbols() ([]string, error)

	Realized(f RealizedFilter) ([]RealizedPnL, error)
	Transactions(f TransactionFilter) ([]Transaction, error)

	// HasExternalRef reports whether a transaction with this external
	// reference id was already recorded. Dedup stays the caller's choice.
	HasExternalRef(ref string) (bool, error)
}
