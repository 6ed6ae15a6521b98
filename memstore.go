package coinfolio

import (
	"fmt"
	"sort"
	"sync"
)

// MemStore is the in-memory Store. Lots live in one arena per symbol in
// insertion order, which doubles as the FIFO tie-break. It backs tests and
// the JSONL journal workflow, where state is rebuilt by replay.
type MemStore struct {
	mu           sync.RWMutex
	transactions []Transaction
	lots         map[string][]*CostBasisLot
	realized     []RealizedPnL
	nextTxID     int64
	nextLotID    int64
	nextEntryID  int64
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		lots:        make(map[string][]*CostBasisLot),
		nextTxID:    1,
		nextLotID:   1,
		nextEntryID: 1,
	}
}

func (s *MemStore) RecordBuy(t *Transaction, lot *CostBasisLot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.ID = s.nextTxID
	s.nextTxID++
	s.transactions = append(s.transactions, *t)

	lot.ID = s.nextLotID
	s.nextLotID++
	lot.TransactionID = t.ID
	s.lots[lot.Symbol] = append(s.lots[lot.Symbol], lot.clone())
	return nil
}

func (s *MemStore) RecordSell(t *Transaction, touched []*CostBasisLot, entries []*RealizedPnL) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.ID = s.nextTxID
	s.nextTxID++
	s.transactions = append(s.transactions, *t)

	for _, u := range touched {
		stored := s.findLot(u.Symbol, u.ID)
		if stored == nil {
			return fmt.Errorf("lot %d not found for %s", u.ID, u.Symbol)
		}
		stored.Remaining = u.Remaining
		stored.Closed = u.Closed
		stored.ClosedDate = u.ClosedDate
	}

	for _, e := range entries {
		e.ID = s.nextEntryID
		s.nextEntryID++
		e.SellTransactionID = t.ID
		s.realized = append(s.realized, *e)
	}
	return nil
}

func (s *MemStore) findLot(symbol string, id int64) *CostBasisLot {
	for _, l := range s.lots[symbol] {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func (s *MemStore) OpenLots(symbol string) ([]*CostBasisLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*CostBasisLot
	for _, l := range s.lots[symbol] {
		if !l.Closed {
			out = append(out, l.clone())
		}
	}
	sortLotsFIFO(out)
	return out, nil
}

func (s *MemStore) Lots(symbol string) ([]*CostBasisLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*CostBasisLot, 0, len(s.lots[symbol]))
	for _, l := range s.lots[symbol] {
		out = append(out, l.clone())
	}
	sortLotsFIFO(out)
	return out, nil
}

func (s *MemStore) OpenSymbols() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var symbols []string
	for symbol, lots := range s.lots {
		for _, l := range lots {
			// the Closed flag is the one notion of open, as in OpenLots
			if !l.Closed {
				symbols = append(symbols, symbol)
				break
			}
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (s *MemStore) Realized(f RealizedFilter) ([]RealizedPnL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RealizedPnL
	for _, e := range s.realized {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemStore) Transactions(f TransactionFilter) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Transaction
	for _, t := range s.transactions {
		if f.matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemStore) HasExternalRef(ref string) (bool, error) {
	if ref == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.transactions {
		if t.ExternalRef == ref {
			return true, nil
		}
	}
	return false, nil
}
