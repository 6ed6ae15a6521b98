package coinfolio

import (
	"sort"
	"time"
)

// CostBasisLot is a tranche of an asset acquired in one buy transaction.
// Created exactly once per buy; only the matcher reduces Remaining. Closed
// lots are never deleted, they stay for the audit trail tax reports need.
type CostBasisLot struct {
	ID            int64
	TransactionID int64
	Symbol        string
	Amount        Quantity // original amount, never changes
	Remaining     Quantity // 0 <= Remaining <= Amount
	CostPerUnit   Money    // includes the amortized buy-side fee
	Fee           Money    // buy-side fee paid for this lot
	PurchaseDate  time.Time
	Closed        bool
	ClosedDate    time.Time // zero while open
}

// newLotForBuy derives the cost basis lot a buy transaction opens.
// cost_per_unit = (amount×price + fee) / amount.
func newLotForBuy(t Transaction) *CostBasisLot {
	return &CostBasisLot{
		TransactionID: t.ID,
		Symbol:        t.Symbol,
		Amount:        t.Amount,
		Remaining:     t.Amount,
		CostPerUnit:   t.TotalValue().Add(t.Fee).Div(t.Amount),
		Fee:           t.Fee,
		PurchaseDate:  t.Timestamp,
	}
}

// TotalCost is the cost basis of what is still held in this lot.
func (l *CostBasisLot) TotalCost() Money {
	return l.CostPerUnit.Mul(l.Remaining)
}

// consume reduces the lot by q and closes it when nothing remains.
// The caller guarantees q <= Remaining.
func (l *CostBasisLot) consume(q Quantity, when time.Time) {
	l.Remaining = l.Remaining.Sub(q)
	if l.Remaining.IsZero() {
		l.Closed = true
		l.ClosedDate = when
	}
}

func (l *CostBasisLot) clone() *CostBasisLot {
	c := *l
	return &c
}

// sortLotsFIFO orders lots by purchase date ascending. Equal timestamps
// break ties by lot id (insertion sequence) so matching is deterministic.
func sortLotsFIFO(lots []*CostBasisLot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if lots[i].PurchaseDate.Equal(lots[j].PurchaseDate) {
			return lots[i].ID < lots[j].ID
		}
		return lots[i].PurchaseDate.Before(lots[j].PurchaseDate)
	})
}

// sortLotsLIFO orders lots by purchase date descending, newest id first on ties.
func sortLotsLIFO(lots []*CostBasisLot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if lots[i].PurchaseDate.Equal(lots[j].PurchaseDate) {
			return lots[i].ID > lots[j].ID
		}
		return lots[i].PurchaseDate.After(lots[j].PurchaseDate)
	})
}

// openQuantity sums the remaining amounts across lots.
func openQuantity(lots []*CostBasisLot) Quantity {
	var total Quantity
	for _, l := range lots {
		total = total.Add(l.Remaining)
	}
	return total
}

// openCostBasis sums remaining×cost_per_unit across lots.
func openCostBasis(lots []*CostBasisLot) Money {
	var total Money
	for _, l := range lots {
		total = total.Add(l.TotalCost())
	}
	return total
}

// weightedAverageCost is Σ(remaining×cost_per_unit)/Σremaining over the open pool.
func weightedAverageCost(lots []*CostBasisLot) Money {
	total := openQuantity(lots)
	if total.IsZero() {
		return Money{}
	}
	return openCostBasis(lots).Div(total)
}
