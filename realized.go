package coinfolio

import "time"

// RealizedPnL is the gain or loss locked in by matching part of a sell
// against one cost basis lot. Append-only: one entry per (sell, lot)
// pairing, immutable once created.
type RealizedPnL struct {
	ID                int64
	SellTransactionID int64
	LotID             int64
	Symbol            string
	Amount            Quantity // amount matched from the lot
	CostBasis         Money    // amount × effective cost per unit
	SalePrice         Money    // sell price per unit
	SaleValue         Money    // amount × sale price, gross of fee
	GainLoss          Money    // SaleValue − fee share − CostBasis
	Method            AccountingMethod
	SaleDate          time.Time
}

// RealizedFilter selects realized entries. Zero values mean "no constraint".
type RealizedFilter struct {
	Symbol string
	From   time.Time // inclusive
	To     time.Time // inclusive
}

func (f RealizedFilter) matches(e RealizedPnL) bool {
	if f.Symbol != "" && e.Symbol != f.Symbol {
		return false
	}
	if !f.From.IsZero() && e.SaleDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.SaleDate.After(f.To) {
		return false
	}
	return true
}
