package coinfolio

import (
	"errors"
	"fmt"
)

// Error taxonomy. Callers can distinguish an invalid request
// (ErrInvalidAmount, ErrUnknownSymbol, ErrInsufficientHoldings,
// ErrInvalidAccountingMethod, ErrCurrencyMismatch) from an unavailable
// dependency (ErrPriceUnavailable) with errors.Is.
var (
	// ErrInvalidAmount reports a non-positive amount or price, or a negative fee.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrUnknownSymbol reports a symbol with no holdings history at all.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrInsufficientHoldings reports a sell exceeding the open lot total.
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	// ErrPriceUnavailable reports a price oracle failure. Recoverable:
	// aggregate calls degrade to partial results instead of failing.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrInvalidAccountingMethod reports an unsupported accounting method value.
	ErrInvalidAccountingMethod = errors.New("invalid accounting method")
	// ErrCurrencyMismatch reports a transaction priced in a different
	// currency than the ledger already uses.
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

// InsufficientHoldingsError carries the figures behind an oversell rejection.
type InsufficientHoldingsError struct {
	Symbol    string
	Requested Quantity
	Available Quantity
}

func (e *InsufficientHoldingsError) Error() string {
	return fmt.Sprintf("insufficient holdings: cannot sell %s %s, only %s open",
		e.Requested, e.Symbol, e.Available)
}

func (e *InsufficientHoldingsError) Unwrap() error { return ErrInsufficientHoldings }
