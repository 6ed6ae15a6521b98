package coinfolio

import (
	"fmt"
	"time"
)

// TransactionType is the side of a trade.
type TransactionType string

const (
	Buy  TransactionType = "BUY"
	Sell TransactionType = "SELL"
)

// ParseTransactionType parses a string into a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(s) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	default:
		return "", fmt.Errorf("unknown transaction type: %q", s)
	}
}

// Transaction is a single buy or sell trade. Immutable once recorded: the
// store assigns ID on append and nothing rewrites it afterwards.
type Transaction struct {
	ID          int64
	Timestamp   time.Time
	Symbol      string
	Type        TransactionType
	Amount      Quantity // positive quantity of the asset
	Price       Money    // price per unit
	Fee         Money    // same currency as Price, not netted into TotalValue
	Exchange    string
	ExternalRef string // external id, e.g. a chain tx hash
	Notes       string
	// Method is the accounting method used to resolve a sell.
	// Meaningless on buys.
	Method AccountingMethod
}

// NewBuy creates a buy transaction.
func NewBuy(ts time.Time, symbol string, amount Quantity, price, fee Money) Transaction {
	return Transaction{
		Timestamp: ts,
		Symbol:    symbol,
		Type:      Buy,
		Amount:    amount,
		Price:     price,
		Fee:       fee,
	}
}

// NewSell creates a sell transaction resolved with the given accounting method.
func NewSell(ts time.Time, symbol string, amount Quantity, price, fee Money, method AccountingMethod) Transaction {
	return Transaction{
		Timestamp: ts,
		Symbol:    symbol,
		Type:      Sell,
		Amount:    amount,
		Price:     price,
		Fee:       fee,
		Method:    method,
	}
}

// TotalValue is amount × price per unit. The fee is tracked separately.
func (t Transaction) TotalValue() Money {
	return t.Price.Mul(t.Amount)
}

// Validate checks the transaction fields before recording.
func (t Transaction) Validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("%w: symbol is missing", ErrUnknownSymbol)
	}
	if t.Type != Buy && t.Type != Sell {
		return fmt.Errorf("unknown transaction type: %q", t.Type)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidAmount, t.Amount)
	}
	if !t.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive, got %s", ErrInvalidAmount, t.Price)
	}
	if t.Fee.IsNegative() {
		return fmt.Errorf("%w: fee must not be negative, got %s", ErrInvalidAmount, t.Fee)
	}
	if t.Fee.Currency() != "" && t.Price.Currency() != "" && t.Fee.Currency() != t.Price.Currency() {
		return fmt.Errorf("fee currency %s does not match price currency %s", t.Fee.Currency(), t.Price.Currency())
	}
	if t.Type == Sell && !t.Method.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidAccountingMethod, int(t.Method))
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("transaction timestamp is missing")
	}
	return nil
}

func (t Transaction) Equal(o Transaction) bool {
	return t.Timestamp.Equal(o.Timestamp) &&
		t.Symbol == o.Symbol &&
		t.Type == o.Type &&
		t.Amount.Equal(o.Amount) &&
		t.Price.Equal(o.Price) &&
		t.Fee.Equal(o.Fee) &&
		t.Exchange == o.Exchange &&
		t.ExternalRef == o.ExternalRef &&
		t.Notes == o.Notes &&
		(t.Type == Buy || t.Method == o.Method)
}

// MarshalJSON implements the json.Marshaler interface for Transaction.
// The journal format keeps one compact object per line.
func (t Transaction) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("type", t.Type)
	w.Append("timestamp", t.Timestamp.UTC().Format(time.RFC3339))
	w.Append("symbol", t.Symbol)
	w.Append("amount", t.Amount)
	w.Append("price", t.Price.Decimal())
	w.Optional("currency", t.Price.Currency())
	if !t.Fee.IsZero() {
		w.Append("fee", t.Fee.Decimal())
	}
	if t.Type == Sell {
		w.Append("method", t.Method)
	}
	w.Optional("exchange", t.Exchange)
	w.Optional("ref", t.ExternalRef)
	w.Optional("notes", t.Notes)
	return w.MarshalJSON()
}
