package coinfolio

import "fmt"

// AccountingMethod defines the lot selection order used to resolve a sell.
type AccountingMethod int

const (
	// FIFO (First-In, First-Out) consumes the oldest open lots first.
	FIFO AccountingMethod = iota
	// LIFO (Last-In, First-Out) consumes the most recently purchased lots first.
	LIFO
	// AverageCost treats all open lots as a single pool with one weighted-average cost.
	AverageCost
)

func (m AccountingMethod) String() string {
	switch m {
	case FIFO:
		return "fifo"
	case LIFO:
		return "lifo"
	case AverageCost:
		return "average"
	default:
		return "unknown"
	}
}

// Valid reports whether m is one of the supported methods.
func (m AccountingMethod) Valid() bool {
	switch m {
	case FIFO, LIFO, AverageCost:
		return true
	default:
		return false
	}
}

// ParseAccountingMethod parses a string into an AccountingMethod.
func ParseAccountingMethod(s string) (AccountingMethod, error) {
	switch s {
	case "fifo":
		return FIFO, nil
	case "lifo":
		return LIFO, nil
	case "average":
		return AverageCost, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidAccountingMethod, s)
	}
}

// MarshalJSON implements the json.Marshaler interface for AccountingMethod.
func (m AccountingMethod) MarshalJSON() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAccountingMethod, int(m))
	}
	return []byte(`"` + m.String() + `"`), nil
}

func (m *AccountingMethod) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("%w: %s", ErrInvalidAccountingMethod, string(data))
	}
	parsed, err := ParseAccountingMethod(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
