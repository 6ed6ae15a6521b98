package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/marache/coinfolio"
)

// txFlags holds the flags common to buy and sell.
type txFlags struct {
	symbol   string
	amount   string
	price    string
	fee      string
	date     string
	exchange string
	ref      string
	note     string
}

func (c *txFlags) setFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "Ticker symbol, e.g. BTC")
	f.StringVar(&c.amount, "a", "", "Amount of the asset")
	f.StringVar(&c.price, "p", "", "Price per unit in the reporting currency")
	f.StringVar(&c.fee, "fee", "0", "Transaction fee in the reporting currency")
	f.StringVar(&c.date, "d", "", "Transaction time (RFC 3339 or YYYY-MM-DD, defaults to now)")
	f.StringVar(&c.exchange, "exchange", "", "Exchange the transaction happened on")
	f.StringVar(&c.ref, "ref", "", "External transaction id, used to skip duplicates")
	f.StringVar(&c.note, "note", "", "Free-form note")
}

func (c *txFlags) parse() (symbol string, amount coinfolio.Quantity, price, fee coinfolio.Money, when time.Time, err error) {
	symbol = strings.ToUpper(strings.TrimSpace(c.symbol))
	if symbol == "" {
		return symbol, amount, price, fee, when, fmt.Errorf("-s <symbol> is required")
	}
	a, err := decimal.NewFromString(c.amount)
	if err != nil {
		return symbol, amount, price, fee, when, fmt.Errorf("invalid -a amount %q: %w", c.amount, err)
	}
	p, err := decimal.NewFromString(c.price)
	if err != nil {
		return symbol, amount, price, fee, when, fmt.Errorf("invalid -p price %q: %w", c.price, err)
	}
	ff, err := decimal.NewFromString(c.fee)
	if err != nil {
		return symbol, amount, price, fee, when, fmt.Errorf("invalid -fee %q: %w", c.fee, err)
	}
	when, err = parseTime(c.date)
	if err != nil {
		return symbol, amount, price, fee, when, err
	}
	return symbol, coinfolio.Q(a), coinfolio.M(p, *currencyFlag), coinfolio.M(ff, *currencyFlag), when, nil
}

// parseTime accepts RFC 3339 or a plain date; empty means now.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q, want RFC 3339 or YYYY-MM-DD", s)
}

type buyCmd struct{ txFlags }

func (*buyCmd) Name() string     { return "buy" }
func (*buyCmd) Synopsis() string { return "record a buy transaction" }
func (*buyCmd) Usage() string {
	return `cft buy -s <symbol> -a <amount> -p <price> [-fee <fee>] [-d <date>] [-exchange <name>] [-ref <id>] [-note <text>]

  Records a buy and opens a cost basis lot. The fee is folded into the
  lot's cost per unit.
`
}

func (c *buyCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *buyCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbol, amount, price, fee, when, err := c.parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	tracker, closeTracker, err := openTracker()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening ledger: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeTracker()

	t := coinfolio.NewBuy(when, symbol, amount, price, fee)
	t.Exchange = c.exchange
	t.ExternalRef = c.ref
	t.Notes = c.note
	return record(tracker, t)
}

type sellCmd struct {
	txFlags
	method string
}

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "record a sell transaction" }
func (*sellCmd) Usage() string {
	return `cft sell -s <symbol> -a <amount> -p <price> [-method fifo|lifo|average] [-fee <fee>] [-d <date>] [-exchange <name>] [-ref <id>] [-note <text>]

  Records a sell, matches it against the open lots of the symbol with the
  chosen accounting method and realizes the gain or loss. Selling more than
  is held is rejected and nothing is recorded.
`
}

func (c *sellCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.StringVar(&c.method, "method", "fifo", "Accounting method (fifo, lifo, average)")
}

func (c *sellCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbol, amount, price, fee, when, err := c.parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	method, err := coinfolio.ParseAccountingMethod(c.method)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	tracker, closeTracker, err := openTracker()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening ledger: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeTracker()

	t := coinfolio.NewSell(when, symbol, amount, price, fee, method)
	t.Exchange = c.exchange
	t.ExternalRef = c.ref
	t.Notes = c.note
	return record(tracker, t)
}
