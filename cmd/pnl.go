package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/marache/coinfolio"
)

type pnlCmd struct {
	symbol string
	price  string
	from   string
	to     string
}

func (*pnlCmd) Name() string     { return "pnl" }
func (*pnlCmd) Synopsis() string { return "realized and unrealized profit and loss" }
func (*pnlCmd) Usage() string {
	return `cft pnl [-s <symbol>] [-price <price>] [-from <date>] [-to <date>]

  Shows the realized gain or loss over the ledger, optionally restricted to
  one symbol and a date range. With -s, the unrealized position of that
  symbol is valued too, at the live price or at -price when given.
`
}

func (c *pnlCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "Restrict to this symbol.")
	f.StringVar(&c.price, "price", "", "Value the position at this price instead of fetching one.")
	f.StringVar(&c.from, "from", "", "Start of the date range for realized entries.")
	f.StringVar(&c.to, "to", "", "End of the date range for realized entries.")
}

func (c *pnlCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbol := strings.ToUpper(strings.TrimSpace(c.symbol))
	filter := coinfolio.RealizedFilter{Symbol: symbol}
	var err error
	if c.from != "" {
		if filter.From, err = parseTime(c.from); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
	}
	if c.to != "" {
		if filter.To, err = parseTime(c.to); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
	}

	tracker, closeTracker, err := openTracker()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening ledger: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeTracker()

	realized, err := tracker.RealizedPnL(filter)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	var b strings.Builder
	b.WriteString("# Profit and loss\n\n")
	fmt.Fprintf(&b, "Realized: %s over %d sells\n", realized.TotalGainLoss.SignedString(), realized.TradeCount)

	if symbol != "" {
		price, err := c.resolvePrice(ctx, symbol)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		position, err := tracker.UnrealizedPnL(symbol, price)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(&b, "\n## %s position\n\n", symbol)
		fmt.Fprintf(&b, "Held: %s at %s average cost\n", position.Amount, position.AvgCostBasis)
		fmt.Fprintf(&b, "Cost basis: %s\n", position.CostBasis)
		fmt.Fprintf(&b, "Value at %s: %s\n", position.CurrentPrice, position.CurrentValue)
		if position.NoBasis {
			fmt.Fprintf(&b, "Unrealized: %s\n", position.GainLoss.SignedString())
		} else {
			fmt.Fprintf(&b, "Unrealized: %s (%s)\n", position.GainLoss.SignedString(), position.GainLossPct.SignedString())
		}
	}

	printMarkdown(b.String())
	return subcommands.ExitSuccess
}

func (c *pnlCmd) resolvePrice(ctx context.Context, symbol string) (coinfolio.Money, error) {
	if c.price != "" {
		p, err := decimal.NewFromString(c.price)
		if err != nil {
			return coinfolio.Money{}, fmt.Errorf("invalid -price %q: %w", c.price, err)
		}
		return coinfolio.M(p, *currencyFlag), nil
	}
	return oracle().CurrentPrice(ctx, symbol)
}
