package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/subcommands"
)

type pricesCmd struct {
	date string
}

func (*pricesCmd) Name() string     { return "prices" }
func (*pricesCmd) Synopsis() string { return "show market prices" }
func (*pricesCmd) Usage() string {
	return `cft prices [-d <date>] [symbol...]

  Shows current market prices for the given symbols, or for every held
  symbol when none are given. With -d, shows the price on that day instead.
`
}

func (c *pricesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "Show the historical price on this day (YYYY-MM-DD).")
}

func (c *pricesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbols := f.Args()
	for i, s := range symbols {
		symbols[i] = strings.ToUpper(s)
	}
	if len(symbols) == 0 {
		tracker, closeTracker, err := openTracker()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening ledger: %v\n", err)
			return subcommands.ExitFailure
		}
		holdings, err := tracker.Holdings()
		closeTracker()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		for symbol := range holdings {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
	}
	if len(symbols) == 0 {
		fmt.Println("Nothing held and no symbols given.")
		return subcommands.ExitSuccess
	}

	o := oracle()
	var b strings.Builder

	if c.date != "" {
		day, err := parseTime(c.date)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
		fmt.Fprintf(&b, "Prices on %s:\n\n", day.Format("2006-01-02"))
		b.WriteString("| Symbol | Price |\n|---|---|\n")
		for _, symbol := range symbols {
			price, err := o.HistoricalPrice(ctx, symbol, day)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", symbol, err)
				continue
			}
			fmt.Fprintf(&b, "| %s | %s |\n", symbol, price)
		}
		printMarkdown(b.String())
		return subcommands.ExitSuccess
	}

	prices, err := o.CurrentPrices(ctx, symbols)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	b.WriteString("| Symbol | Price |\n|---|---|\n")
	for _, symbol := range symbols {
		price, ok := prices[symbol]
		if !ok {
			fmt.Fprintf(&b, "| %s | unavailable |\n", symbol)
			continue
		}
		fmt.Fprintf(&b, "| %s | %s |\n", symbol, price)
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}
