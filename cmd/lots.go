package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/marache/coinfolio"
)

type lotsCmd struct {
	symbol string
	all    bool
}

func (*lotsCmd) Name() string     { return "lots" }
func (*lotsCmd) Synopsis() string { return "list cost basis lots for a symbol" }
func (*lotsCmd) Usage() string {
	return `cft lots -s <symbol> [-all]

  Lists the open cost basis lots of a symbol in purchase order. With -all,
  fully consumed lots are listed too.
`
}

func (c *lotsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "Ticker symbol, e.g. BTC")
	f.BoolVar(&c.all, "all", false, "Include closed lots.")
}

func (c *lotsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbol := strings.ToUpper(strings.TrimSpace(c.symbol))
	if symbol == "" {
		fmt.Fprintln(os.Stderr, "-s <symbol> is required")
		return subcommands.ExitUsageError
	}

	tracker, closeTracker, err := openTracker()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening ledger: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeTracker()

	var lots []*coinfolio.CostBasisLot
	if c.all {
		lots, err = tracker.Store().Lots(symbol)
	} else {
		lots, err = tracker.OpenLots(symbol)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	printMarkdown(lotsMarkdown(symbol, lots))
	return subcommands.ExitSuccess
}

func lotsMarkdown(symbol string, lots []*coinfolio.CostBasisLot) string {
	if len(lots) == 0 {
		return fmt.Sprintf("No lots for %s.\n", symbol)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s lots\n\n", symbol)
	b.WriteString("| Lot | Purchased | Amount | Remaining | Cost/Unit | Total Cost | Status |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, lot := range lots {
		status := "open"
		if lot.Closed {
			status = "closed " + lot.ClosedDate.UTC().Format("2006-01-02")
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %s |\n",
			lot.ID, lot.PurchaseDate.UTC().Format("2006-01-02"),
			lot.Amount, lot.Remaining, lot.CostPerUnit, lot.TotalCost(), status)
	}
	return b.String()
}
