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

type summaryCmd struct{}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "portfolio summary with live prices" }
func (*summaryCmd) Usage() string {
	return `cft summary

  Values every open position at the current market price and shows the
  portfolio totals. Symbols whose price lookup failed are listed apart and
  left out of the totals.
`
}

func (*summaryCmd) SetFlags(_ *flag.FlagSet) {}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	tracker, closeTracker, err := openTracker()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening ledger: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeTracker()

	summary, err := tracker.PortfolioSummaryLive(ctx, oracle())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	printMarkdown(summaryMarkdown(summary))
	return subcommands.ExitSuccess
}

func summaryMarkdown(summary *coinfolio.PortfolioSummary) string {
	var b strings.Builder
	b.WriteString("# Portfolio summary\n\n")
	if len(summary.Positions) == 0 && len(summary.FailedSymbols) == 0 {
		b.WriteString("No open positions.\n")
		return b.String()
	}

	b.WriteString("| Symbol | Amount | Avg Cost | Cost Basis | Price | Value | Unrealized | % |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, p := range summary.Positions {
		pct := p.GainLossPct.SignedString()
		if p.NoBasis {
			pct = "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			p.Symbol, p.Amount, p.AvgCostBasis, p.CostBasis,
			p.CurrentPrice, p.CurrentValue, p.GainLoss.SignedString(), pct)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "- Total cost basis: %s\n", summary.TotalCostBasis)
	fmt.Fprintf(&b, "- Total value: %s\n", summary.TotalCurrentValue)
	fmt.Fprintf(&b, "- Unrealized: %s\n", summary.TotalUnrealized.SignedString())
	fmt.Fprintf(&b, "- Realized: %s over %d sells\n", summary.TotalRealized.SignedString(), summary.TotalRealizedCount)
	fmt.Fprintf(&b, "- Total: %s (%s)\n", summary.TotalGainLoss.SignedString(), summary.TotalReturnPct.SignedString())

	if len(summary.FailedSymbols) > 0 {
		fmt.Fprintf(&b, "\nNo price available for: %s. These positions are not in the totals.\n",
			strings.Join(summary.FailedSymbols, ", "))
	}
	return b.String()
}
