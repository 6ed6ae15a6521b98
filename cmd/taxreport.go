package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/marache/coinfolio"
)

type taxReportCmd struct {
	year   int
	method string
}

func (*taxReportCmd) Name() string     { return "taxreport" }
func (*taxReportCmd) Synopsis() string { return "gain/loss report for a tax year" }
func (*taxReportCmd) Usage() string {
	return `cft taxreport [-year <year>] [-method fifo|lifo|average]

  Reports the realized gains and losses of a calendar year. Only entries
  realized under the given accounting method are included, since each sell
  is settled with the method chosen when it was recorded.
`
}

func (c *taxReportCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "year", time.Now().UTC().Year(), "Calendar year to report on.")
	f.StringVar(&c.method, "method", "fifo", "Accounting method (fifo, lifo, average).")
}

func (c *taxReportCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	report, err := tracker.TaxReport(c.year, method)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	printMarkdown(taxReportMarkdown(report))
	return subcommands.ExitSuccess
}

func taxReportMarkdown(report *coinfolio.TaxReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Tax year %d (%s)\n\n", report.Year, report.Method)
	if len(report.Gains) == 0 && len(report.Losses) == 0 {
		b.WriteString("No realized gains or losses this year.\n")
		return b.String()
	}

	writeEntries := func(title string, entries []coinfolio.RealizedPnL) {
		if len(entries) == 0 {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n", title)
		b.WriteString("| Date | Symbol | Amount | Cost Basis | Sale Value | Gain/Loss |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, e := range entries {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				e.SaleDate.UTC().Format("2006-01-02"), e.Symbol, e.Amount,
				e.CostBasis, e.SaleValue, e.GainLoss.SignedString())
		}
		b.WriteString("\n")
	}
	writeEntries("Gains", report.Gains)
	writeEntries("Losses", report.Losses)

	fmt.Fprintf(&b, "- Total gains: %s\n", report.TotalGains)
	fmt.Fprintf(&b, "- Total losses: %s\n", report.TotalLosses)
	fmt.Fprintf(&b, "- Net: %s\n", report.NetGainLoss.SignedString())
	return b.String()
}
