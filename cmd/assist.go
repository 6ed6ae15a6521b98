package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"
	"google.golang.org/genai"

	"github.com/marache/coinfolio"
	"github.com/marache/coinfolio/advisor"
)

// assistCmd asks the AI advisor to review the portfolio.
type assistCmd struct {
	year int
}

func (*assistCmd) Name() string     { return "assist" }
func (*assistCmd) Synopsis() string { return "AI review of the portfolio" }
func (*assistCmd) Usage() string {
	return `cft assist [-year <year>] [question...]

  Sends the current portfolio summary (and the tax report of the given
  year) to the AI advisor and prints its review. Extra arguments are asked
  as a follow-up question.
`
}

func (c *assistCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "year", time.Now().UTC().Year(), "Tax year to include in the review, 0 to skip.")
}

func (c *assistCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	var report *coinfolio.TaxReport
	if c.year != 0 {
		// The method choice only filters the report, fifo is the default everywhere.
		report, err = tracker.TaxReport(c.year, coinfolio.FIFO)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
	}

	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error initializing Gemini's client:", err)
		return subcommands.ExitFailure
	}

	a := advisor.New()
	if err := a.Start(ctx, client); err != nil {
		fmt.Fprintln(os.Stderr, "Error starting advisor:", err)
		return subcommands.ExitFailure
	}

	review, err := a.Review(ctx, summary, report)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Advisor failed:", err)
		return subcommands.ExitFailure
	}
	printMarkdown(review)

	if f.NArg() > 0 {
		answer, err := a.Ask(ctx, strings.Join(f.Args(), " "))
		if err != nil {
			fmt.Fprintln(os.Stderr, "Advisor failed:", err)
			return subcommands.ExitFailure
		}
		printMarkdown(answer)
	}

	return subcommands.ExitSuccess
}
