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

type historyCmd struct {
	symbol string
	txType string
	from   string
	to     string
	tail   int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list recorded transactions" }
func (*historyCmd) Usage() string {
	return `cft history [-s <symbol>] [-type BUY|SELL] [-from <date>] [-to <date>] [-tail <n>]

  Lists transactions from the ledger in chronological order, with options
  for filtering and limiting the output.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "Only transactions for this symbol.")
	f.StringVar(&c.txType, "type", "", "Only transactions of this type (BUY or SELL).")
	f.StringVar(&c.from, "from", "", "Start of the date range (RFC 3339 or YYYY-MM-DD).")
	f.StringVar(&c.to, "to", "", "End of the date range.")
	f.IntVar(&c.tail, "tail", 0, "Show only the last N transactions.")
}

func (c *historyCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filter := coinfolio.TransactionFilter{Symbol: strings.ToUpper(c.symbol)}
	if c.txType != "" {
		txType, err := coinfolio.ParseTransactionType(strings.ToUpper(c.txType))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
		filter.Type = txType
	}
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

	transactions, err := tracker.History(filter)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if c.tail > 0 && len(transactions) > c.tail {
		transactions = transactions[len(transactions)-c.tail:]
	}

	printMarkdown(transactionsMarkdown(transactions))
	return subcommands.ExitSuccess
}

func transactionsMarkdown(transactions []coinfolio.Transaction) string {
	if len(transactions) == 0 {
		return "No transactions.\n"
	}
	var b strings.Builder
	b.WriteString("# Transactions\n\n")
	b.WriteString("| Date | Type | Symbol | Amount | Price | Fee | Method | Exchange |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, t := range transactions {
		method := ""
		if t.Type == coinfolio.Sell {
			method = t.Method.String()
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			t.Timestamp.UTC().Format("2006-01-02 15:04"),
			t.Type, t.Symbol, t.Amount, t.Price, t.Fee, method, t.Exchange)
	}
	return b.String()
}
