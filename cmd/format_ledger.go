package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/marache/coinfolio"
)

type fmtCmd struct{}

func (*fmtCmd) Name() string { return "fmt" }
func (*fmtCmd) Synopsis() string {
	return "validates and formats the ledger file into a canonical form"
}
func (*fmtCmd) Usage() string {
	return `cft fmt

  Reads the JSONL ledger, sorts transactions chronologically, replays them
  to check the ledger is consistent (no oversells, valid methods) and
  rewrites the file in canonical form. Only meaningful for the JSONL
  ledger; a SQLite ledger is already canonical.
`
}

func (*fmtCmd) SetFlags(_ *flag.FlagSet) {}

func (c *fmtCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if *dbFile != "" {
		fmt.Fprintln(os.Stderr, "fmt only applies to the JSONL ledger, not to -db-file")
		return subcommands.ExitUsageError
	}

	journal, err := decodeJournalFile(*ledgerFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading ledger %q: %v\n", *ledgerFile, err)
		return subcommands.ExitFailure
	}
	if len(journal) == 0 {
		fmt.Fprintln(os.Stderr, "Warning: ledger is empty, nothing to format.")
		return subcommands.ExitSuccess
	}

	// Replay to reject a ledger that no longer adds up before touching the file.
	if _, err := coinfolio.Replay(coinfolio.NewMemStore(), journal); err != nil {
		fmt.Fprintf(os.Stderr, "Error: ledger %q is inconsistent: %v\n", *ledgerFile, err)
		return subcommands.ExitFailure
	}

	tmp := *ledgerFile + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %q: %v\n", tmp, err)
		return subcommands.ExitFailure
	}
	if err := coinfolio.EncodeJournal(out, journal); err != nil {
		out.Close()
		os.Remove(tmp)
		fmt.Fprintf(os.Stderr, "Error writing %q: %v\n", tmp, err)
		return subcommands.ExitFailure
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		fmt.Fprintf(os.Stderr, "Error closing %q: %v\n", tmp, err)
		return subcommands.ExitFailure
	}
	if err := os.Rename(tmp, *ledgerFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error replacing %q: %v\n", *ledgerFile, err)
		return subcommands.ExitFailure
	}

	fmt.Fprintf(os.Stderr, "Formatted %d transactions in %q.\n", len(journal), *ledgerFile)
	return subcommands.ExitSuccess
}
