// Package cmd implements the CLI application to track a crypto portfolio.
package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/google/subcommands"

	"github.com/marache/coinfolio"
	"github.com/marache/coinfolio/coingecko"
	"github.com/marache/coinfolio/sqlitestore"
)

// Commands lists every subcommand. A main package registers them on a
// commander and executes the user-selected one.
var Commands = []subcommands.Command{
	&buyCmd{},
	&sellCmd{},
	&historyCmd{},
	&lotsCmd{},
	&pnlCmd{},
	&summaryCmd{},
	&taxReportCmd{},
	&pricesCmd{},
	&fmtCmd{},
	&assistCmd{},
	&topicCmd{},
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var ledgerFile = flag.String("ledger-file", "transactions.jsonl", "Path to the ledger file containing transactions (JSONL format)")
var dbFile = flag.String("db-file", "", "Path to a SQLite ledger database. When set it replaces the JSONL ledger.")
var currencyFlag = flag.String("currency", "AUD", "Reporting currency, must match the currency transactions were recorded in")

// openTracker opens the ledger the flags point at: a SQLite database when
// -db-file is set, otherwise the JSONL journal replayed into memory.
// The returned close function must be called when done.
func openTracker() (*coinfolio.Tracker, func() error, error) {
	if *dbFile != "" {
		store, err := sqlitestore.Open(*dbFile)
		if err != nil {
			return nil, nil, err
		}
		return coinfolio.NewTracker(store), store.Close, nil
	}

	journal, err := decodeJournalFile(*ledgerFile)
	if err != nil {
		return nil, nil, err
	}
	tracker, err := coinfolio.Replay(coinfolio.NewMemStore(), journal)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger %q is inconsistent: %w", *ledgerFile, err)
	}
	noop := func() error { return nil }
	return tracker, noop, nil
}

func decodeJournalFile(filename string) ([]coinfolio.Transaction, error) {
	f, err := os.Open(filename)
	if errors.Is(err, fs.ErrNotExist) {
		log.Println("warning, ledger does not exist, starting from an empty ledger instead")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return coinfolio.DecodeJournal(f)
}

// record validates and records one transaction, then persists it. In
// journal mode the transaction is appended to the JSONL file only after the
// tracker accepted it, so a rejected sell never reaches the ledger.
func record(tracker *coinfolio.Tracker, t coinfolio.Transaction) subcommands.ExitStatus {
	if t.ExternalRef != "" {
		exists, err := tracker.TransactionExists(t.ExternalRef)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error checking ledger: %v\n", err)
			return subcommands.ExitFailure
		}
		if exists {
			fmt.Fprintf(os.Stderr, "Skipping: a transaction with ref %q is already recorded\n", t.ExternalRef)
			return subcommands.ExitSuccess
		}
	}

	recorded, err := tracker.Record(t)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error recording transaction: %v\n", err)
		return subcommands.ExitFailure
	}

	if *dbFile == "" {
		if status := appendTransaction(recorded); status != subcommands.ExitSuccess {
			return status
		}
	}

	fmt.Printf("Recorded %s %s %s at %s\n", recorded.Type, recorded.Amount, recorded.Symbol, recorded.Price)
	return subcommands.ExitSuccess
}

// appendTransaction appends a single transaction to the JSONL ledger file.
func appendTransaction(t coinfolio.Transaction) subcommands.ExitStatus {
	filename := *ledgerFile
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening ledger file %q: %v\n", filename, err)
		return subcommands.ExitFailure
	}
	defer f.Close()

	if err := coinfolio.EncodeTransaction(f, t); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing to ledger file %q: %v\n", filename, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// oracle returns the price oracle for the reporting currency.
func oracle() coinfolio.PriceOracle {
	return coingecko.New(*currencyFlag)
}
