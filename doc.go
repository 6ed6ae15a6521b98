// Package coinfolio tracks cryptocurrency buy and sell activity and derives
// cost basis, realized and unrealized profit/loss, and tax-year summaries.
//
// Every buy opens a CostBasisLot with the buy-side fee amortized into its
// cost per unit. Every sell is matched against the open lots of its symbol
// using the accounting method chosen at the time of sale (FIFO, LIFO or
// average cost) and produces append-only RealizedPnL entries, one per lot
// touched. Holdings are always derived from lot remainders, never stored.
//
// The Tracker is the engine facade: Record is the single write entry point
// and takes a per-symbol lock; the P&L and tax report calculators are pure
// readers over the Store. Stores are explicit handles: MemStore for
// in-memory use with the JSONL journal, sqlitestore for a durable ledger.
package coinfolio
