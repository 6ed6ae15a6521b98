// Package sqlitestore persists the transaction ledger, cost basis lots and
// realized P&L entries in a SQLite database. It implements coinfolio.Store.
//
// Decimal values are stored as TEXT so amounts survive the round trip
// exactly; timestamps are stored as UTC RFC 3339 strings.
package sqlitestore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/marache/coinfolio"
)

const timeLayout = time.RFC3339

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	symbol TEXT NOT NULL,
	transaction_type TEXT NOT NULL CHECK(transaction_type IN ('BUY', 'SELL')),
	amount TEXT NOT NULL,
	price_per_unit TEXT NOT NULL,
	total_value TEXT NOT NULL,
	fee TEXT NOT NULL DEFAULT '0',
	currency TEXT NOT NULL DEFAULT '',
	accounting_method TEXT,
	exchange TEXT,
	external_ref TEXT,
	notes TEXT,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS cost_basis_lots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	transaction_id INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	amount TEXT NOT NULL,
	remaining_amount TEXT NOT NULL,
	cost_per_unit TEXT NOT NULL,
	total_cost TEXT NOT NULL,
	fee TEXT NOT NULL DEFAULT '0',
	currency TEXT NOT NULL DEFAULT '',
	purchase_date TEXT NOT NULL,
	is_closed INTEGER NOT NULL DEFAULT 0,
	closed_date TEXT,
	FOREIGN KEY (transaction_id) REFERENCES transactions(id)
);

CREATE TABLE IF NOT EXISTS realized_pnl (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sell_transaction_id INTEGER NOT NULL,
	lot_id INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	amount TEXT NOT NULL,
	cost_basis TEXT NOT NULL,
	sale_price TEXT NOT NULL,
	sale_value TEXT NOT NULL,
	realized_gain_loss TEXT NOT NULL,
	currency TEXT NOT NULL DEFAULT '',
	accounting_method TEXT NOT NULL,
	sale_date TEXT NOT NULL,
	FOREIGN KEY (sell_transaction_id) REFERENCES transactions(id),
	FOREIGN KEY (lot_id) REFERENCES cost_basis_lots(id)
);

CREATE INDEX IF NOT EXISTS idx_transactions_symbol ON transactions(symbol);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(timestamp);
CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(transaction_type);
CREATE INDEX IF NOT EXISTS idx_cost_basis_lots_symbol ON cost_basis_lots(symbol);
CREATE INDEX IF NOT EXISTS idx_cost_basis_lots_closed ON cost_basis_lots(is_closed, symbol);
CREATE INDEX IF NOT EXISTS idx_realized_pnl_date ON realized_pnl(sale_date);
`

// Store is a durable coinfolio.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL keeps concurrent readers off the writer's back.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) RecordBuy(t *coinfolio.Transaction, lot *coinfolio.CostBasisLot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id, err := insertTransaction(tx, t)
	if err != nil {
		return err
	}
	t.ID = id
	lot.TransactionID = id

	res, err := tx.Exec(`
		INSERT INTO cost_basis_lots
		(transaction_id, symbol, amount, remaining_amount, cost_per_unit,
		 total_cost, fee, currency, purchase_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lot.TransactionID,
		lot.Symbol,
		lot.Amount.String(),
		lot.Remaining.String(),
		lot.CostPerUnit.Decimal().String(),
		lot.TotalCost().Decimal().String(),
		lot.Fee.Decimal().String(),
		lot.CostPerUnit.Currency(),
		lot.PurchaseDate.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert lot: %w", err)
	}
	lotID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	lot.ID = lotID

	return tx.Commit()
}

func (s *Store) RecordSell(t *coinfolio.Transaction, touched []*coinfolio.CostBasisLot, entries []*coinfolio.RealizedPnL) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id, err := insertTransaction(tx, t)
	if err != nil {
		return err
	}
	t.ID = id

	for _, lot := range touched {
		closedDate := sql.NullString{}
		if lot.Closed {
			closedDate = sql.NullString{String: lot.ClosedDate.UTC().Format(timeLayout), Valid: true}
		}
		_, err := tx.Exec(`
			UPDATE cost_basis_lots
			SET remaining_amount = ?, total_cost = ?, is_closed = ?, closed_date = ?
			WHERE id = ?`,
			lot.Remaining.String(),
			lot.TotalCost().Decimal().String(),
			lot.Closed,
			closedDate,
			lot.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update lot %d: %w", lot.ID, err)
		}
	}

	for _, e := range entries {
		e.SellTransactionID = id
		res, err := tx.Exec(`
			INSERT INTO realized_pnl
			(sell_transaction_id, lot_id, symbol, amount, cost_basis,
			 sale_price, sale_value, realized_gain_loss, currency,
			 accounting_method, sale_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.SellTransactionID,
			e.LotID,
			e.Symbol,
			e.Amount.String(),
			e.CostBasis.Decimal().String(),
			e.SalePrice.Decimal().String(),
			e.SaleValue.Decimal().String(),
			e.GainLoss.Decimal().String(),
			e.SalePrice.Currency(),
			e.Method.String(),
			e.SaleDate.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("failed to insert realized entry: %w", err)
		}
		entryID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		e.ID = entryID
	}

	return tx.Commit()
}

func insertTransaction(tx *sql.Tx, t *coinfolio.Transaction) (int64, error) {
	method := sql.NullString{}
	if t.Type == coinfolio.Sell {
		method = sql.NullString{String: t.Method.String(), Valid: true}
	}
	res, err := tx.Exec(`
		INSERT INTO transactions
		(timestamp, symbol, transaction_type, amount, price_per_unit,
		 total_value, fee, currency, accounting_method, exchange,
		 external_ref, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Timestamp.UTC().Format(timeLayout),
		t.Symbol,
		string(t.Type),
		t.Amount.String(),
		t.Price.Decimal().String(),
		t.TotalValue().Decimal().String(),
		t.Fee.Decimal().String(),
		t.Price.Currency(),
		method,
		nullString(t.Exchange),
		nullString(t.ExternalRef),
		nullString(t.Notes),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) OpenLots(symbol string) ([]*coinfolio.CostBasisLot, error) {
	return s.queryLots(`
		SELECT id, transaction_id, symbol, amount, remaining_amount,
		       cost_per_unit, fee, currency, purchase_date, is_closed, closed_date
		FROM cost_basis_lots
		WHERE symbol = ? AND is_closed = 0
		ORDER BY purchase_date ASC, id ASC`, symbol)
}

func (s *Store) Lots(symbol string) ([]*coinfolio.CostBasisLot, error) {
	return s.queryLots(`
		SELECT id, transaction_id, symbol, amount, remaining_amount,
		       cost_per_unit, fee, currency, purchase_date, is_closed, closed_date
		FROM cost_basis_lots
		WHERE symbol = ?
		ORDER BY purchase_date ASC, id ASC`, symbol)
}

func (s *Store) queryLots(query string, args ...any) ([]*coinfolio.CostBasisLot, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	var lots []*coinfolio.CostBasisLot
	for rows.Next() {
		var (
			id, txID                            int64
			symbol, amount, remaining           string
			costPerUnit, fee, currency, bought  string
			isClosed                            bool
			closedDate                          sql.NullString
		)
		if err := rows.Scan(&id, &txID, &symbol, &amount, &remaining,
			&costPerUnit, &fee, &currency, &bought, &isClosed, &closedDate); err != nil {
			return nil, err
		}
		lot := &coinfolio.CostBasisLot{
			ID:            id,
			TransactionID: txID,
			Symbol:        symbol,
			Closed:        isClosed,
		}
		if lot.Amount, err = parseQuantity(amount); err != nil {
			return nil, err
		}
		if lot.Remaining, err = parseQuantity(remaining); err != nil {
			return nil, err
		}
		if lot.CostPerUnit, err = parseMoney(costPerUnit, currency); err != nil {
			return nil, err
		}
		if lot.Fee, err = parseMoney(fee, currency); err != nil {
			return nil, err
		}
		if lot.PurchaseDate, err = time.Parse(timeLayout, bought); err != nil {
			return nil, err
		}
		if closedDate.Valid {
			if lot.ClosedDate, err = time.Parse(timeLayout, closedDate.String); err != nil {
				return nil, err
			}
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func (s *Store) OpenSymbols() ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT symbol FROM cost_basis_lots
		WHERE is_closed = 0
		ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query open symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

func (s *Store) Realized(f coinfolio.RealizedFilter) ([]coinfolio.RealizedPnL, error) {
	query := `
		SELECT id, sell_transaction_id, lot_id, symbol, amount, cost_basis,
		       sale_price, sale_value, realized_gain_loss, currency,
		       accounting_method, sale_date
		FROM realized_pnl WHERE 1=1`
	var args []any
	if f.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, f.Symbol)
	}
	if !f.From.IsZero() {
		query += " AND sale_date >= ?"
		args = append(args, f.From.UTC().Format(timeLayout))
	}
	if !f.To.IsZero() {
		query += " AND sale_date <= ?"
		args = append(args, f.To.UTC().Format(timeLayout))
	}
	query += " ORDER BY sale_date ASC, id ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query realized entries: %w", err)
	}
	defer rows.Close()

	var entries []coinfolio.RealizedPnL
	for rows.Next() {
		var (
			e                                   coinfolio.RealizedPnL
			amount, costBasis, salePrice        string
			saleValue, gainLoss, currency       string
			method, saleDate                    string
		)
		if err := rows.Scan(&e.ID, &e.SellTransactionID, &e.LotID, &e.Symbol,
			&amount, &costBasis, &salePrice, &saleValue, &gainLoss,
			&currency, &method, &saleDate); err != nil {
			return nil, err
		}
		if e.Amount, err = parseQuantity(amount); err != nil {
			return nil, err
		}
		if e.CostBasis, err = parseMoney(costBasis, currency); err != nil {
			return nil, err
		}
		if e.SalePrice, err = parseMoney(salePrice, currency); err != nil {
			return nil, err
		}
		if e.SaleValue, err = parseMoney(saleValue, currency); err != nil {
			return nil, err
		}
		if e.GainLoss, err = parseMoney(gainLoss, currency); err != nil {
			return nil, err
		}
		if e.Method, err = coinfolio.ParseAccountingMethod(method); err != nil {
			return nil, err
		}
		if e.SaleDate, err = time.Parse(timeLayout, saleDate); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) Transactions(f coinfolio.TransactionFilter) ([]coinfolio.Transaction, error) {
	query := `
		SELECT id, timestamp, symbol, transaction_type, amount,
		       price_per_unit, fee, currency, accounting_method, exchange,
		       external_ref, notes
		FROM transactions WHERE 1=1`
	var args []any
	if f.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, f.Symbol)
	}
	if f.Type != "" {
		query += " AND transaction_type = ?"
		args = append(args, string(f.Type))
	}
	if !f.From.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, f.From.UTC().Format(timeLayout))
	}
	if !f.To.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, f.To.UTC().Format(timeLayout))
	}
	query += " ORDER BY timestamp ASC, id ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []coinfolio.Transaction
	for rows.Next() {
		var (
			t                              coinfolio.Transaction
			ts, txType, amount, price      string
			fee, currency                  string
			method, exchange, ref, notes   sql.NullString
		)
		if err := rows.Scan(&t.ID, &ts, &t.Symbol, &txType, &amount,
			&price, &fee, &currency, &method, &exchange, &ref, &notes); err != nil {
			return nil, err
		}
		if t.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, err
		}
		if t.Type, err = coinfolio.ParseTransactionType(txType); err != nil {
			return nil, err
		}
		if t.Amount, err = parseQuantity(amount); err != nil {
			return nil, err
		}
		if t.Price, err = parseMoney(price, currency); err != nil {
			return nil, err
		}
		if t.Fee, err = parseMoney(fee, currency); err != nil {
			return nil, err
		}
		if method.Valid {
			if t.Method, err = coinfolio.ParseAccountingMethod(method.String); err != nil {
				return nil, err
			}
		}
		t.Exchange = exchange.String
		t.ExternalRef = ref.String
		t.Notes = notes.String
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) HasExternalRef(ref string) (bool, error) {
	if ref == "" {
		return false, nil
	}
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM transactions WHERE external_ref = ?`, ref,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check external ref: %w", err)
	}
	return count > 0, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseQuantity(s string) (coinfolio.Quantity, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return coinfolio.Quantity{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return coinfolio.Q(d), nil
}

func parseMoney(s, currency string) (coinfolio.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return coinfolio.Money{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return coinfolio.M(d, currency), nil
}
