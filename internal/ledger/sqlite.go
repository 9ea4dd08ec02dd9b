package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-capture/internal/domain"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// schemaVersion is the latest schema version the store expects.
const schemaVersion = 1

type migration struct {
	Version     int
	Description string
	Up          func(*sql.Tx) error
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					amount TEXT NOT NULL,
					currency TEXT NOT NULL,
					category TEXT NOT NULL,
					description TEXT NOT NULL,
					date TEXT NOT NULL,
					type TEXT NOT NULL,
					created_at INTEGER NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(created_at)`,
			}
			for _, q := range queries {
				if _, err := tx.Exec(q); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
// Call Migrate before use.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("NewSQLiteStore: database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("NewSQLiteStore: create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteStore: open database: %w", err)
	}

	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewSQLiteStore: ping database: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("SQLiteStore.Migrate: get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("SQLiteStore.Migrate: begin transaction: %w", err)
		}
		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("SQLiteStore.Migrate: migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("SQLiteStore.Migrate: update schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("SQLiteStore.Migrate: commit migration %d: %w", m.Version, err)
		}
	}

	var final int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&final); err != nil {
		return fmt.Errorf("SQLiteStore.Migrate: verify schema version: %w", err)
	}
	if final != schemaVersion {
		return fmt.Errorf("SQLiteStore.Migrate: schema version mismatch: expected %d, got %d", schemaVersion, final)
	}

	return nil
}

// Append implements the Store interface.
func (s *SQLiteStore) Append(ctx context.Context, tx domain.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("SQLiteStore.Append: transaction ID is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, amount, currency, category, description, date, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.Amount.String(),
		string(tx.Currency),
		string(tx.Category),
		tx.Description,
		tx.Date.String(),
		string(tx.Type),
		tx.CreatedAt.UnixNano(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("SQLiteStore.Append: %s: %w", tx.ID, ErrDuplicate)
		}
		return fmt.Errorf("SQLiteStore.Append: insert: %w", err)
	}

	return nil
}

// ListAll implements the Store interface.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount, currency, category, description, date, type, created_at
		FROM transactions
		ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("SQLiteStore.ListAll: query: %w", err)
	}
	defer rows.Close()

	var result []domain.Transaction
	for rows.Next() {
		var (
			tx                                    domain.Transaction
			amount, currency, category, date, typ string
			created                               int64
		)
		if err := rows.Scan(&tx.ID, &amount, &currency, &category, &tx.Description, &date, &typ, &created); err != nil {
			return nil, fmt.Errorf("SQLiteStore.ListAll: scan: %w", err)
		}

		tx.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("SQLiteStore.ListAll: %s: parse amount: %w", tx.ID, err)
		}
		tx.Date, err = civil.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("SQLiteStore.ListAll: %s: parse date: %w", tx.ID, err)
		}
		tx.Currency = domain.Currency(currency)
		tx.Category = domain.Category(category)
		tx.Type = domain.Type(typ)
		tx.CreatedAt = time.Unix(0, created).UTC()

		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SQLiteStore.ListAll: rows: %w", err)
	}

	return result, nil
}

// Close implements the Store interface.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements Store interface.
var (
	_ Store    = (*SQLiteStore)(nil)
	_ Migrator = (*SQLiteStore)(nil)
)
