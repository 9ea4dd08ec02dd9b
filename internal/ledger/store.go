// Package ledger persists committed transactions.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-capture/internal/domain"
)

// ErrDuplicate is returned by Append when a transaction ID is already stored.
var ErrDuplicate = errors.New("ledger: duplicate transaction id")

// Store is the durable home of committed transactions.
// This interface enables mocking and testing of persistence.
type Store interface {
	// Append stores one committed transaction.
	Append(ctx context.Context, tx domain.Transaction) error

	// ListAll returns every stored transaction, newest first.
	ListAll(ctx context.Context) ([]domain.Transaction, error)

	// Close releases resources held by the store.
	Close() error
}

// Migrator is implemented by stores that own a schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverBigQuery = "bigquery"
)

// Config selects and configures a Store.
type Config struct {
	Driver     string
	SQLitePath string
	BigQuery   BigQueryConfig
}

// Open creates the Store named by cfg.Driver. The SQLite store is migrated
// before it is returned; the BigQuery table is created by an explicit Migrate.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverSQLite:
		s, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("Open: %w", err)
		}
		return s, nil
	case DriverBigQuery:
		s, err := NewBigQueryStore(ctx, cfg.BigQuery)
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("Open: unsupported ledger driver %q", cfg.Driver)
	}
}
