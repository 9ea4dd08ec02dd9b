package ledger

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-capture/internal/domain"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

// numericScale is the fractional precision of a BigQuery NUMERIC column.
const numericScale = 9

// BigQueryConfig locates the ledger table.
type BigQueryConfig struct {
	ProjectID string
	Dataset   string
	Table     string
}

// TransactionRow is the BigQuery shape of a committed transaction.
type TransactionRow struct {
	TransactionID   string     `bigquery:"transaction_id"`   // REQUIRED
	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Amount          *big.Rat   `bigquery:"amount"`           // REQUIRED NUMERIC
	Currency        string     `bigquery:"currency"`         // REQUIRED
	CategoryName    string     `bigquery:"category_name"`    // REQUIRED
	Description     string     `bigquery:"description"`      // REQUIRED
	Type            string     `bigquery:"type"`             // REQUIRED
	CreatedTS       time.Time  `bigquery:"created_ts"`       // REQUIRED
}

// BigQueryStore implements Store on a BigQuery table. It holds a shared
// client to avoid creating a new connection for each operation.
//
// Streaming inserts use the transaction ID as insert ID, so retried appends
// are de-duplicated by BigQuery on a best-effort basis; Append does not query
// for existing IDs.
type BigQueryStore struct {
	client *bigquery.Client
	cfg    BigQueryConfig
}

// NewBigQueryStore creates a BigQuery-backed ledger.
func NewBigQueryStore(ctx context.Context, cfg BigQueryConfig) (*BigQueryStore, error) {
	if cfg.ProjectID == "" || cfg.Dataset == "" || cfg.Table == "" {
		return nil, fmt.Errorf("NewBigQueryStore: project, dataset and table are required")
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryStore: creating client: %w", err)
	}

	return &BigQueryStore{client: client, cfg: cfg}, nil
}

// Append implements the Store interface.
func (s *BigQueryStore) Append(ctx context.Context, tx domain.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("BigQueryStore.Append: transaction ID is required")
	}

	row := toRow(tx)
	saver := &bigquery.StructSaver{Struct: row, InsertID: row.TransactionID}

	inserter := s.client.DatasetInProject(s.cfg.ProjectID, s.cfg.Dataset).Table(s.cfg.Table).Inserter()
	if err := inserter.Put(ctx, saver); err != nil {
		return fmt.Errorf("BigQueryStore.Append: inserting row: %w", err)
	}

	return nil
}

// ListAll implements the Store interface.
func (s *BigQueryStore) ListAll(ctx context.Context) ([]domain.Transaction, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			transaction_date,
			amount,
			currency,
			category_name,
			description,
			type,
			created_ts
		FROM `+"`%s.%s.%s`"+`
		ORDER BY created_ts DESC, transaction_id DESC
	`, s.cfg.ProjectID, s.cfg.Dataset, s.cfg.Table))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("BigQueryStore.ListAll: query read: %w", err)
	}

	var result []domain.Transaction
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("BigQueryStore.ListAll: iter next: %w", err)
		}

		tx, err := fromRow(&r)
		if err != nil {
			return nil, fmt.Errorf("BigQueryStore.ListAll: %w", err)
		}
		result = append(result, tx)
	}

	return result, nil
}

// Migrate creates the ledger table if it doesn't exist.
func (s *BigQueryStore) Migrate(ctx context.Context) error {
	job, err := s.client.Query(tableDDL(s.cfg)).Run(ctx)
	if err != nil {
		return fmt.Errorf("BigQueryStore.Migrate: running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("BigQueryStore.Migrate: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("BigQueryStore.Migrate: job error: %w", err)
	}

	return nil
}

// tableDDL matches the columns of TransactionRow.
func tableDDL(cfg BigQueryConfig) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS `+"`%s.%s.%s`"+` (
			transaction_id   STRING NOT NULL,
			transaction_date DATE NOT NULL,
			amount           NUMERIC NOT NULL,
			currency         STRING NOT NULL,
			category_name    STRING NOT NULL,
			description      STRING NOT NULL,
			type             STRING NOT NULL,
			created_ts       TIMESTAMP NOT NULL
		)
		PARTITION BY transaction_date
	`, cfg.ProjectID, cfg.Dataset, cfg.Table)
}

// Close closes the BigQuery client connection.
func (s *BigQueryStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func toRow(tx domain.Transaction) *TransactionRow {
	return &TransactionRow{
		TransactionID:   tx.ID,
		TransactionDate: tx.Date,
		Amount:          numeric(tx.Amount),
		Currency:        string(tx.Currency),
		CategoryName:    string(tx.Category),
		Description:     tx.Description,
		Type:            string(tx.Type),
		CreatedTS:       tx.CreatedAt,
	}
}

// numeric converts an amount to the big.Rat form of a NUMERIC column.
func numeric(d decimal.Decimal) *big.Rat {
	r, ok := new(big.Rat).SetString(d.String())
	if !ok {
		return new(big.Rat)
	}
	return r
}

func fromRow(r *TransactionRow) (domain.Transaction, error) {
	if r.Amount == nil {
		return domain.Transaction{}, fmt.Errorf("row %s: missing amount", r.TransactionID)
	}
	amount, err := decimal.NewFromString(r.Amount.FloatString(numericScale))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("row %s: parse amount: %w", r.TransactionID, err)
	}

	return domain.Transaction{
		ID:          r.TransactionID,
		Amount:      amount,
		Currency:    domain.Currency(r.Currency),
		Category:    domain.Category(r.CategoryName),
		Description: r.Description,
		Date:        r.TransactionDate,
		Type:        domain.Type(r.Type),
		CreatedAt:   r.CreatedTS.UTC(),
	}, nil
}

// Ensure BigQueryStore implements Store interface.
var (
	_ Store    = (*BigQueryStore)(nil)
	_ Migrator = (*BigQueryStore)(nil)
)
