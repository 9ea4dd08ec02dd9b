package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/finance-capture/internal/domain"
)

// MemoryStore is an in-memory implementation of Store.
// It is safe for concurrent use. Data is lost on restart.
type MemoryStore struct {
	mu  sync.RWMutex
	txs []domain.Transaction
	ids map[string]struct{}
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ids: make(map[string]struct{}),
	}
}

// Append implements the Store interface.
func (s *MemoryStore) Append(ctx context.Context, tx domain.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("MemoryStore.Append: transaction ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[tx.ID]; exists {
		return fmt.Errorf("MemoryStore.Append: %s: %w", tx.ID, ErrDuplicate)
	}
	s.ids[tx.ID] = struct{}{}
	s.txs = append(s.txs, tx)

	return nil
}

// ListAll implements the Store interface.
// The most recently appended transaction comes first.
func (s *MemoryStore) ListAll(ctx context.Context) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, len(s.txs))
	for i := len(s.txs) - 1; i >= 0; i-- {
		result = append(result, s.txs[i])
	}

	return result, nil
}

// Close implements the Store interface.
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store interface.
var _ Store = (*MemoryStore)(nil)
