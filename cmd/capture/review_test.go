package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-capture/internal/capture"
	"github.com/dvloznov/finance-capture/internal/domain"
	"github.com/dvloznov/finance-capture/internal/ledger"
	"github.com/dvloznov/finance-capture/internal/settings"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldFlags_PatchOnlyChanged(t *testing.T) {
	var fields fieldFlags
	cmd := &cobra.Command{Use: "test"}
	fields.register(cmd)

	require.NoError(t, cmd.ParseFlags([]string{"--amount", "10", "--currency", "usd", "--rate", "10.9"}))
	p := fields.patch(cmd)

	require.NotNil(t, p.Amount)
	assert.Equal(t, "10", *p.Amount)
	require.NotNil(t, p.Currency)
	assert.Equal(t, "usd", *p.Currency)
	require.NotNil(t, p.ExchangeRate)
	assert.Equal(t, "10.9", *p.ExchangeRate)
	assert.Nil(t, p.Description)
	assert.Nil(t, p.Category)
	assert.Nil(t, p.Date)
	assert.Nil(t, p.Type)
}

func newTestSession(t *testing.T) (*capture.Session, *ledger.MemoryStore) {
	t.Helper()

	store := ledger.NewMemoryStore()
	s := capture.NewSession("cli-1", capture.Deps{
		Ledger:   store,
		Settings: settings.Defaults(),
		Clock:    func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) },
		Logger:   zerolog.Nop(),
	})
	return s, store
}

func TestReview_RequiresConfirmation(t *testing.T) {
	s, store := newTestSession(t)
	require.NoError(t, s.Update(capture.Patch{Amount: strPtr("12.50"), Description: strPtr("Lunch")}))

	var out bytes.Buffer
	require.NoError(t, review(context.Background(), &out, s, false))

	assert.Contains(t, out.String(), "Lunch")
	assert.Contains(t, out.String(), "Not saved")
	txs, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestReview_CommitsWhenConfirmed(t *testing.T) {
	s, store := newTestSession(t)
	require.NoError(t, s.Update(capture.Patch{Amount: strPtr("12.50"), Description: strPtr("Lunch")}))

	var out bytes.Buffer
	require.NoError(t, review(context.Background(), &out, s, true))

	assert.Contains(t, out.String(), "Saved ")
	txs, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "Lunch", txs[0].Description)
}

func TestCommit_ReportsValidationErrors(t *testing.T) {
	s, _ := newTestSession(t)

	var out bytes.Buffer
	err := commit(context.Background(), &out, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount")
}

func TestPrintTransactions(t *testing.T) {
	var out bytes.Buffer
	printTransactions(&out, []domain.Transaction{{
		ID:          "tx-1",
		Amount:      decimal.RequireFromString("109"),
		Currency:    domain.CurrencyTJS,
		Category:    domain.CategoryTransport,
		Description: "Taxi (Exch: 10 USD @ 10.9)",
		Date:        civil.Date{Year: 2024, Month: time.March, Day: 1},
		Type:        domain.TypeExpense,
	}})

	assert.Contains(t, out.String(), "DATE")
	assert.Contains(t, out.String(), "2024-03-01")
	assert.Contains(t, out.String(), "109.00 TJS")
	assert.Contains(t, out.String(), "Transport")
}

func strPtr(s string) *string {
	return &s
}
