package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-capture/internal/builder"
	"github.com/dvloznov/finance-capture/internal/domain"
	"github.com/dvloznov/finance-capture/internal/extraction"
	"github.com/dvloznov/finance-capture/internal/ledger"
	"github.com/dvloznov/finance-capture/internal/settings"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockExtractor is a mock implementation of extraction.Extractor for testing.
type MockExtractor struct {
	FromSpeechFunc func(ctx context.Context, transcript, locale string) (*extraction.Result, error)
	FromImageFunc  func(ctx context.Context, image []byte) (*extraction.Result, error)

	mu    sync.Mutex
	calls int
}

func (m *MockExtractor) FromSpeech(ctx context.Context, transcript, locale string) (*extraction.Result, error) {
	m.count()
	if m.FromSpeechFunc != nil {
		return m.FromSpeechFunc(ctx, transcript, locale)
	}
	return nil, errors.New("FromSpeech not mocked")
}

func (m *MockExtractor) FromImage(ctx context.Context, image []byte) (*extraction.Result, error) {
	m.count()
	if m.FromImageFunc != nil {
		return m.FromImageFunc(ctx, image)
	}
	return nil, errors.New("FromImage not mocked")
}

func (m *MockExtractor) count() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
}

func (m *MockExtractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockStore is a ledger.Store whose Append can fail.
type MockStore struct {
	*ledger.MemoryStore
	AppendErr error
}

func (m *MockStore) Append(ctx context.Context, tx domain.Transaction) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	return m.MemoryStore.Append(ctx, tx)
}

// MockArchive records stored images.
type MockArchive struct {
	mu     sync.Mutex
	stored int
	err    error
}

func (m *MockArchive) Store(ctx context.Context, sessionID string, image []byte, mimeType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.stored++
	return fmt.Sprintf("gs://receipts/%s-%d", sessionID, m.stored), nil
}

// recordingObserver counts observer calls.
type recordingObserver struct {
	mu         sync.Mutex
	completed  []error
	discarded  int
	committed  int
	validation [][]string
	rejected   []error
}

func (o *recordingObserver) ExtractionCompleted(mode Mode, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed = append(o.completed, err)
}

func (o *recordingObserver) ExtractionDiscarded(mode Mode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.discarded++
}

func (o *recordingObserver) Committed(out builder.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.committed++
}

func (o *recordingObserver) ValidationFailed(errs builder.ValidationErrors) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.validation = append(o.validation, errs.Fields())
}

func (o *recordingObserver) Rejected(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = append(o.rejected, err)
}

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	extractor *MockExtractor
	store     *MockStore
	archive   *MockArchive
	observer  *recordingObserver
	speech    bool
}

func newFixture() *fixture {
	return &fixture{
		extractor: &MockExtractor{},
		store:     &MockStore{MemoryStore: ledger.NewMemoryStore()},
		archive:   &MockArchive{},
		observer:  &recordingObserver{},
		speech:    true,
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Extractor: f.extractor,
		Ledger:    f.store,
		Settings:  settings.Defaults(),
		Speech:    func() bool { return f.speech },
		Archive:   f.archive,
		Observer:  f.observer,
		Clock:     func() time.Time { return testNow },
		Logger:    zerolog.Nop(),
	}
}

func (f *fixture) session() *Session {
	return NewSession("s-1", f.deps())
}

func wait(t *testing.T, p *Pending) {
	t.Helper()
	require.NotNil(t, p)
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("extraction did not complete")
	}
}

func mustDate(s string) *civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func TestNewSession_InitialFields(t *testing.T) {
	s := newFixture().session()
	snap := s.Snapshot()

	assert.Equal(t, StateManual, snap.State)
	assert.Equal(t, ModeManual, snap.Mode)
	assert.Equal(t, builder.Fields{
		Category: "Food",
		Type:     "expense",
		Date:     "2024-03-01",
		Currency: "TJS",
	}, snap.Fields)
	assert.False(t, snap.Pending)
	assert.Empty(t, snap.LastError)
}

func TestSession_ManualCommit(t *testing.T) {
	f := newFixture()
	s := f.session()

	require.NoError(t, s.SetAmount("50"))
	require.NoError(t, s.SetDescription("Lunch"))

	out, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Transaction.Amount.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "Lunch", out.Transaction.Description)

	snap := s.Snapshot()
	assert.Equal(t, StateCommitted, snap.State)
	require.NotNil(t, snap.Transaction)
	assert.Equal(t, out.Transaction.ID, snap.Transaction.ID)

	txs, err := f.store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, out.Transaction.ID, txs[0].ID)
	assert.Equal(t, 1, f.observer.committed)

	_, err = s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.SetAmount("1"), ErrSessionClosed)
}

func TestSession_ValidationKeepsSessionEditable(t *testing.T) {
	f := newFixture()
	s := f.session()

	_, err := s.Submit(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, builder.ErrValidation)

	snap := s.Snapshot()
	assert.Equal(t, StateManual, snap.State)
	require.Len(t, snap.FieldErrors, 2)
	assert.Equal(t, builder.FieldAmount, snap.FieldErrors[0].Field)
	assert.Equal(t, builder.FieldDescription, snap.FieldErrors[1].Field)
	assert.Equal(t, [][]string{{builder.FieldAmount, builder.FieldDescription}}, f.observer.validation)

	require.NoError(t, s.Update(Patch{Amount: strPtr("12"), Description: strPtr("Bus")}))
	assert.Nil(t, s.Err(), "an edit clears the surfaced error")

	_, err = s.Submit(context.Background())
	require.NoError(t, err)
}

func TestSession_LedgerFailureKeepsSessionEditable(t *testing.T) {
	f := newFixture()
	f.store.AppendErr = errors.New("disk full")
	s := f.session()
	require.NoError(t, s.Update(Patch{Amount: strPtr("5"), Description: strPtr("Tea")}))

	_, err := s.Submit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, StateManual, s.Snapshot().State)

	f.store.AppendErr = nil
	_, err = s.Submit(context.Background())
	assert.NoError(t, err)
}

func TestSession_SetTypeResetsCategory(t *testing.T) {
	s := newFixture().session()

	require.NoError(t, s.SetCategory("Transport"))
	require.NoError(t, s.SetType("income"))
	snap := s.Snapshot()
	assert.Equal(t, "income", snap.Fields.Type)
	assert.Equal(t, "Income", snap.Fields.Category)

	require.NoError(t, s.SetType("expense"))
	assert.Equal(t, "Food", s.Snapshot().Fields.Category)

	err := s.SetType("transfer")
	assert.ErrorIs(t, err, builder.ErrValidation)
	assert.Equal(t, "expense", s.Snapshot().Fields.Type)

	require.NoError(t, s.Update(Patch{Type: strPtr("expense"), Category: strPtr("Health")}))
	assert.Equal(t, "Health", s.Snapshot().Fields.Category)
}

func TestSession_SetCurrencyHomeClearsRate(t *testing.T) {
	s := newFixture().session()

	require.NoError(t, s.SetCurrency("usd"))
	require.NoError(t, s.SetExchangeRate("11.2"))
	snap := s.Snapshot()
	assert.Equal(t, "USD", snap.Fields.Currency)
	assert.Equal(t, "11.2", snap.Fields.ExchangeRate)

	require.NoError(t, s.SetCurrency("TJS"))
	snap = s.Snapshot()
	assert.Equal(t, "TJS", snap.Fields.Currency)
	assert.Empty(t, snap.Fields.ExchangeRate)
}

func TestSession_SnapshotPreviewsConversion(t *testing.T) {
	s := newFixture().session()

	require.NoError(t, s.Update(Patch{Amount: strPtr("50"), Currency: strPtr("USD")}))
	assert.Empty(t, s.Snapshot().ConvertedAmount, "no rate yet")

	require.NoError(t, s.SetExchangeRate("abc"))
	assert.Empty(t, s.Snapshot().ConvertedAmount)

	require.NoError(t, s.SetExchangeRate("11.2"))
	assert.Equal(t, "560", s.Snapshot().ConvertedAmount)

	require.NoError(t, s.SetCurrency("TJS"))
	assert.Empty(t, s.Snapshot().ConvertedAmount)
}

func TestSession_ForeignCurrencyCommit(t *testing.T) {
	f := newFixture()
	s := f.session()
	require.NoError(t, s.Update(Patch{
		Amount:       strPtr("50"),
		Description:  strPtr("Lunch"),
		Currency:     strPtr("USD"),
		ExchangeRate: strPtr("11.2"),
	}))

	out, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Transaction.Amount.Equal(decimal.NewFromInt(560)))
	assert.Equal(t, domain.CurrencyTJS, out.Transaction.Currency)
	assert.Equal(t, "Lunch (Exch: 50 USD @ 11.2)", out.Transaction.Description)
}

func TestSession_MalformedRateCommitsUnconverted(t *testing.T) {
	s := newFixture().session()
	require.NoError(t, s.Update(Patch{
		Amount:       strPtr("50"),
		Description:  strPtr("Lunch"),
		Currency:     strPtr("USD"),
		ExchangeRate: strPtr("abc"),
	}))

	out, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, out.ConversionSkipped)
	assert.True(t, out.Transaction.Amount.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, domain.CurrencyUSD, out.Transaction.Currency)
}

func TestSession_VoiceFlow(t *testing.T) {
	f := newFixture()
	var gotLocale, gotTranscript string
	f.extractor.FromSpeechFunc = func(ctx context.Context, transcript, locale string) (*extraction.Result, error) {
		gotTranscript, gotLocale = transcript, locale
		return &extraction.Result{Amount: decimal.NewFromInt(25), Description: "Taxi home", Category: "transport"}, nil
	}
	s := f.session()

	require.NoError(t, s.SelectMode(ModeVoice))
	require.NoError(t, s.StartListening())
	assert.Equal(t, StateVoiceListening, s.Snapshot().State)

	p, err := s.SubmitTranscript(context.Background(), "taxi home twenty five")
	require.NoError(t, err)
	wait(t, p)
	assert.True(t, p.Applied())
	assert.NoError(t, p.Err())

	snap := s.Snapshot()
	assert.Equal(t, StateManual, snap.State, "extraction lands in review, never commits")
	assert.Equal(t, "25", snap.Fields.Amount)
	assert.Equal(t, "Taxi home", snap.Fields.Description)
	assert.Equal(t, "Transport", snap.Fields.Category)
	assert.Equal(t, "taxi home twenty five", gotTranscript)
	assert.Equal(t, "en-US", gotLocale)

	txs, _ := f.store.ListAll(context.Background())
	assert.Empty(t, txs)

	_, err = s.Submit(context.Background())
	require.NoError(t, err)
}

func TestSession_VoiceUnmatchedCategoryKeepsDefault(t *testing.T) {
	f := newFixture()
	f.extractor.FromSpeechFunc = func(ctx context.Context, transcript, locale string) (*extraction.Result, error) {
		return &extraction.Result{Amount: decimal.NewFromInt(8), Description: "Latte", Category: "Coffee Shop"}, nil
	}
	s := f.session()
	require.NoError(t, s.SelectMode(ModeVoice))
	require.NoError(t, s.StartListening())

	p, err := s.SubmitTranscript(context.Background(), "latte for eight")
	require.NoError(t, err)
	wait(t, p)

	snap := s.Snapshot()
	assert.Equal(t, StateManual, snap.State)
	assert.Equal(t, "Food", snap.Fields.Category)
	assert.Equal(t, "Latte", snap.Fields.Description)
	assert.Empty(t, snap.LastError)
}

func TestSession_VoiceIncomeSwitchesType(t *testing.T) {
	f := newFixture()
	f.extractor.FromSpeechFunc = func(ctx context.Context, transcript, locale string) (*extraction.Result, error) {
		return &extraction.Result{Amount: decimal.NewFromInt(1200), Description: "Salary", Category: "Income"}, nil
	}
	s := f.session()
	require.NoError(t, s.SelectMode(ModeVoice))
	require.NoError(t, s.StartListening())
	p, err := s.SubmitTranscript(context.Background(), "salary 1200")
	require.NoError(t, err)
	wait(t, p)

	snap := s.Snapshot()
	assert.Equal(t, "income", snap.Fields.Type)
	assert.Equal(t, "Income", snap.Fields.Category)

	out, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.TypeIncome, out.Transaction.Type)
}

func TestSession_BlankTranscriptReturnsToVoiceIdle(t *testing.T) {
	f := newFixture()
	s := f.session()
	require.NoError(t, s.SelectMode(ModeVoice))
	require.NoError(t, s.StartListening())

	p, err := s.SubmitTranscript(context.Background(), "   ")
	require.NoError(t, err)
	wait(t, p)
	assert.False(t, p.Applied())
	assert.Equal(t, StateVoiceIdle, s.Snapshot().State)
	assert.Equal(t, 0, f.extractor.Calls())

	require.NoError(t, s.StartListening())
	require.NoError(t, s.EndListening())
	assert.Equal(t, StateVoiceIdle, s.Snapshot().State)
}

func TestSession_SpeechUnavailable(t *testing.T) {
	f := newFixture()
	f.speech = false
	s := f.session()
	require.NoError(t, s.SelectMode(ModeVoice))

	err := s.StartListening()
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)

	snap := s.Snapshot()
	assert.Equal(t, StateVoiceIdle, snap.State)
	assert.NotEmpty(t, snap.LastError)

	require.NoError(t, s.SelectMode(ModeManual), "the session stays usable in another mode")
	assert.Equal(t, StateManual, s.Snapshot().State)
}

func TestSession_ScanFlowWithForeignCurrency(t *testing.T) {
	f := newFixture()
	f.extractor.FromImageFunc = func(ctx context.Context, image []byte) (*extraction.Result, error) {
		return &extraction.Result{
			Amount:      decimal.RequireFromString("42.10"),
			Description: "Korzinka",
			Category:    "food",
			Date:        mustDate("2024-02-28"),
			Currency:    "uzs",
		}, nil
	}
	s := f.session()
	require.NoError(t, s.SelectMode(ModeScan))
	require.NoError(t, s.SetExchangeRate("0.0008"))

	p, err := s.SubmitImage(context.Background(), []byte{0xff, 0xd8, 0xff, 0xe0})
	require.NoError(t, err)
	wait(t, p)

	snap := s.Snapshot()
	assert.Equal(t, StateManual, snap.State)
	assert.Equal(t, "42.1", snap.Fields.Amount)
	assert.Equal(t, "2024-02-28", snap.Fields.Date)
	assert.Equal(t, "UZS", snap.Fields.Currency)
	assert.Empty(t, snap.Fields.ExchangeRate, "a new foreign currency needs a fresh rate")
	assert.Equal(t, "gs://receipts/s-1-1", snap.ReceiptURI)

	_, err = s.Submit(context.Background())
	var verrs builder.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.True(t, verrs.Has(builder.FieldExchangeRate))

	require.NoError(t, s.SetExchangeRate("0.00085"))
	out, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CurrencyTJS, out.Transaction.Currency)
	assert.True(t, out.Converted)
}

func TestSession_ScanHomeCurrencyClearsRate(t *testing.T) {
	f := newFixture()
	f.extractor.FromImageFunc = func(ctx context.Context, image []byte) (*extraction.Result, error) {
		return &extraction.Result{Amount: decimal.NewFromInt(30), Description: "Dushanbe Market", Currency: "TJS"}, nil
	}
	s := f.session()
	require.NoError(t, s.SetCurrency("USD"))
	require.NoError(t, s.SetExchangeRate("11"))
	require.NoError(t, s.SelectMode(ModeScan))

	p, err := s.SubmitImage(context.Background(), []byte("img"))
	require.NoError(t, err)
	wait(t, p)

	snap := s.Snapshot()
	assert.Equal(t, "TJS", snap.Fields.Currency)
	assert.Empty(t, snap.Fields.ExchangeRate)
}

func TestSession_ScanFreeTextCurrencyCommits(t *testing.T) {
	for _, code := range []string{"€", "US$"} {
		t.Run(code, func(t *testing.T) {
			f := newFixture()
			f.extractor.FromImageFunc = func(ctx context.Context, image []byte) (*extraction.Result, error) {
				return &extraction.Result{Amount: decimal.NewFromInt(20), Description: "Cafe", Category: "Food", Currency: code}, nil
			}
			s := f.session()
			require.NoError(t, s.SelectMode(ModeScan))

			p, err := s.SubmitImage(context.Background(), []byte("img"))
			require.NoError(t, err)
			wait(t, p)
			require.NoError(t, s.SetExchangeRate("abc"))

			out, err := s.Submit(context.Background())
			require.NoError(t, err)
			assert.True(t, out.ConversionSkipped)
			assert.Equal(t, domain.NormalizeCurrency(code), out.Transaction.Currency)
			assert.True(t, out.Transaction.Amount.Equal(decimal.NewFromInt(20)))
		})
	}
}

func TestSession_ScanFailureLeavesFieldsUntouched(t *testing.T) {
	f := newFixture()
	f.extractor.FromImageFunc = func(ctx context.Context, image []byte) (*extraction.Result, error) {
		return nil, &extraction.Failure{Kind: extraction.FailureUnparseable, Err: errors.New("not a receipt")}
	}
	s := f.session()
	require.NoError(t, s.Update(Patch{Amount: strPtr("7"), Description: strPtr("Before scan")}))
	require.NoError(t, s.SelectMode(ModeScan))
	before := s.Snapshot().Fields

	p, err := s.SubmitImage(context.Background(), []byte("blurry"))
	require.NoError(t, err)
	wait(t, p)
	assert.True(t, p.Applied())
	assert.ErrorIs(t, p.Err(), extraction.ErrExtractionFailure)

	snap := s.Snapshot()
	assert.Equal(t, StateScanIdle, snap.State)
	assert.Equal(t, before, snap.Fields)
	assert.ErrorIs(t, s.Err(), extraction.ErrExtractionFailure)
	assert.NotEmpty(t, snap.LastError)
	require.Len(t, f.observer.completed, 1)
	assert.Error(t, f.observer.completed[0])

	// The failure is retryable from the idle state.
	f.extractor.FromImageFunc = func(ctx context.Context, image []byte) (*extraction.Result, error) {
		return &extraction.Result{Amount: decimal.NewFromInt(7), Description: "Second try"}, nil
	}
	p, err = s.SubmitImage(context.Background(), []byte("sharp"))
	require.NoError(t, err)
	wait(t, p)
	assert.Equal(t, StateManual, s.Snapshot().State)
}

func TestSession_ArchiveFailureDoesNotBlockExtraction(t *testing.T) {
	f := newFixture()
	f.archive.err = errors.New("bucket missing")
	f.extractor.FromImageFunc = func(ctx context.Context, image []byte) (*extraction.Result, error) {
		return &extraction.Result{Amount: decimal.NewFromInt(3), Description: "Bread"}, nil
	}
	s := f.session()
	require.NoError(t, s.SelectMode(ModeScan))

	p, err := s.SubmitImage(context.Background(), []byte("img"))
	require.NoError(t, err)
	wait(t, p)

	snap := s.Snapshot()
	assert.Equal(t, StateManual, snap.State)
	assert.Empty(t, snap.ReceiptURI)
}

func TestSession_AtMostOneExtractionInFlight(t *testing.T) {
	f := newFixture()
	release := make(chan struct{})
	f.extractor.FromImageFunc = func(ctx context.Context, image []byte) (*extraction.Result, error) {
		<-release
		return &extraction.Result{Amount: decimal.NewFromInt(10), Description: "Pharmacy", Category: "Health"}, nil
	}
	s := f.session()
	require.NoError(t, s.SelectMode(ModeScan))

	p, err := s.SubmitImage(context.Background(), []byte("first"))
	require.NoError(t, err)
	assert.True(t, s.Snapshot().Pending)

	_, err = s.SubmitImage(context.Background(), []byte("second"))
	assert.ErrorIs(t, err, ErrExtractionPending)
	assert.ErrorIs(t, s.SelectMode(ModeVoice), ErrExtractionPending)
	assert.ErrorIs(t, s.SetAmount("99"), ErrExtractionPending)
	_, err = s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrExtractionPending)

	close(release)
	wait(t, p)
	assert.Equal(t, 1, f.extractor.Calls())
	assert.Equal(t, "Health", s.Snapshot().Fields.Category)
}

func TestSession_CancelDiscardsLateResult(t *testing.T) {
	f := newFixture()
	release := make(chan struct{})
	f.extractor.FromSpeechFunc = func(ctx context.Context, transcript, locale string) (*extraction.Result, error) {
		<-release
		return &extraction.Result{Amount: decimal.NewFromInt(99), Description: "Late"}, nil
	}
	s := f.session()
	require.NoError(t, s.SelectMode(ModeVoice))
	require.NoError(t, s.StartListening())
	before := s.Snapshot().Fields

	p, err := s.SubmitTranscript(context.Background(), "late one")
	require.NoError(t, err)

	s.Cancel()
	close(release)
	wait(t, p)

	assert.False(t, p.Applied())
	snap := s.Snapshot()
	assert.Equal(t, StateCancelled, snap.State)
	assert.Equal(t, before, snap.Fields)
	assert.Equal(t, 1, f.observer.discarded)
	assert.Empty(t, f.observer.completed)

	s.Cancel()
	assert.Equal(t, StateCancelled, s.Snapshot().State)
}

func TestSession_CancelAbortsCall(t *testing.T) {
	f := newFixture()
	started := make(chan struct{})
	f.extractor.FromImageFunc = func(ctx context.Context, image []byte) (*extraction.Result, error) {
		close(started)
		<-ctx.Done()
		return nil, &extraction.Failure{Kind: extraction.FailureTransport, Err: ctx.Err()}
	}
	s := f.session()
	require.NoError(t, s.SelectMode(ModeScan))

	p, err := s.SubmitImage(context.Background(), []byte("img"))
	require.NoError(t, err)
	<-started

	s.Cancel()
	wait(t, p)
	assert.False(t, p.Applied())
	assert.ErrorIs(t, p.Err(), context.Canceled)
	assert.Equal(t, StateCancelled, s.Snapshot().State)
}

func TestSession_ExtractionOutlivesRequestContext(t *testing.T) {
	f := newFixture()
	release := make(chan struct{})
	f.extractor.FromImageFunc = func(ctx context.Context, image []byte) (*extraction.Result, error) {
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &extraction.Result{Amount: decimal.NewFromInt(4), Description: "Soap"}, nil
	}
	s := f.session()
	require.NoError(t, s.SelectMode(ModeScan))

	ctx, cancel := context.WithCancel(context.Background())
	p, err := s.SubmitImage(ctx, []byte("img"))
	require.NoError(t, err)
	cancel()
	close(release)
	wait(t, p)

	assert.True(t, p.Applied())
	assert.NoError(t, p.Err())
	assert.Equal(t, "Soap", s.Snapshot().Fields.Description)
}

func TestSession_CancelAfterCommitIsNoop(t *testing.T) {
	s := newFixture().session()
	require.NoError(t, s.Update(Patch{Amount: strPtr("1"), Description: strPtr("Gum")}))
	_, err := s.Submit(context.Background())
	require.NoError(t, err)

	s.Cancel()
	assert.Equal(t, StateCommitted, s.Snapshot().State)
}

func TestSession_SubmitOnlyFromManual(t *testing.T) {
	f := newFixture()
	s := f.session()
	require.NoError(t, s.Update(Patch{Amount: strPtr("1"), Description: strPtr("Gum")}))
	require.NoError(t, s.SelectMode(ModeVoice))

	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	txs, _ := f.store.ListAll(context.Background())
	assert.Empty(t, txs)
}

func TestPending_Wait(t *testing.T) {
	p := newPending()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)

	done := completedPending()
	assert.NoError(t, done.Wait(context.Background()))
}

func strPtr(s string) *string {
	return &s
}
