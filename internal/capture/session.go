package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-capture/internal/builder"
	"github.com/dvloznov/finance-capture/internal/currency"
	"github.com/dvloznov/finance-capture/internal/domain"
	"github.com/dvloznov/finance-capture/internal/extraction"
	"github.com/dvloznov/finance-capture/internal/ledger"
	"github.com/dvloznov/finance-capture/internal/receipts"
	"github.com/dvloznov/finance-capture/internal/settings"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SpeechProbe reports whether the platform can capture speech.
type SpeechProbe func() bool

// Deps are the collaborators of a Session. Ledger and Settings are required;
// Extractor is required for the voice and scan channels.
type Deps struct {
	Extractor extraction.Extractor
	Ledger    ledger.Store
	Settings  settings.Provider
	Speech    SpeechProbe
	Archive   receipts.Archive
	Observer  Observer
	Clock     func() time.Time
	NewID     func() string
	Logger    zerolog.Logger
}

// Patch is a partial edit of the session fields. Nil members are unchanged.
type Patch struct {
	Amount       *string `json:"amount,omitempty"`
	Description  *string `json:"description,omitempty"`
	Category     *string `json:"category,omitempty"`
	Date         *string `json:"date,omitempty"`
	Type         *string `json:"type,omitempty"`
	Currency     *string `json:"currency,omitempty"`
	ExchangeRate *string `json:"exchange_rate,omitempty"`
}

// Snapshot is a copy of the observable session state.
type Snapshot struct {
	ID          string                     `json:"id"`
	State       State                      `json:"state"`
	Mode        Mode                       `json:"mode"`
	Fields      builder.Fields             `json:"fields"`
	Pending     bool                       `json:"pending"`
	LastError   string                     `json:"last_error,omitempty"`
	FieldErrors []*builder.ValidationError `json:"field_errors,omitempty"`
	ReceiptURI  string                     `json:"receipt_uri,omitempty"`
	Transaction *domain.Transaction        `json:"transaction,omitempty"`

	// ConvertedAmount previews the home currency amount while a foreign
	// amount and a usable rate are entered.
	ConvertedAmount string `json:"converted_amount,omitempty"`
}

// Session is one attempt to record a single transaction. All methods are
// safe for concurrent use; extraction completions are serialized with
// user events on the same mutex.
type Session struct {
	id   string
	deps Deps
	log  zerolog.Logger

	mu         sync.Mutex
	state      State
	fields     builder.Fields
	lastErr    error
	token      uint64
	cancelReq  context.CancelFunc
	receiptURI string
	committed  *domain.Transaction
}

// NewSession creates a session in Manual with today's date, the home
// currency and the default expense category.
func NewSession(id string, deps Deps) *Session {
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	if deps.Archive == nil {
		deps.Archive = receipts.NopArchive{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	return &Session{
		id:    id,
		deps:  deps,
		log:   deps.Logger.With().Str("session_id", id).Logger(),
		state: StateManual,
		fields: builder.Fields{
			Category: string(domain.DefaultCategory(domain.TypeExpense)),
			Type:     string(domain.TypeExpense),
			Date:     civil.DateOf(deps.Clock()).String(),
			Currency: string(deps.Settings.HomeCurrency()),
		},
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:         s.id,
		State:      s.state,
		Mode:       s.state.Mode(),
		Fields:     s.fields,
		Pending:    s.state.Pending(),
		ReceiptURI: s.receiptURI,
	}
	if home := s.deps.Settings.HomeCurrency(); domain.NormalizeCurrency(s.fields.Currency) != home {
		amount, err := decimal.NewFromString(strings.TrimSpace(s.fields.Amount))
		if rate, ok := currency.ParseRate(s.fields.ExchangeRate); ok && err == nil && amount.IsPositive() {
			snap.ConvertedAmount = currency.Convert(amount, rate).String()
		}
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
		var verrs builder.ValidationErrors
		if errors.As(s.lastErr, &verrs) {
			snap.FieldErrors = append(snap.FieldErrors, verrs...)
		}
	}
	if s.committed != nil {
		tx := *s.committed
		snap.Transaction = &tx
	}
	return snap
}

// Err returns the last error surfaced to the user, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Update applies a partial edit. Edits are refused while an extraction is
// pending or after the session closed. A type change resets the category to
// the type's default unless the same patch sets a category. Choosing the home
// currency clears the exchange rate.
func (s *Session) Update(p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		s.reject(err)
		return err
	}

	f := s.fields
	if p.Type != nil {
		t, err := domain.ParseType(strings.ToLower(strings.TrimSpace(*p.Type)))
		if err != nil {
			return &builder.ValidationError{Field: builder.FieldType, Reason: "must be expense or income"}
		}
		f.Type = string(t)
		f.Category = string(domain.DefaultCategory(t))
	}
	if p.Amount != nil {
		f.Amount = *p.Amount
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	if p.Category != nil {
		f.Category = *p.Category
	}
	if p.Date != nil {
		f.Date = *p.Date
	}
	if p.Currency != nil {
		f.Currency = string(domain.NormalizeCurrency(*p.Currency))
		if f.Currency == "" || f.Currency == string(s.deps.Settings.HomeCurrency()) {
			f.Currency = string(s.deps.Settings.HomeCurrency())
			f.ExchangeRate = ""
		}
	}
	if p.ExchangeRate != nil {
		f.ExchangeRate = *p.ExchangeRate
	}

	s.fields = f
	s.lastErr = nil
	return nil
}

// SetAmount edits the amount text.
func (s *Session) SetAmount(v string) error { return s.Update(Patch{Amount: &v}) }

// SetDescription edits the description.
func (s *Session) SetDescription(v string) error { return s.Update(Patch{Description: &v}) }

// SetCategory edits the category text.
func (s *Session) SetCategory(v string) error { return s.Update(Patch{Category: &v}) }

// SetDate edits the date text.
func (s *Session) SetDate(v string) error { return s.Update(Patch{Date: &v}) }

// SetType switches between expense and income and resets the category.
func (s *Session) SetType(v string) error { return s.Update(Patch{Type: &v}) }

// SetCurrency selects the currency the amount was paid in.
func (s *Session) SetCurrency(v string) error { return s.Update(Patch{Currency: &v}) }

// SetExchangeRate edits the exchange rate text.
func (s *Session) SetExchangeRate(v string) error { return s.Update(Patch{ExchangeRate: &v}) }

// SelectMode switches channel. It is accepted from Manual, VoiceIdle and ScanIdle.
func (s *Session) SelectMode(m Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.apply(SelectMode{Mode: m}); err != nil {
		return err
	}
	s.lastErr = nil
	return nil
}

// StartListening begins speech capture. Without a speech capability the
// session stays in VoiceIdle and ErrCapabilityUnavailable is returned.
func (s *Session) StartListening() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Transition(s.state, StartListening{})
	if err != nil {
		s.reject(err)
		return err
	}
	if s.deps.Speech == nil || !s.deps.Speech() {
		s.lastErr = ErrCapabilityUnavailable
		s.reject(ErrCapabilityUnavailable)
		return ErrCapabilityUnavailable
	}

	s.moveTo(next, StartListening{})
	s.lastErr = nil
	return nil
}

// EndListening ends speech capture without a transcript.
func (s *Session) EndListening() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(ListeningEnded{})
}

// SubmitTranscript ends speech capture. A blank transcript returns the
// session to VoiceIdle and the returned Pending is already done. Otherwise one
// extraction is launched.
//
// The extraction outlives ctx's cancellation; use Cancel to abort it.
func (s *Session) SubmitTranscript(ctx context.Context, transcript string) (*Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(transcript) == "" {
		if err := s.apply(ListeningEnded{}); err != nil {
			return nil, err
		}
		return completedPending(), nil
	}

	if err := s.apply(TranscriptReceived{}); err != nil {
		return nil, err
	}

	locale := s.deps.Settings.Locale()
	return s.launch(ctx, ModeVoice, func(ctx context.Context) completion {
		res, err := s.deps.Extractor.FromSpeech(ctx, transcript, locale)
		return completion{res: res, err: err}
	}), nil
}

// SubmitImage hands a receipt image to the scan channel and launches one
// extraction. The image is archived alongside; archive failures are logged
// and never affect the extraction.
//
// The extraction outlives ctx's cancellation; use Cancel to abort it.
func (s *Session) SubmitImage(ctx context.Context, image []byte) (*Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.apply(ImageSupplied{}); err != nil {
		return nil, err
	}

	img := make([]byte, len(image))
	copy(img, image)

	return s.launch(ctx, ModeScan, func(ctx context.Context) completion {
		var (
			wg  sync.WaitGroup
			uri string
		)
		if len(img) > 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				uri = s.archive(ctx, img)
			}()
		}

		res, err := s.deps.Extractor.FromImage(ctx, img)
		wg.Wait()
		return completion{res: res, err: err, receiptURI: uri}
	}), nil
}

// Submit builds the transaction from the reviewed fields and appends it to
// the ledger. It is accepted only in Manual. A validation or ledger error
// leaves the session editable.
func (s *Session) Submit(ctx context.Context) (builder.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Transition(s.state, Submitted{})
	if err != nil {
		s.reject(err)
		return builder.Outcome{}, err
	}

	b := builder.Builder{
		Home:  s.deps.Settings.HomeCurrency(),
		Clock: s.deps.Clock,
		NewID: s.deps.NewID,
	}
	out, err := b.Build(s.fields)
	if err != nil {
		s.lastErr = err
		var verrs builder.ValidationErrors
		if errors.As(err, &verrs) {
			s.deps.Observer.ValidationFailed(verrs)
			s.log.Info().Strs("fields", verrs.Fields()).Msg("Submit blocked by validation")
		}
		return builder.Outcome{}, err
	}

	if err := s.deps.Ledger.Append(ctx, out.Transaction); err != nil {
		s.lastErr = err
		s.log.Error().Err(err).Str("transaction_id", out.Transaction.ID).Msg("Failed to append transaction")
		return builder.Outcome{}, fmt.Errorf("Session.Submit: append to ledger: %w", err)
	}

	s.moveTo(next, Submitted{})
	tx := out.Transaction
	s.committed = &tx
	s.lastErr = nil
	s.deps.Observer.Committed(out)

	s.log.Info().
		Str("transaction_id", tx.ID).
		Str("amount", tx.Amount.String()).
		Str("currency", string(tx.Currency)).
		Str("category", string(tx.Category)).
		Bool("conversion_skipped", out.ConversionSkipped).
		Msg("Transaction committed")

	return out, nil
}

// Cancel closes the session. An in-flight extraction is aborted and its
// result, if any still arrives, is discarded. Cancel is idempotent and a
// no-op on a committed session.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return
	}

	s.moveTo(StateCancelled, Closed{})
	s.token++
	if s.cancelReq != nil {
		s.cancelReq()
		s.cancelReq = nil
	}
}

type completion struct {
	res        *extraction.Result
	err        error
	receiptURI string
}

// launch starts the extraction call for the current pending state.
// Callers hold s.mu.
func (s *Session) launch(ctx context.Context, mode Mode, call func(context.Context) completion) *Pending {
	s.token++
	token := s.token

	reqCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelReq = cancel

	p := newPending()
	go func() {
		defer close(p.done)
		defer cancel()

		c := call(reqCtx)
		p.applied = s.complete(token, mode, c)
		p.err = c.err
	}()

	s.log.Debug().Str("mode", string(mode)).Uint64("token", token).Msg("Extraction started")
	return p
}

// complete applies a completion if it belongs to the current request.
func (s *Session) complete(token uint64, mode Mode, c completion) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.token || s.state != pendingState(mode) {
		s.deps.Observer.ExtractionDiscarded(mode)
		s.log.Debug().Str("mode", string(mode)).Uint64("token", token).Str("state", string(s.state)).Msg("Discarded stale extraction result")
		return false
	}

	s.cancelReq = nil
	s.deps.Observer.ExtractionCompleted(mode, c.err)

	if c.err != nil {
		s.lastErr = c.err
		s.log.Warn().Err(c.err).Str("mode", string(mode)).Str("kind", string(extraction.KindOf(c.err))).Msg("Extraction failed")
		_ = s.apply(ExtractionFailed{})
		return true
	}

	s.fields = reconcile(s.fields, c.res)
	if c.receiptURI != "" {
		s.receiptURI = c.receiptURI
	}
	s.lastErr = nil
	_ = s.apply(ExtractionSucceeded{})
	return true
}

func (s *Session) archive(ctx context.Context, image []byte) string {
	uri, err := s.deps.Archive.Store(ctx, s.id, image, extraction.DetectMIMEType(image))
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to archive receipt image")
		return ""
	}
	return uri
}

// apply runs e through Transition. Callers hold s.mu.
func (s *Session) apply(e Event) error {
	next, err := Transition(s.state, e)
	if err != nil {
		s.reject(err)
		return err
	}
	s.moveTo(next, e)
	return nil
}

func (s *Session) moveTo(next State, e Event) {
	s.log.Debug().Str("from", string(s.state)).Str("to", string(next)).Str("event", fmt.Sprintf("%T", e)).Msg("State changed")
	s.state = next
}

func (s *Session) reject(err error) {
	s.deps.Observer.Rejected(err)
	s.log.Debug().Err(err).Str("state", string(s.state)).Msg("Request rejected")
}

func (s *Session) editable() error {
	switch {
	case s.state.Terminal():
		return ErrSessionClosed
	case s.state.Pending():
		return ErrExtractionPending
	default:
		return nil
	}
}

func pendingState(m Mode) State {
	if m == ModeScan {
		return StateScanPending
	}
	return StateVoicePending
}
