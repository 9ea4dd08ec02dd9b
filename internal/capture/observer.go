package capture

import "github.com/dvloznov/finance-capture/internal/builder"

// Observer receives session outcomes, e.g. for metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	// ExtractionCompleted is called when a result is applied; err is nil on success.
	ExtractionCompleted(mode Mode, err error)
	// ExtractionDiscarded is called when a result arrives for a stale request.
	ExtractionDiscarded(mode Mode)
	// Committed is called after a transaction reached the ledger.
	Committed(out builder.Outcome)
	// ValidationFailed is called when submit was blocked by field problems.
	ValidationFailed(errs builder.ValidationErrors)
	// Rejected is called when a request was refused in the current state.
	Rejected(err error)
}

// NopObserver ignores every outcome.
type NopObserver struct{}

func (NopObserver) ExtractionCompleted(Mode, error) {}
func (NopObserver) ExtractionDiscarded(Mode) {}
func (NopObserver) Committed(builder.Outcome) {}
func (NopObserver) ValidationFailed(builder.ValidationErrors) {}
func (NopObserver) Rejected(error) {}

var _ Observer = NopObserver{}
