// Package capture drives one capture session from mode selection through
// extraction and review to commit or cancel.
package capture

import (
	"fmt"
	"strings"
)

// State is the state of a capture session.
type State string

const (
	StateManual         State = "manual"
	StateVoiceIdle      State = "voice_idle"
	StateVoiceListening State = "voice_listening"
	StateVoicePending   State = "voice_pending_extraction"
	StateScanIdle       State = "scan_idle"
	StateScanPending    State = "scan_pending_extraction"
	StateCommitted      State = "committed"
	StateCancelled      State = "cancelled"
)

// Terminal reports whether no further event is accepted.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateCancelled
}

// Pending reports whether an extraction is in flight.
func (s State) Pending() bool {
	return s == StateVoicePending || s == StateScanPending
}

// Mode returns the capture channel the state belongs to.
func (s State) Mode() Mode {
	switch s {
	case StateVoiceIdle, StateVoiceListening, StateVoicePending:
		return ModeVoice
	case StateScanIdle, StateScanPending:
		return ModeScan
	default:
		return ModeManual
	}
}

// Mode is a capture channel.
type Mode string

const (
	ModeManual Mode = "manual"
	ModeVoice  Mode = "voice"
	ModeScan   Mode = "scan"
)

// ParseMode parses "manual", "voice" or "scan".
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeManual, ModeVoice, ModeScan:
		return m, nil
	default:
		return "", fmt.Errorf("capture: unknown mode %q", s)
	}
}

// idleState is where a mode rests before any capture.
func (m Mode) idleState() State {
	switch m {
	case ModeVoice:
		return StateVoiceIdle
	case ModeScan:
		return StateScanIdle
	default:
		return StateManual
	}
}

// Event is an input to Transition. The set of events is closed.
type Event interface {
	event()
}

type (
	// SelectMode switches channel from a resting state.
	SelectMode struct{ Mode Mode }
	// StartListening begins speech capture.
	StartListening struct{}
	// TranscriptReceived ends speech capture with a transcript.
	TranscriptReceived struct{}
	// ListeningEnded ends speech capture without a transcript.
	ListeningEnded struct{}
	// ImageSupplied hands a receipt image to the scan channel.
	ImageSupplied struct{}
	// ExtractionSucceeded completes the in-flight extraction with a result.
	ExtractionSucceeded struct{}
	// ExtractionFailed completes the in-flight extraction with a failure.
	ExtractionFailed struct{}
	// Submitted commits the reviewed fields.
	Submitted struct{}
	// Closed is an explicit user close.
	Closed struct{}
)

func (SelectMode) event()          {}
func (StartListening) event()      {}
func (TranscriptReceived) event()  {}
func (ListeningEnded) event()      {}
func (ImageSupplied) event()       {}
func (ExtractionSucceeded) event() {}
func (ExtractionFailed) event()    {}
func (Submitted) event()           {}
func (Closed) event()              {}

// Transition returns the state that follows s on e. It has no side effects.
// Only Manual reaches Committed, so every channel passes through review.
func Transition(s State, e Event) (State, error) {
	if s.Terminal() {
		return s, ErrSessionClosed
	}
	if _, ok := e.(Closed); ok {
		return StateCancelled, nil
	}

	if s.Pending() {
		switch e.(type) {
		case ExtractionSucceeded:
			return StateManual, nil
		case ExtractionFailed:
			return s.Mode().idleState(), nil
		default:
			return s, ErrExtractionPending
		}
	}

	switch ev := e.(type) {
	case SelectMode:
		if s == StateManual || s == StateVoiceIdle || s == StateScanIdle {
			if _, err := ParseMode(string(ev.Mode)); err != nil {
				return s, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
			}
			return ev.Mode.idleState(), nil
		}
	case StartListening:
		if s == StateVoiceIdle {
			return StateVoiceListening, nil
		}
	case TranscriptReceived:
		if s == StateVoiceListening {
			return StateVoicePending, nil
		}
	case ListeningEnded:
		if s == StateVoiceListening {
			return StateVoiceIdle, nil
		}
	case ImageSupplied:
		if s == StateScanIdle {
			return StateScanPending, nil
		}
	case Submitted:
		if s == StateManual {
			return StateCommitted, nil
		}
	}

	return s, fmt.Errorf("%w: %T in state %s", ErrInvalidTransition, e, s)
}
