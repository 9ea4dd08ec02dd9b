package extraction

import (
	"context"
	"errors"
	"fmt"
)

// ErrExtractionFailure matches every failure returned by an Extractor.
var ErrExtractionFailure = errors.New("extraction failed")

// FailureKind classifies an extraction failure.
type FailureKind string

const (
	FailureTransport   FailureKind = "transport"
	FailureTimeout     FailureKind = "timeout"
	FailureEmpty       FailureKind = "empty"
	FailureUnparseable FailureKind = "unparseable"
)

// Failure is a transport or parse problem translated by the adapter.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("extraction %s: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("extraction %s", f.Kind)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Is makes every Failure match ErrExtractionFailure.
func (f *Failure) Is(target error) bool {
	return target == ErrExtractionFailure
}

// KindOf returns the kind of an extraction failure, or "" if err is not one.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// transportFailure classifies a provider error.
func transportFailure(err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: FailureTimeout, Err: err}
	}
	return &Failure{Kind: FailureTransport, Err: err}
}
