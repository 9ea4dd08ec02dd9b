// Package metrics exports capture outcomes as Prometheus counters.
package metrics

import (
	"errors"
	"net/http"

	"github.com/dvloznov/finance-capture/internal/builder"
	"github.com/dvloznov/finance-capture/internal/capture"
	"github.com/dvloznov/finance-capture/internal/extraction"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "finance_capture"

// Recorder implements capture.Observer on Prometheus counters.
type Recorder struct {
	registry *prometheus.Registry

	extractions *prometheus.CounterVec
	discarded   *prometheus.CounterVec
	commits     *prometheus.CounterVec
	conversions *prometheus.CounterVec
	validation  *prometheus.CounterVec
	rejected    *prometheus.CounterVec
}

// NewRecorder registers the capture collectors on a fresh registry, along
// with the Go runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extraction completions by channel and outcome.",
		}, []string{"mode", "outcome"}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_discarded_total",
			Help:      "Extraction results that arrived for a cancelled or superseded request.",
		}, []string{"mode"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Transactions appended to the ledger by type and category.",
		}, []string{"type", "category"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Foreign currency conversions by result.",
		}, []string{"result"}),
		validation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Submit attempts blocked by a field problem.",
		}, []string{"field"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_requests_total",
			Help:      "Requests refused in the current session state.",
		}, []string{"reason"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.extractions,
		r.discarded,
		r.commits,
		r.conversions,
		r.validation,
		r.rejected,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ExtractionCompleted implements capture.Observer.
func (r *Recorder) ExtractionCompleted(mode capture.Mode, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(extraction.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	r.extractions.WithLabelValues(string(mode), outcome).Inc()
}

// ExtractionDiscarded implements capture.Observer.
func (r *Recorder) ExtractionDiscarded(mode capture.Mode) {
	r.discarded.WithLabelValues(string(mode)).Inc()
}

// Committed implements capture.Observer.
func (r *Recorder) Committed(out builder.Outcome) {
	r.commits.WithLabelValues(string(out.Transaction.Type), string(out.Transaction.Category)).Inc()
	switch {
	case out.Converted:
		r.conversions.WithLabelValues("applied").Inc()
	case out.ConversionSkipped:
		r.conversions.WithLabelValues("skipped").Inc()
	}
}

// ValidationFailed implements capture.Observer.
func (r *Recorder) ValidationFailed(errs builder.ValidationErrors) {
	for _, field := range errs.Fields() {
		r.validation.WithLabelValues(field).Inc()
	}
}

// Rejected implements capture.Observer.
func (r *Recorder) Rejected(err error) {
	r.rejected.WithLabelValues(rejectReason(err)).Inc()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, capture.ErrExtractionPending):
		return "extraction_pending"
	case errors.Is(err, capture.ErrCapabilityUnavailable):
		return "capability_unavailable"
	case errors.Is(err, capture.ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, capture.ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "other"
	}
}

var _ capture.Observer = (*Recorder)(nil)
