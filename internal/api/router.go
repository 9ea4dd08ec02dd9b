// Package api assembles the HTTP surface of the capture service.
package api

import (
	"net/http"

	"github.com/dvloznov/finance-capture/internal/api/handlers"
	"github.com/dvloznov/finance-capture/internal/api/middleware"
	"github.com/dvloznov/finance-capture/internal/capture"
	"github.com/dvloznov/finance-capture/internal/ledger"
	"github.com/dvloznov/finance-capture/internal/settings"
	"github.com/rs/zerolog"
)

// Deps are the collaborators behind the routes. Metrics may be nil.
type Deps struct {
	Registry *capture.Registry
	Ledger   ledger.Store
	Settings *settings.Settings
	Metrics  http.Handler
	Logger   zerolog.Logger
}

// NewRouter registers every route and wraps the mux in the middleware chain.
func NewRouter(deps Deps) http.Handler {
	sessions := handlers.NewSessionsHandler(deps.Registry, deps.Logger)
	transactions := handlers.NewTransactionsHandler(deps.Ledger, deps.Logger)
	prefs := handlers.NewSettingsHandler(deps.Settings)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/sessions", sessions.CreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", sessions.GetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", sessions.DeleteSession)
	mux.HandleFunc("PATCH /api/sessions/{id}/fields", sessions.UpdateFields)
	mux.HandleFunc("POST /api/sessions/{id}/mode", sessions.SelectMode)
	mux.HandleFunc("POST /api/sessions/{id}/voice/start", sessions.StartListening)
	mux.HandleFunc("POST /api/sessions/{id}/voice/transcript", sessions.SubmitTranscript)
	mux.HandleFunc("POST /api/sessions/{id}/voice/end", sessions.EndListening)
	mux.HandleFunc("POST /api/sessions/{id}/scan", sessions.SubmitImage)
	mux.HandleFunc("POST /api/sessions/{id}/submit", sessions.Submit)

	mux.HandleFunc("GET /api/transactions", transactions.ListTransactions)
	mux.HandleFunc("GET /api/settings", prefs.GetSettings)

	mux.HandleFunc("GET /health", handlers.Health)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	return middleware.Chain(mux, deps.Logger)
}
