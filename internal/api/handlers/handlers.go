// Package handlers implements the HTTP endpoints over capture sessions.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dvloznov/finance-capture/internal/api/middleware"
	"github.com/dvloznov/finance-capture/internal/builder"
	"github.com/dvloznov/finance-capture/internal/capture"
	"github.com/dvloznov/finance-capture/internal/domain"
	"github.com/dvloznov/finance-capture/internal/ledger"
	"github.com/dvloznov/finance-capture/internal/logger"
	"github.com/dvloznov/finance-capture/internal/settings"
	"github.com/rs/zerolog"
)

// MaxImageBytes bounds the receipt image upload.
const MaxImageBytes = 10 << 20

// SessionsHandler handles capture session endpoints.
type SessionsHandler struct {
	registry *capture.Registry
	log      zerolog.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(registry *capture.Registry, log zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{
		registry: registry,
		log:      log,
	}
}

// CreateSession handles POST /api/sessions
func (h *SessionsHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := decodeOptional(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	mode := capture.ModeManual
	if req.Mode != "" {
		m, err := capture.ParseMode(req.Mode)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = m
	}

	s, err := h.registry.Create(mode)
	if err != nil {
		h.log.Error().Err(err).Str("mode", string(mode)).Msg("Failed to create session")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	reqLog := logger.FromContext(r.Context())
	reqLog.Debug().Str("session_id", s.ID()).Str("mode", string(mode)).Msg("Session created")
	middleware.WriteJSON(w, http.StatusCreated, s.Snapshot())
}

// GetSession handles GET /api/sessions/{id}
func (h *SessionsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s.Snapshot())
}

// UpdateFields handles PATCH /api/sessions/{id}/fields
func (h *SessionsHandler) UpdateFields(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var patch capture.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.Update(patch); err != nil {
		writeSessionError(w, err, s.Snapshot())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s.Snapshot())
}

// SelectMode handles POST /api/sessions/{id}/mode
func (h *SessionsHandler) SelectMode(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	mode, err := capture.ParseMode(req.Mode)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.SelectMode(mode); err != nil {
		writeSessionError(w, err, s.Snapshot())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s.Snapshot())
}

// StartListening handles POST /api/sessions/{id}/voice/start
func (h *SessionsHandler) StartListening(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.StartListening(); err != nil {
		writeSessionError(w, err, s.Snapshot())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s.Snapshot())
}

// EndListening handles POST /api/sessions/{id}/voice/end
func (h *SessionsHandler) EndListening(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.EndListening(); err != nil {
		writeSessionError(w, err, s.Snapshot())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s.Snapshot())
}

// SubmitTranscript handles POST /api/sessions/{id}/voice/transcript
//
// With ?wait=true the response is sent after the extraction completed.
func (h *SessionsHandler) SubmitTranscript(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := s.SubmitTranscript(r.Context(), req.Transcript)
	if err != nil {
		writeSessionError(w, err, s.Snapshot())
		return
	}
	h.respondPending(w, r, s, p)
}

// SubmitImage handles POST /api/sessions/{id}/scan
//
// The request body is the raw image. With ?wait=true the response is sent
// after the extraction completed.
func (h *SessionsHandler) SubmitImage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	image, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxImageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Image too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read image")
		return
	}

	p, err := s.SubmitImage(r.Context(), image)
	if err != nil {
		writeSessionError(w, err, s.Snapshot())
		return
	}
	h.respondPending(w, r, s, p)
}

// Submit handles POST /api/sessions/{id}/submit
//
// A committed session is removed from the registry.
func (h *SessionsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	out, err := s.Submit(r.Context())
	if err != nil {
		if isClientError(err) {
			writeSessionError(w, err, s.Snapshot())
			return
		}
		h.log.Error().Err(err).Str("session_id", s.ID()).Msg("Failed to commit transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save transaction")
		return
	}

	h.registry.Remove(s.ID())
	middleware.WriteJSON(w, http.StatusCreated, out)
}

// DeleteSession handles DELETE /api/sessions/{id}
func (h *SessionsHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.registry.Remove(r.PathValue("id")) {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionsHandler) session(w http.ResponseWriter, r *http.Request) (*capture.Session, bool) {
	s, err := h.registry.Get(r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return s, true
}

func (h *SessionsHandler) respondPending(w http.ResponseWriter, r *http.Request, s *capture.Session, p *capture.Pending) {
	if r.URL.Query().Get("wait") != "true" {
		middleware.WriteJSON(w, http.StatusAccepted, s.Snapshot())
		return
	}

	if err := p.Wait(r.Context()); err != nil && r.Context().Err() != nil {
		// Client went away; the extraction keeps running for a later GET.
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s.Snapshot())
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	store ledger.Store
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(store ledger.Store, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		store: store,
		log:   log,
	}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.store.ListAll(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// SettingsHandler serves the user preferences.
type SettingsHandler struct {
	settings *settings.Settings
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(s *settings.Settings) *SettingsHandler {
	return &SettingsHandler{settings: s}
}

// GetSettings handles GET /api/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.settings)
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorBody is the response for a refused session operation.
type errorBody struct {
	Error   string           `json:"error"`
	Fields  []string         `json:"fields,omitempty"`
	Session capture.Snapshot `json:"session"`
}

func writeSessionError(w http.ResponseWriter, err error, snap capture.Snapshot) {
	body := errorBody{Error: err.Error(), Session: snap}

	var (
		verrs builder.ValidationErrors
		verr  *builder.ValidationError
	)
	switch {
	case errors.As(err, &verrs):
		body.Fields = verrs.Fields()
	case errors.As(err, &verr):
		body.Fields = []string{verr.Field}
	}

	middleware.WriteJSON(w, statusFor(err), body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, builder.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, capture.ErrSessionClosed), errors.Is(err, capture.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, capture.ErrExtractionPending), errors.Is(err, capture.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, capture.ErrCapabilityUnavailable):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func isClientError(err error) bool {
	return statusFor(err) != http.StatusInternalServerError
}

// decodeOptional decodes a JSON body, accepting an empty one.
func decodeOptional(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
