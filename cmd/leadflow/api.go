package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/leadflow/engine"
	"github.com/BaSui01/leadflow/engine/history"
	"github.com/BaSui01/leadflow/engine/learner"
	"github.com/BaSui01/leadflow/internal/metrics"
	"github.com/BaSui01/leadflow/types"
)

// API exposes the decision engine over HTTP.
type API struct {
	engine  *engine.Engine
	store   history.Store
	learner *learner.Learner
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewAPI creates the HTTP handler set.
func NewAPI(eng *engine.Engine, store history.Store, l *learner.Learner, collector *metrics.Collector, logger *zap.Logger) *API {
	return &API{engine: eng, store: store, learner: l, metrics: collector, logger: logger.With(zap.String("component", "api"))}
}

// Routes registers all endpoints on a fresh mux.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/decide", a.handleDecide)
	mux.HandleFunc("POST /v1/decide/batch", a.handleDecideBatch)
	mux.HandleFunc("POST /v1/outcomes", a.handleOutcome)
	mux.HandleFunc("GET /v1/contacts/{id}/assignment", a.handleAssignment)
	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: string(types.ErrInternalError)}
	if code := types.GetErrorCode(err); code != "" {
		resp.Error = string(code)
	}
	resp.Message = err.Error()
	writeJSON(w, status, resp)
}

func (a *API) handleDecide(w http.ResponseWriter, r *http.Request) {
	var signal types.IntentSignal
	if err := json.NewDecoder(r.Body).Decode(&signal); err != nil {
		writeError(w, http.StatusBadRequest, types.NewError(types.ErrInvalidInput, "malformed request body"))
		return
	}

	decision, err := a.engine.Decide(r.Context(), signal)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (a *API) handleDecideBatch(w http.ResponseWriter, r *http.Request) {
	var signals []types.IntentSignal
	if err := json.NewDecoder(r.Body).Decode(&signals); err != nil {
		writeError(w, http.StatusBadRequest, types.NewError(types.ErrInvalidInput, "malformed request body"))
		return
	}

	decision, err := a.engine.DecideBest(r.Context(), signals)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (a *API) handleOutcome(w http.ResponseWriter, r *http.Request) {
	var event struct {
		RecordID string `json:"record_id"`
		Outcome  string `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, types.NewError(types.ErrInvalidInput, "malformed request body"))
		return
	}
	if strings.TrimSpace(event.RecordID) == "" {
		writeError(w, http.StatusBadRequest, types.NewError(types.ErrInvalidInput, "record_id is required"))
		return
	}
	outcome, err := types.ParseOutcome(event.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// Accepted means queued; the learner applies it out of band.
	a.learner.Offer(types.OutcomeEvent{RecordID: event.RecordID, Outcome: outcome})
	a.metrics.RecordLearnerEvent(string(outcome))
	w.WriteHeader(http.StatusAccepted)
}

func (a *API) handleAssignment(w http.ResponseWriter, r *http.Request) {
	contactID := r.PathValue("id")

	assignment, err := a.store.Assignment(r.Context(), contactID)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		a.logger.Error("assignment lookup failed", zap.String("contact_id", contactID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
