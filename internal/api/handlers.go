// Package api provides the HTTP surface of the telemetry record store.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"procodus.dev/telemetry-store/internal/store"
	"procodus.dev/telemetry-store/pkg/metrics"
)

// APIKeyHeader is the credential header checked on every request.
const APIKeyHeader = "X-API-Key"

// API holds the HTTP handlers for the record store endpoints.
type API struct {
	logger  *slog.Logger
	store   *store.Store
	apiKey  string
	metrics *metrics.ServerMetrics // Optional metrics
}

// NewAPI creates a new API instance.
func NewAPI(logger *slog.Logger, st *store.Store, apiKey string, m *metrics.ServerMetrics) (*API, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if st == nil {
		return nil, errors.New("store cannot be nil")
	}

	if apiKey == "" {
		return nil, errors.New("api key cannot be empty")
	}

	return &API{
		logger:  logger,
		store:   st,
		apiKey:  apiKey,
		metrics: m,
	}, nil
}

// Routes configures the HTTP routes.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Record store endpoints, credential-gated
	mux.HandleFunc("POST /ingest", a.instrument("/ingest", a.requireAPIKey(a.handleIngest)))
	mux.HandleFunc("GET /records", a.instrument("/records", a.requireAPIKey(a.handleRecords)))

	// Health check
	mux.HandleFunc("GET /health", a.handleHealth)

	// Prometheus metrics
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

type ingestRequest struct {
	Project string `json:"project"`
	Data    string `json:"data"`
}

type ingestResponse struct {
	Message string `json:"message"`
	ID      uint   `json:"id"`
}

type recordResponse struct {
	ID        uint   `json:"id"`
	Timestamp string `json:"timestamp"`
	Project   string `json:"project"`
	Data      string `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleIngest accepts one telemetry submission and appends it to the store.
func (a *API) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.logger.Warn("rejecting undecodable ingest body", "error", err)
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	record, err := a.store.Insert(r.Context(), req.Project, req.Data)
	if err != nil {
		if errors.Is(err, store.ErrEmptyPayload) {
			a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Data field cannot be empty"})
			return
		}

		a.logger.Error("failed to store record", "project", req.Project, "error", err)
		a.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	if a.metrics != nil {
		a.metrics.RecordsStored.WithLabelValues("http").Inc()
	}

	a.writeJSON(w, http.StatusCreated, ingestResponse{
		Message: capitalize(record.Project) + " data stored successfully",
		ID:      record.ID,
	})
}

// handleRecords returns stored records, newest first, with optional
// project filter and result cap.
func (a *API) handleRecords(w http.ResponseWriter, r *http.Request) {
	filter := store.Filter{
		Project: r.URL.Query().Get("project"),
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		filter.Limit = limit
	}

	records, err := a.store.Query(r.Context(), filter)
	if err != nil {
		a.logger.Error("failed to query records", "project", filter.Project, "error", err)
		a.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	// An empty result renders as [], not null.
	out := make([]recordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, recordResponse{
			ID:        record.ID,
			Timestamp: store.FormatTime(record.CreatedAt),
			Project:   record.Project,
			Data:      record.Payload,
		})
	}

	a.writeJSON(w, http.StatusOK, out)
}

// handleHealth serves the health check endpoint.
func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON renders a JSON response body with the given status.
func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger.Error("failed to write response", "error", err)
	}
}

// capitalize upper-cases the first rune of s and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	return string(unicode.ToUpper(runes[0])) + strings.ToLower(string(runes[1:]))
}
