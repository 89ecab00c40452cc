// Package api exposes the council over HTTP: application submission
// (sync and streaming), decision review, outcomes, teams, and the
// observation lifecycle.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SovereignSignal/llm-grants-council-claude1/council"
	"github.com/SovereignSignal/llm-grants-council-claude1/learning"
	"github.com/SovereignSignal/llm-grants-council-claude1/pipeline"
	"github.com/SovereignSignal/llm-grants-council-claude1/reviewer"
	"github.com/SovereignSignal/llm-grants-council-claude1/storage"
)

// maxRequestBodySize bounds submission payloads.
const maxRequestBodySize = 1 << 20 // 1MB

// Server handles the council's HTTP API.
type Server struct {
	store        storage.Store
	coordinator  *pipeline.Coordinator
	observations *learning.Observations
	processor    *learning.Processor
	personas     []reviewer.Persona
	logger       *slog.Logger
}

// NewServer creates the API server.
func NewServer(store storage.Store, coordinator *pipeline.Coordinator, observations *learning.Observations, processor *learning.Processor, personas []reviewer.Persona, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:        store,
		coordinator:  coordinator,
		observations: observations,
		processor:    processor,
		personas:     personas,
		logger:       logger,
	}
}

// RegisterRoutes mounts all handlers on the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/applications", s.handleSubmit)
	mux.HandleFunc("POST /api/applications/stream", s.handleSubmitStream)
	mux.HandleFunc("GET /api/applications", s.handleListApplications)
	mux.HandleFunc("GET /api/applications/{id}", s.handleGetApplication)
	mux.HandleFunc("POST /api/applications/{id}/decision", s.handleHumanDecision)
	mux.HandleFunc("POST /api/applications/{id}/outcome", s.handleRecordOutcome)

	mux.HandleFunc("GET /api/teams", s.handleListTeams)
	mux.HandleFunc("GET /api/teams/{id}", s.handleGetTeam)

	mux.HandleFunc("GET /api/observations", s.handleListObservations)
	mux.HandleFunc("POST /api/observations/{id}/approve", s.handleApproveObservation)
	mux.HandleFunc("POST /api/observations/{id}/deprecate", s.handleDeprecateObservation)

	mux.HandleFunc("POST /api/learning/process", s.handleProcessLearning)

	mux.HandleFunc("GET /api/personas", s.handleListPersonas)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.Handle("GET /metrics", promhttp.Handler())
}

type submitRequest struct {
	Content  string `json:"content"`
	Source   string `json:"source,omitempty"`
	SourceID string `json:"source_id,omitempty"`
}

func (r *submitRequest) normalize() error {
	if r.Content == "" {
		return fmt.Errorf("content is required")
	}
	if r.Source == "" {
		r.Source = "api"
	}
	return nil
}

// handleSubmit runs the full pipeline synchronously and returns the
// result.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.coordinator.Run(r.Context(), req.Content, req.Source, req.SourceID)
	if err != nil {
		s.logger.Error("Council run failed", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("council run failed"))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSubmitStream runs the pipeline and streams stage events as
// server-sent events.
func (s *Server) handleSubmitStream(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range s.coordinator.RunStream(r.Context(), req.Content, req.Source, req.SourceID) {
		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.Error("Event marshal failed", "error", err)
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
		flusher.Flush()
	}
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	filter := storage.ApplicationFilter{
		Status: council.DecisionStatus(r.URL.Query().Get("status")),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		fmt.Sscanf(limit, "%d", &filter.Limit)
	}

	apps, err := s.store.ListApplications(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	app, err := s.store.GetApplication(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	evaluations, err := s.store.ListEvaluations(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	response := map[string]any{
		"application": app,
		"evaluations": evaluations,
	}
	if deliberation, err := s.store.GetDeliberation(r.Context(), id); err == nil {
		response["deliberation"] = deliberation
	}
	if decision, err := s.store.GetDecision(r.Context(), id); err == nil {
		response["decision"] = decision
	}

	writeJSON(w, http.StatusOK, response)
}

type humanDecisionRequest struct {
	Decision  string `json:"decision"` // "approved" or "rejected"
	Rationale string `json:"rationale,omitempty"`
	DecidedBy string `json:"decided_by,omitempty"`
}

// handleHumanDecision records a human decision on an application that
// was routed to review or already auto-decided. A decision that
// contradicts a prior auto-decision is an override and queues an
// override learning event.
func (s *Server) handleHumanDecision(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req humanDecisionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Decision != "approved" && req.Decision != "rejected" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decision must be \"approved\" or \"rejected\""))
		return
	}

	app, err := s.store.GetApplication(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	switch app.Status {
	case council.StatusNeedsReview, council.StatusAutoApproved, council.StatusAutoRejected:
	default:
		writeError(w, http.StatusConflict, fmt.Errorf("application is %s, not open to a human decision", app.Status))
		return
	}

	priorStatus := app.Status
	humanApproved := req.Decision == "approved"
	overridden := (priorStatus == council.StatusAutoApproved && !humanApproved) ||
		(priorStatus == council.StatusAutoRejected && humanApproved)

	now := time.Now().UTC()
	if humanApproved {
		app.Status = council.StatusHumanApproved
	} else {
		app.Status = council.StatusHumanRejected
	}
	app.FinalDecision = req.Decision
	app.DecisionRationale = req.Rationale
	app.DecidedAt = &now
	app.DecidedBy = "human"
	app.UpdatedAt = now
	app.WasOverridden = overridden
	if overridden {
		app.OverrideReason = req.Rationale
	}

	if err := s.store.SaveApplication(r.Context(), app); err != nil {
		writeStoreError(w, err)
		return
	}

	if overridden {
		event := &council.LearningEvent{
			ID:            storage.NewID(),
			CreatedAt:     now,
			EventType:     council.EventOverride,
			ApplicationID: app.ID,
			Description:   fmt.Sprintf("Human overrode council decision: %s -> %s", priorStatus, req.Decision),
			Context: map[string]string{
				"original_decision": string(priorStatus),
				"new_decision":      req.Decision,
				"rationale":         req.Rationale,
				"decided_by":        req.DecidedBy,
			},
		}
		if err := s.store.SaveLearningEvent(r.Context(), event); err != nil {
			s.logger.Error("Failed to queue override learning event",
				"application_id", app.ID,
				"error", err)
		}
	}

	if app.Status == council.StatusHumanApproved {
		s.recordAward(r.Context(), app)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"application":    app,
		"was_overridden": overridden,
	})
}

// handleRecordOutcome stores a grant outcome and queues an outcome
// learning event.
func (s *Server) handleRecordOutcome(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var outcome council.GrantOutcome
	if err := decodeBody(w, r, &outcome); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	app, err := s.store.GetApplication(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	outcome.ApplicationID = app.ID
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = time.Now().UTC()
	}
	if err := s.store.SaveOutcome(r.Context(), &outcome); err != nil {
		writeStoreError(w, err)
		return
	}

	event := &council.LearningEvent{
		ID:            storage.NewID(),
		CreatedAt:     time.Now().UTC(),
		EventType:     council.EventOutcome,
		ApplicationID: app.ID,
		Description:   fmt.Sprintf("Grant outcome recorded: completed=%t", outcome.Completed),
	}
	if err := s.store.SaveLearningEvent(r.Context(), event); err != nil {
		s.logger.Error("Failed to queue outcome learning event",
			"application_id", app.ID,
			"error", err)
	}

	s.recordCompletion(r.Context(), app, &outcome)

	writeJSON(w, http.StatusOK, map[string]any{"outcome": &outcome})
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.store.ListTeams(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": teams})
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := s.store.GetTeam(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (s *Server) handleListObservations(w http.ResponseWriter, r *http.Request) {
	filter := storage.ObservationFilter{
		ReviewerID: r.URL.Query().Get("reviewer_id"),
		Status:     council.ObservationStatus(r.URL.Query().Get("status")),
	}
	observations, err := s.store.ListObservations(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"observations": observations})
}

func (s *Server) handleApproveObservation(w http.ResponseWriter, r *http.Request) {
	obs, err := s.observations.Approve(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

func (s *Server) handleDeprecateObservation(w http.ResponseWriter, r *http.Request) {
	obs, err := s.observations.Deprecate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

// handleProcessLearning runs the learning loop on demand: reflect on
// pending events, then promote observations that earned enough
// evidence.
func (s *Server) handleProcessLearning(w http.ResponseWriter, r *http.Request) {
	processed, err := s.processor.ProcessPending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	promoted, err := s.observations.PromoteEligible(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events_processed":      processed,
		"observations_promoted": promoted,
	})
}

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"personas": s.personas})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
