package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/convohq/playbook/internal/engine"
	"github.com/convohq/playbook/internal/knowledge"
	"github.com/convohq/playbook/internal/logging"
	"github.com/convohq/playbook/internal/store"
	"github.com/convohq/playbook/internal/validation"
	"github.com/convohq/playbook/pkg/schema"
)

// newAPIHandler exposes the engine's operations and playbook authoring to
// internal callers (the chat handler service). The visitor-facing widget
// transport lives elsewhere. searcher may be nil when no knowledge service is
// configured.
func newAPIHandler(eng *engine.Engine, playbooks store.PlaybookStore, validator *validation.StepValidator, searcher knowledge.Searcher, logger *slog.Logger) http.Handler {
	api := &apiHandler{eng: eng, playbooks: playbooks, validator: validator, searcher: searcher, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /v1/playbooks", api.createPlaybook)
	mux.HandleFunc("POST /v1/triggers/check", api.checkTriggers)
	mux.HandleFunc("POST /v1/playbooks/{id}/start", api.startPlaybook)
	mux.HandleFunc("GET /v1/conversations/{id}/execution", api.activeExecution)
	mux.HandleFunc("POST /v1/executions/{id}/step", api.processStep)
	mux.HandleFunc("POST /v1/knowledge/search", api.knowledgeSearch)
	return mux
}

type apiHandler struct {
	eng       *engine.Engine
	playbooks store.PlaybookStore
	validator *validation.StepValidator
	searcher  knowledge.Searcher
	logger    *slog.Logger
}

type createPlaybookRequest struct {
	Playbook schema.Playbook       `json:"playbook"`
	Steps    []schema.PlaybookStep `json:"steps"`
}

// createPlaybook validates and persists a playbook with its step graph.
// Nothing is written until the playbook, every step config, and every edge
// have passed validation.
func (h *apiHandler) createPlaybook(w http.ResponseWriter, r *http.Request) {
	var req createPlaybookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "malformed request body"))
		return
	}

	pb := &req.Playbook
	if pb.ID == "" {
		pb.ID = uuid.NewString()
	}
	if err := validation.ValidatePlaybook(pb); err != nil {
		writeError(w, err)
		return
	}

	steps := make([]*schema.PlaybookStep, len(req.Steps))
	for i := range req.Steps {
		steps[i] = &req.Steps[i]
		steps[i].PlaybookID = pb.ID
		if err := h.validator.ValidateStep(steps[i]); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := validation.ValidateGraph(steps); err != nil {
		writeError(w, err)
		return
	}

	ctx := logging.WithBusinessID(r.Context(), pb.BusinessID)
	if err := h.playbooks.CreatePlaybook(ctx, pb); err != nil {
		writeError(w, err)
		return
	}
	for _, step := range steps {
		if err := h.playbooks.CreateStep(ctx, step); err != nil {
			writeError(w, err)
			return
		}
	}

	h.logger.InfoContext(ctx, "playbook created",
		slog.String("playbook_id", pb.ID),
		slog.Int("steps", len(steps)))
	writeJSON(w, http.StatusCreated, pb)
}

type checkTriggersRequest struct {
	Message        string `json:"message"`
	BusinessID     string `json:"business_id"`
	BotID          string `json:"bot_id,omitempty"`
	ConversationID string `json:"conversation_id"`
	IsFirstMessage bool   `json:"is_first_message,omitempty"`
	CurrentURL     string `json:"current_url,omitempty"`
}

func (h *apiHandler) checkTriggers(w http.ResponseWriter, r *http.Request) {
	var req checkTriggersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "malformed request body"))
		return
	}

	ctx := logging.WithBusinessID(r.Context(), req.BusinessID)
	pb, err := h.eng.CheckTriggers(ctx, req.Message, engine.TriggerContext{
		BusinessID:     req.BusinessID,
		BotID:          req.BotID,
		ConversationID: req.ConversationID,
		IsFirstMessage: req.IsFirstMessage,
		CurrentURL:     req.CurrentURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"playbook": pb})
}

type startPlaybookRequest struct {
	ConversationID string `json:"conversation_id"`
}

func (h *apiHandler) startPlaybook(w http.ResponseWriter, r *http.Request) {
	var req startPlaybookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "malformed request body"))
		return
	}

	ctx := logging.WithConversationID(r.Context(), req.ConversationID)
	state, err := h.eng.StartPlaybook(ctx, r.PathValue("id"), req.ConversationID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, state)
}

func (h *apiHandler) activeExecution(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	ctx := logging.WithConversationID(r.Context(), conversationID)

	exec, err := h.eng.GetActiveExecution(ctx, conversationID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"execution": exec})
}

type processStepRequest struct {
	UserInput *string `json:"user_input,omitempty"`
}

func (h *apiHandler) processStep(w http.ResponseWriter, r *http.Request) {
	var req processStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "malformed request body"))
		return
	}

	result := h.eng.ProcessStep(r.Context(), r.PathValue("id"), req.UserInput)
	writeJSON(w, http.StatusOK, result)
}

// knowledgeSearch proxies the chat handler's retrieval queries to the
// knowledge service.
func (h *apiHandler) knowledgeSearch(w http.ResponseWriter, r *http.Request) {
	if h.searcher == nil {
		writeError(w, schema.NewError(schema.ErrCodeActionUnavailable, "knowledge search is not configured"))
		return
	}

	var q knowledge.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "malformed request body"))
		return
	}

	ctx := logging.WithBusinessID(r.Context(), q.BusinessID)
	chunks, err := h.searcher.Search(ctx, q)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	ee, ok := err.(*schema.EngineError)
	if !ok {
		ee = schema.NewError(schema.ErrCodeExecution, err.Error())
	}

	status := http.StatusInternalServerError
	switch ee.Code {
	case schema.ErrCodeValidation:
		status = http.StatusBadRequest
	case schema.ErrCodeNotFound:
		status = http.StatusNotFound
	case schema.ErrCodeConflict:
		status = http.StatusConflict
	case schema.ErrCodeNotActive:
		status = http.StatusConflict
	case schema.ErrCodeActionUnavailable:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"error": ee})
}
