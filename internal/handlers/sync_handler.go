package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"db-schema-sync/internal/models"
	"db-schema-sync/internal/services"
)

// Handler holds service dependencies
type Handler struct {
	syncService *services.SyncService
	scheduler   *services.Scheduler
	history     *services.History
	logger      *slog.Logger
}

func NewHandler(syncService *services.SyncService, scheduler *services.Scheduler, history *services.History, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		syncService: syncService,
		scheduler:   scheduler,
		history:     history,
		logger:      logger,
	}
}

type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// SyncRequest selects entities and options for one batch. The legacy
// "models" key is accepted as a synonym for "entities".
type SyncRequest struct {
	Entities []models.EntityRef `json:"entities"`
	Models   []models.EntityRef `json:"models"`
	Options  models.SyncOptions `json:"options"`
}

type OrderResponse struct {
	Order    []string `json:"order"`
	Drop     []string `json:"drop"`
	Warnings []string `json:"warnings,omitempty"`
}

type CheckResponse struct {
	Violations []models.PrecedenceViolation `json:"violations"`
	Entities   int                          `json:"entities"`
}

func (h *Handler) ListEntitiesHandler(w http.ResponseWriter, r *http.Request) {
	defs, err := h.syncService.ListEntities(r.Context())
	if err != nil {
		h.logger.Error("failed to list entities", "error", err)
		sendErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if defs == nil {
		defs = []models.EntityDefinition{}
	}

	sendSuccessResponse(w, "Fetched database entities successfully", defs)
}

// SyncHandler runs one batch. It always answers 200 with the outcome so
// that partial failures reach the operator with their logs.
func (h *Handler) SyncHandler(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	// An empty body is an empty selection, answered like any other.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	refs := req.Entities
	if len(refs) == 0 {
		refs = req.Models
	}

	h.logger.Info("sync requested", "entities", len(refs), "options", req.Options.String())
	// A dropped client must not leave a forced batch half done.
	outcome := h.syncService.Synchronize(context.WithoutCancel(r.Context()), refs, req.Options)
	sendOutcomeResponse(w, outcome)
}

func (h *Handler) OrderHandler(w http.ResponseWriter, r *http.Request) {
	order, warnings, err := h.syncService.PreviewOrder(r.Context(), splitList(r.URL.Query().Get("entities")))
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	names := make([]string, 0, len(order))
	for _, def := range order {
		names = append(names, def.Name)
	}
	drop := make([]string, 0, len(order))
	for _, def := range services.Reverse(order) {
		drop = append(drop, def.Name)
	}

	sendSuccessResponse(w, "", OrderResponse{Order: names, Drop: drop, Warnings: warnings})
}

func (h *Handler) CheckHandler(w http.ResponseWriter, r *http.Request) {
	defs, err := h.syncService.ListEntities(r.Context())
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	violations, err := h.syncService.CheckPrecedence(r.Context())
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if violations == nil {
		violations = []models.PrecedenceViolation{}
	}

	message := "Precedence list is consistent with entity references"
	if len(violations) > 0 {
		message = "Precedence list does not honour some entity references"
	}
	sendSuccessResponse(w, message, CheckResponse{Violations: violations, Entities: len(defs)})
}

func (h *Handler) RunsHandler(w http.ResponseWriter, r *http.Request) {
	sendSuccessResponse(w, "", h.history.List())
}

func (h *Handler) RunHandler(w http.ResponseWriter, r *http.Request) {
	run, ok := h.history.Get(chi.URLParam(r, "id"))
	if !ok {
		sendErrorResponse(w, "Run not found", http.StatusNotFound)
		return
	}
	sendSuccessResponse(w, "", run)
}

func (h *Handler) StartScheduleHandler(w http.ResponseWriter, r *http.Request) {
	// Scheduled jobs outlive this request.
	if err := h.scheduler.Start(context.WithoutCancel(r.Context())); err != nil {
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	sendSuccessResponse(w, "Scheduled sync started", h.scheduler.Status())
}

func (h *Handler) StopScheduleHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.Stop(); err != nil {
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	sendSuccessResponse(w, "Scheduled sync stopped", nil)
}

func (h *Handler) ScheduleStatusHandler(w http.ResponseWriter, r *http.Request) {
	sendSuccessResponse(w, "", h.scheduler.Status())
}

func (h *Handler) ScheduleConfigHandler(w http.ResponseWriter, r *http.Request) {
	var update services.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.scheduler.UpdateConfig(update); err != nil {
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	sendSuccessResponse(w, "Configuration updated", h.scheduler.Status())
}

func (h *Handler) TriggerScheduleHandler(w http.ResponseWriter, r *http.Request) {
	sendOutcomeResponse(w, h.scheduler.TriggerNow(context.WithoutCancel(r.Context())))
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	sendSuccessResponse(w, "Service is running", nil)
}

func (h *Handler) RootHandler(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string]string{
		"health":         "GET /health",
		"syncPage":       "GET /sync-db",
		"entities":       "GET /api/entities",
		"sync":           "POST /api/sync",
		"order":          "GET /api/sync/order?entities=a,b",
		"check":          "GET /api/sync/check",
		"runs":           "GET /api/sync/runs",
		"run":            "GET /api/sync/runs/{id}",
		"startSchedule":  "POST /api/schedule/start",
		"stopSchedule":   "POST /api/schedule/stop",
		"scheduleStatus": "GET /api/schedule/status",
		"updateSchedule": "PUT /api/schedule/config",
		"triggerNow":     "POST /api/schedule/trigger",
	}

	response := Response{
		Success: true,
		Message: "Schema Sync Service",
		Data:    map[string]interface{}{"endpoints": endpoints},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func sendOutcomeResponse(w http.ResponseWriter, outcome *models.SyncOutcome) {
	response := Response{
		Success:   outcome.Success,
		Message:   outcome.Message,
		Data:      outcome,
		Timestamp: time.Now().Format(time.RFC3339),
		Error:     outcome.Error,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func sendSuccessResponse(w http.ResponseWriter, message string, data interface{}) {
	response := Response{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	response := Response{
		Success: false,
		Error:   message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
