package intake

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bissquit/crisiskit/internal/domain"
	"github.com/bissquit/crisiskit/internal/pkg/httputil"
	"github.com/bissquit/crisiskit/internal/queue"
	"github.com/bissquit/crisiskit/internal/status"
	syncengine "github.com/bissquit/crisiskit/internal/sync"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: queue.ErrPersistence, Status: http.StatusInsufficientStorage, Message: "submission could not be saved locally, please retry"},
	{Error: status.ErrOffline, Status: http.StatusConflict, Message: "offline, sync not started"},
	{Error: syncengine.ErrSyncInProgress, Status: http.StatusConflict, Message: "sync already in progress"},
}

// Handler handles HTTP requests for the intake and queue surface.
type Handler struct {
	service   *Service
	projector *status.Projector
	store     queue.Store
	engine    *syncengine.Engine
	validator *validator.Validate
}

// NewHandler creates a new intake handler.
func NewHandler(service *Service, projector *status.Projector, store queue.Store, engine *syncengine.Engine) *Handler {
	return &Handler{
		service:   service,
		projector: projector,
		store:     store,
		engine:    engine,
		validator: validator.New(),
	}
}

// RegisterRoutes registers the public intake routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/incidents/{incidentID}/responses", h.SubmitResponse)
	r.Get("/queue/status", h.QueueStatus)
	r.Post("/queue/sync", h.SyncNow)
}

// RegisterAdminRoutes registers queue administration routes.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/queue/failed", h.ListFailed)
	r.Get("/queue/export", h.ExportQueue)
	r.Post("/queue/{sequenceID}/reset-retries", h.ResetRetries)
	r.Delete("/queue", h.ClearQueue)
}

// SubmitRequest represents the request body for a submission.
type SubmitRequest struct {
	Name      string   `json:"name" validate:"required"`
	Contact   string   `json:"contact"`
	Needs     string   `json:"needs" validate:"required"`
	Location  string   `json:"location"`
	Region    string   `json:"region"`
	District  string   `json:"district"`
	ImageURLs []string `json:"image_urls" validate:"omitempty,dive,url"`
}

// SubmitResponse handles POST /incidents/{incidentID}/responses.
func (h *Handler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	incidentID := chi.URLParam(r, "incidentID")

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	receipt, err := h.service.Submit(r.Context(), domain.SubmissionPayload{
		IncidentID: incidentID,
		Name:       req.Name,
		Contact:    req.Contact,
		Needs:      req.Needs,
		Location:   req.Location,
		Region:     req.Region,
		District:   req.District,
		ImageURLs:  req.ImageURLs,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	code := http.StatusCreated
	if receipt.Outcome != OutcomeSubmitted {
		code = http.StatusAccepted
	}
	httputil.Success(w, code, receipt)
}

// QueueStatus handles GET /queue/status.
func (h *Handler) QueueStatus(w http.ResponseWriter, _ *http.Request) {
	httputil.Success(w, http.StatusOK, h.projector.Snapshot())
}

// SyncNow handles POST /queue/sync.
func (h *Handler) SyncNow(w http.ResponseWriter, r *http.Request) {
	result, err := h.projector.SyncNow(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, result)
}

// ListFailed handles GET /queue/failed.
func (h *Handler) ListFailed(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListFailed(r.Context(), h.engine.MaxRetries())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, items)
}

// ExportQueue handles GET /queue/export.
func (h *Handler) ExportQueue(w http.ResponseWriter, r *http.Request) {
	data, err := queue.ExportJSON(r.Context(), h.store)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="queue-export.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ResetRetries handles POST /queue/{sequenceID}/reset-retries.
func (h *Handler) ResetRetries(w http.ResponseWriter, r *http.Request) {
	sequenceID, err := strconv.ParseInt(chi.URLParam(r, "sequenceID"), 10, 64)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid sequence id")
		return
	}

	if err := h.store.ResetRetries(r.Context(), sequenceID); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	h.projector.RefreshCount(r.Context())

	httputil.Success(w, http.StatusOK, map[string]int64{"sequence_id": sequenceID})
}

// ClearQueue handles DELETE /queue. Destructive, admin only.
func (h *Handler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(r.Context()); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	h.projector.RefreshCount(r.Context())

	w.WriteHeader(http.StatusNoContent)
}
