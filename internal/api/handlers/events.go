// Package handlers contains the HTTP handler implementations for the event
// lifecycle API. It covers event CRUD and the scheduler rebuild side effects
// every mutation carries.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"eventline/internal/core"
	"eventline/internal/types"
)

// --- Service Interfaces ---
//
// Defined locally following the handler injection pattern: the handler depends
// on abstractions for testability, not on the concrete db and scheduler types.

// EventRepo defines the data access contract for event operations.
// Mirrors the concrete db.EventRepository methods used by this handler.
type EventRepo interface {
	Create(ctx context.Context, ev *types.Event) error
	GetEvent(ctx context.Context, id string) (*types.Event, error)
	ListEventsWithLifecycleFields(ctx context.Context) ([]*types.Event, error)
	Update(ctx context.Context, ev *types.Event) error
	Delete(ctx context.Context, id string) error
}

// SchedulerControl is the slice of the scheduler the handler drives: after
// any mutation the event's pending trigger must be rebuilt (or removed).
type SchedulerControl interface {
	Rebuild(ctx context.Context, eventID string, ev *types.Event)
}

// --- Request Models ---

// CreateEventRequest is the request body for POST /v1/events.
// All lifecycle timestamps are optional; those present must be non-decreasing
// in declaration order.
type CreateEventRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"omitempty,max=2000"`

	RegistrationStart   *time.Time `json:"registration_start,omitempty"`
	RegistrationEnd     *time.Time `json:"registration_end,omitempty"`
	StartTime           *time.Time `json:"start_time,omitempty"`
	EndTime             *time.Time `json:"end_time,omitempty"`
	CertificateDeadline *time.Time `json:"certificate_deadline,omitempty"`
}

// UpdateEventRequest is the request body for PATCH /v1/events/{id}.
// Absent fields are left unchanged; present timestamps replace the stored
// value. The merged result must still satisfy the ordering rule.
type UpdateEventRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`

	RegistrationStart   *time.Time `json:"registration_start,omitempty"`
	RegistrationEnd     *time.Time `json:"registration_end,omitempty"`
	StartTime           *time.Time `json:"start_time,omitempty"`
	EndTime             *time.Time `json:"end_time,omitempty"`
	CertificateDeadline *time.Time `json:"certificate_deadline,omitempty"`
}

// --- Handler ---

// EventHandler manages event CRUD. Every mutation notifies the scheduler so
// the event's pending trigger tracks the stored timestamps.
type EventHandler struct {
	repo      EventRepo
	scheduler SchedulerControl
	validator *core.Validator
	logger    *slog.Logger
}

// NewEventHandler creates a new EventHandler with the provided dependencies.
func NewEventHandler(repo EventRepo, scheduler SchedulerControl, v *core.Validator, l *slog.Logger) *EventHandler {
	if l == nil {
		l = slog.Default()
	}
	return &EventHandler{
		repo:      repo,
		scheduler: scheduler,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts event routes on the provided chi.Router.
func (h *EventHandler) RegisterRoutes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
		})
	})
}

// --- Handler Methods ---

// Create handles POST /v1/events. On success the scheduler rebuilds the new
// event's trigger, which also applies immediately any transition whose instant
// is already in the past.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	ev := &types.Event{
		ID:                  "evt_" + uuid.New().String(),
		Name:                req.Name,
		Description:         req.Description,
		RegistrationStart:   req.RegistrationStart,
		RegistrationEnd:     req.RegistrationEnd,
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		CertificateDeadline: req.CertificateDeadline,
	}

	if err := validateTimestampOrder(ev); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.repo.Create(r.Context(), ev); err != nil {
		core.Error(w, r, err)
		return
	}

	h.scheduler.Rebuild(r.Context(), ev.ID, ev)

	h.logger.InfoContext(r.Context(), "event created", "event_id", ev.ID)
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: ev})
}

// Get handles GET /v1/events/{id}.
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidID, "event id is required", nil))
		return
	}

	ev, err := h.repo.GetEvent(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if ev == nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundEvent, "event not found", nil))
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: ev})
}

// List handles GET /v1/events.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.repo.ListEventsWithLifecycleFields(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if events == nil {
		events = []*types.Event{}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: events})
}

// Update handles PATCH /v1/events/{id}. The stored event is fetched, the
// patch merged, the merged timestamps re-validated, and the scheduler
// rebuilt so the pending trigger never reflects stale timestamps.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidID, "event id is required", nil))
		return
	}

	var req UpdateEventRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	ev, err := h.repo.GetEvent(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if ev == nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundEvent, "event not found", nil))
		return
	}

	if req.Name != nil {
		ev.Name = *req.Name
	}
	if req.Description != nil {
		ev.Description = *req.Description
	}
	if req.RegistrationStart != nil {
		ev.RegistrationStart = req.RegistrationStart
	}
	if req.RegistrationEnd != nil {
		ev.RegistrationEnd = req.RegistrationEnd
	}
	if req.StartTime != nil {
		ev.StartTime = req.StartTime
	}
	if req.EndTime != nil {
		ev.EndTime = req.EndTime
	}
	if req.CertificateDeadline != nil {
		ev.CertificateDeadline = req.CertificateDeadline
	}

	if err := validateTimestampOrder(ev); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.repo.Update(r.Context(), ev); err != nil {
		core.Error(w, r, err)
		return
	}

	h.scheduler.Rebuild(r.Context(), ev.ID, ev)

	h.logger.InfoContext(r.Context(), "event updated", "event_id", ev.ID)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: ev})
}

// Delete handles DELETE /v1/events/{id}. Passing a nil event to Rebuild
// cancels any pending trigger for it.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidID, "event id is required", nil))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}

	h.scheduler.Rebuild(r.Context(), id, nil)

	h.logger.InfoContext(r.Context(), "event deleted", "event_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// validateTimestampOrder checks that the lifecycle timestamps present on the
// event are non-decreasing in causal order. Omitted timestamps are skipped.
func validateTimestampOrder(ev *types.Event) error {
	ordered := []struct {
		name string
		at   *time.Time
	}{
		{"registration_start", ev.RegistrationStart},
		{"registration_end", ev.RegistrationEnd},
		{"start_time", ev.StartTime},
		{"end_time", ev.EndTime},
		{"certificate_deadline", ev.CertificateDeadline},
	}

	var prev *struct {
		name string
		at   *time.Time
	}
	for i := range ordered {
		if ordered[i].at == nil {
			continue
		}
		if prev != nil && ordered[i].at.Before(*prev.at) {
			return types.NewAppErrorWithDetails(
				types.ErrCodeValidationTimestampOrder,
				"lifecycle timestamps must be non-decreasing",
				nil,
				map[string]any{
					"field":  ordered[i].name,
					"before": prev.name,
				},
			)
		}
		prev = &ordered[i]
	}
	return nil
}
