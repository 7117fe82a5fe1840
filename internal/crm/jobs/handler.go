package jobs

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/iris-crm/iris/internal/crm"
	"github.com/iris-crm/iris/internal/platform/httpx"
	"github.com/iris-crm/iris/internal/rbac"
	"github.com/iris-crm/iris/internal/shared"
)

// Handler manages job endpoints, including the bookkeeper queue and quote
// conversion.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	rbac        rbac.Middleware
	idempotency *shared.IdempotencyStore
	validator   *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware, idem *shared.IdempotencyStore) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		rbac:        rbacMW,
		idempotency: idem,
		validator:   validator.New(),
	}
}

// MountRoutes registers job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermJobView))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		r.Get("/{id}/updates", h.listUpdates)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermJobEdit))
		r.Post("/", h.create)
		r.Post("/{id}/status", h.updateStatus)
		r.Post("/{id}/schedule", h.schedule)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermJobUpdate))
		r.Post("/{id}/updates", h.addUpdate)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermQuoteApprove))
		r.Post("/convert/{quoteID}", h.convertQuote)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermInvoiceView))
		r.Get("/invoiceable", h.listInvoiceable)
		r.Get("/invoiced", h.listInvoiced)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermInvoiceEdit))
		r.Post("/{id}/ready-for-invoicing", h.markReadyForInvoicing)
		r.Post("/{id}/invoiced", h.markInvoiced)
	})
}

func jobID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func pageParams(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	return page, perPage
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, perPage := pageParams(r)
	customerID, _ := strconv.ParseInt(q.Get("customer_id"), 10, 64)
	assignedTo, _ := strconv.ParseInt(q.Get("assigned_to"), 10, 64)
	// Installers only see their own assignments.
	if actor, ok := rbac.CurrentActor(r); ok && actor.Role == crm.RoleInstaller {
		assignedTo = actor.UserID
	}
	items, pagination, err := h.service.List(r.Context(), Filter{
		CustomerID: customerID,
		Status:     JobStatus(q.Get("status")),
		AssignedTo: assignedTo,
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"jobs":       items,
		"pagination": pagination,
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "job id must be numeric")
		return
	}
	j, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, j)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.CurrentActor(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
		return
	}
	var req CreateJobRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	j, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, j)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.CurrentActor(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
		return
	}
	id, okID := jobID(r)
	if !okID {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "job id must be numeric")
		return
	}
	var req UpdateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	j, err := h.service.UpdateStatus(r.Context(), actor, id, JobStatus(req.Status), req.Notes)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, j)
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.CurrentActor(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
		return
	}
	id, okID := jobID(r)
	if !okID {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "job id must be numeric")
		return
	}
	var req ScheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	j, err := h.service.Schedule(r.Context(), actor, id, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, j)
}

func (h *Handler) addUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.CurrentActor(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
		return
	}
	id, okID := jobID(r)
	if !okID {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "job id must be numeric")
		return
	}
	var req AddUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
		return
	}
	entry, err := h.service.AddUpdate(r.Context(), actor, id, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) listUpdates(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "job id must be numeric")
		return
	}
	updates, err := h.service.ListUpdates(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updates": updates})
}

// convertQuote accepts an optional Idempotency-Key header so a retried
// request reports a conflict instead of a confusing state error.
func (h *Handler) convertQuote(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.CurrentActor(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
		return
	}
	quoteID, err := strconv.ParseInt(chi.URLParam(r, "quoteID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "quote id must be numeric")
		return
	}
	var req ConvertQuoteRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
			return
		}
		if err := h.validator.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Request", err.Error())
			return
		}
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), idemKey, "jobs.convert"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Conflict", "this conversion request was already processed")
				return
			}
			httpx.RespondError(w, err)
			return
		}
	}

	j, err := h.service.ConvertQuoteToJob(r.Context(), actor, quoteID, req)
	if err != nil {
		if idemKey != "" && h.idempotency != nil {
			if delErr := h.idempotency.Delete(r.Context(), idemKey); delErr != nil {
				h.logger.Warn("release idempotency key", slog.String("key", idemKey), slog.Any("error", delErr))
			}
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, j)
}

func (h *Handler) listInvoiceable(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r)
	items, pagination, err := h.service.ListInvoiceable(r.Context(), page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"jobs":       items,
		"pagination": pagination,
	})
}

func (h *Handler) listInvoiced(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r)
	items, pagination, err := h.service.ListInvoiced(r.Context(), page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"jobs":       items,
		"pagination": pagination,
	})
}

func (h *Handler) markReadyForInvoicing(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "job id must be numeric")
		return
	}
	j, err := h.service.MarkReadyForInvoicing(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, j)
}

func (h *Handler) markInvoiced(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "job id must be numeric")
		return
	}
	j, err := h.service.MarkInvoiced(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, j)
}
