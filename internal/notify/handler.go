package notify

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/iris-crm/iris/internal/platform/httpx"
	"github.com/iris-crm/iris/internal/rbac"
)

// Handler exposes manual notification dispatch for admin use.
type Handler struct {
	logger     *slog.Logger
	dispatcher *Dispatcher
	rbac       rbac.Middleware
	validator  *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, dispatcher *Dispatcher, rbacMW rbac.Middleware) *Handler {
	return &Handler{
		logger:     logger,
		dispatcher: dispatcher,
		rbac:       rbacMW,
		validator:  validator.New(),
	}
}

// MountRoutes registers notification routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermUserAdmin))
		r.Post("/", h.dispatch)
	})
}

type dispatchRequest struct {
	Channel string `json:"channel" validate:"required,oneof=email sms"`
	Target  string `json:"target" validate:"required"`
	Subject string `json:"subject"`
	Body    string `json:"body" validate:"required"`
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	msg := Message{
		Channel: Channel(req.Channel),
		Target:  req.Target,
		Subject: req.Subject,
		Body:    req.Body,
	}
	if err := h.dispatcher.Dispatch(r.Context(), msg); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
