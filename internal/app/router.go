package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iris-crm/iris/internal/auth"
	"github.com/iris-crm/iris/internal/crm/customers"
	"github.com/iris-crm/iris/internal/crm/enquiries"
	"github.com/iris-crm/iris/internal/crm/inventory"
	crmjobs "github.com/iris-crm/iris/internal/crm/jobs"
	"github.com/iris-crm/iris/internal/crm/quotes"
	"github.com/iris-crm/iris/internal/notify"
	"github.com/iris-crm/iris/internal/observability"
	"github.com/iris-crm/iris/internal/platform/httpx"
	bgjobs "github.com/iris-crm/iris/jobs"
)

// RouterParams collects the handlers mounted by NewRouter.
type RouterParams struct {
	Middlewares []func(http.Handler) http.Handler
	Metrics     *observability.Metrics

	Auth      *auth.Handler
	Customers *customers.Handler
	Enquiries *enquiries.Handler
	Quotes    *quotes.Handler
	Jobs      *crmjobs.Handler
	Inventory *inventory.Handler
	Notify    *notify.Handler
	Queues    *bgjobs.Handler
}

// NewRouter assembles the chi router with the full middleware stack and all
// module routes mounted under their path prefixes.
func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()
	for _, mw := range p.Middlewares {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())

	r.Route("/auth", p.Auth.MountRoutes)
	r.Route("/customers", p.Customers.MountRoutes)
	r.Route("/enquiries", p.Enquiries.MountRoutes)
	r.Route("/quotes", p.Quotes.MountRoutes)
	r.Route("/jobs", p.Jobs.MountRoutes)
	r.Route("/inventory", p.Inventory.MountRoutes)
	if p.Notify != nil {
		r.Route("/notifications", p.Notify.MountRoutes)
	}
	if p.Queues != nil {
		r.Route("/admin/queues", p.Queues.MountRoutes)
	}

	return r
}
