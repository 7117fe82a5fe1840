package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/iris-crm/iris/internal/observability"
	"github.com/iris-crm/iris/internal/platform/httpx"
	"github.com/iris-crm/iris/internal/shared"
)

// MiddlewareStack returns the ordered middleware chain applied to every route.
func MiddlewareStack(cfg *Config, logger *slog.Logger, sessions *shared.SessionManager, csrf *shared.CSRFManager, metrics *observability.Metrics) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "same-origin",
		ContentSecurityPolicy: "default-src 'self'",
		IsDevelopment:         !cfg.IsProduction(),
	})

	rateLimit := 60
	if TestMode() {
		rateLimit = 6000
	}

	return []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		requestLogger(logger),
		sessionMiddleware(sessions, logger),
		middleware.Recoverer,
		middleware.Timeout(cfg.AppRequestTimeout),
		secureMiddleware.Handler,
		middleware.Compress(5),
		httprate.Limit(rateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
		csrfMiddleware(csrf),
		metrics.Middleware,
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", recorder.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// sessionMiddleware loads the Redis session and commits it just before the
// first byte of the response is written.
func sessionMiddleware(sessions *shared.SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Load(r.Context(), r)
			if err != nil {
				logger.Error("session load failed", "error", err)
				httpx.Problem(w, http.StatusInternalServerError, "Session Error", "could not load session")
				return
			}

			ctx := shared.ContextWithSession(r.Context(), sess)
			wrapped := &commitWriter{
				ResponseWriter: w,
				commit: func() {
					if err := sessions.Commit(r.Context(), w, r, sess); err != nil {
						logger.Error("session commit failed", "error", err)
					}
				},
			}
			next.ServeHTTP(wrapped, r.WithContext(ctx))
			wrapped.ensureCommitted()
		})
	}
}

// csrfMiddleware verifies the X-CSRF-Token header on mutating requests.
func csrfMiddleware(csrf *shared.CSRFManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.User() == "" {
				// Unauthenticated mutations (login) carry no token yet.
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get(shared.CSRFHeader)
			if err := csrf.VerifyToken(r.Context(), sess, token); err != nil {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "invalid csrf token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// commitWriter defers the session commit until headers are about to flush so
// Set-Cookie always precedes the body.
type commitWriter struct {
	http.ResponseWriter
	commit    func()
	committed bool
}

func (w *commitWriter) WriteHeader(status int) {
	w.ensureCommitted()
	w.ResponseWriter.WriteHeader(status)
}

func (w *commitWriter) Write(b []byte) (int, error) {
	w.ensureCommitted()
	return w.ResponseWriter.Write(b)
}

func (w *commitWriter) ensureCommitted() {
	if w.committed {
		return
	}
	w.committed = true
	if w.commit != nil {
		w.commit()
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
