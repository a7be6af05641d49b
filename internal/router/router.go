package router

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-content-go/internal/feedback"
	"github.com/ovaphlow/pitchfork/service-content-go/internal/post"
	"github.com/ovaphlow/pitchfork/service-content-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/utilities"
)

const prefix = "/pitchfork-api-content"

// Handlers groups the entity handlers mounted by RegisterRoutes.
type Handlers struct {
	Users     *user.Handler
	Posts     *post.Handler
	Feedbacks *feedback.Handler
}

// loggingResponseWriter captures status and size for the access log.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware logs each request at debug level, tagged with its request id.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"request_id", w.Header().Get(RequestIDHeader),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

const RequestIDHeader = "X-Request-Id"

// RequestIDMiddleware echoes an incoming X-Request-Id or assigns a snowflake id.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = utilities.NewSnowflakeID()
				r.Header.Set(RequestIDHeader, id)
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersMiddleware sets conservative security headers on every response.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer-when-downgrade")
			// JSON only, nothing to load
			if h.Get("Content-Security-Policy") == "" {
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			if r.TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RegisterRoutes mounts public and admin endpoints under the service prefix.
// Admin endpoints require a bearer token signed with adminSecret.
func RegisterRoutes(logger *zap.SugaredLogger, h Handlers, adminSecret []byte) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+prefix+"/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// public
	mux.HandleFunc("GET "+prefix+"/posts", h.Posts.ListPublic)
	mux.HandleFunc("GET "+prefix+"/posts/{locale}/{slug}", h.Posts.GetPublished)
	mux.HandleFunc("POST "+prefix+"/users", h.Users.Register)
	mux.HandleFunc("POST "+prefix+"/feedbacks", h.Feedbacks.Submit)

	auth := AdminAuthMiddleware(adminSecret, logger)
	admin := func(pattern string, fn http.HandlerFunc) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.Handle(method+" "+prefix+"/admin"+path, auth(fn))
	}

	admin("GET /posts", h.Posts.ListAll)
	admin("POST /posts", h.Posts.Create)
	admin("GET /posts/total", h.Posts.Total)
	admin("GET /posts/{uuid}", h.Posts.Get)
	admin("PUT /posts/{uuid}", h.Posts.Update)

	admin("GET /users", h.Users.List)
	admin("GET /users/total", h.Users.Total)
	admin("GET /users/stats", h.Users.Stats)
	admin("GET /users/{uuid}", h.Users.Get)
	admin("PUT /users/{uuid}/invite-code", h.Users.AssignInviteCode)
	admin("PUT /users/{uuid}/inviter", h.Users.BindInviter)

	admin("GET /feedbacks", h.Feedbacks.List)
	admin("GET /feedbacks/total", h.Feedbacks.Total)
	admin("GET /feedbacks/{id}", h.Feedbacks.Get)
	admin("PUT /feedbacks/{id}", h.Feedbacks.Update)

	return RequestIDMiddleware()(LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux)))
}
