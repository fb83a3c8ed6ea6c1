package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwrk-planet/call-service/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ctxKey string

const (
	HeaderRequestID = "X-Request-ID"

	ctxKeyReqID    ctxKey = "req_id"
	ctxKeyIdentity ctxKey = "identity"
)

// MiddlewareRequestID passes X-Request-ID through or generates one.
func MiddlewareRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, reqID)

		ctx := context.WithValue(r.Context(), ctxKeyReqID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyReqID).(string)
	return v, ok
}

// MiddlewareLogging logs one line per request. Bodies are never logged:
// the login endpoint carries passwords.
func MiddlewareLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &logResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r)

		level := slog.LevelInfo
		if lrw.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		reqID, _ := RequestIDFromContext(r.Context())
		slog.Log(r.Context(), level, "http request",
			"req_id", reqID,
			"method", r.Method,
			"route", routePattern(r),
			"status", lrw.status,
			"bytes", lrw.bytes,
			"dur_ms", time.Since(start).Milliseconds(),
		)
	})
}

// routePattern returns the matched chi pattern, or the raw path before routing.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

type logResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *logResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *logResponseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

type Authorizer interface {
	Authorize(token string) (domain.Identity, error)
}

// MentorOnly requires "Authorization: Bearer <token>" carrying the mentor role.
func MentorOnly(auth Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") || len(h) <= len("Bearer ") {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing bearer token"})
				return
			}

			id, err := auth.Authorize(strings.TrimSpace(h[len("Bearer "):]))
			if err != nil {
				writeError(w, r, "authorize", err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyIdentity, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(domain.Identity)
	return id, ok
}
