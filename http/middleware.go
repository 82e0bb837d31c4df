package http

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sagarc03/cryptosheet"
	"github.com/sagarc03/cryptosheet/ratelimit"
)

// Authenticator checks the shared secret header. An empty secret puts the
// gateway in open mode where every request is accepted.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Open reports whether no secret is configured.
func (a *Authenticator) Open() bool {
	return len(a.secret) == 0
}

// Verify checks the presented secret in constant time.
func (a *Authenticator) Verify(r *http.Request) error {
	if a.Open() {
		return nil
	}

	presented := []byte(r.Header.Get(cryptosheet.SecretHeader))
	if subtle.ConstantTimeCompare(presented, a.secret) == 1 {
		return nil
	}

	return &cryptosheet.RequestError{
		Kind:    cryptosheet.ErrUnauthorized,
		Message: "Invalid " + cryptosheet.SecretHeader,
	}
}

// AdmissionConfig configures the admission middleware.
type AdmissionConfig struct {
	// Limiter is optional; nil disables rate limiting.
	Limiter *ratelimit.Limiter
	Auth    *Authenticator
	// RequireAuth enforces the shared secret.
	RequireAuth bool
	Metrics     *Metrics
}

// AdmissionMiddleware rate-limits and authenticates requests. Every request
// is counted by the limiter, authorized or not. An authentication failure
// is reported before a rate-limit rejection.
func AdmissionMiddleware(cfg AdmissionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var decision ratelimit.Decision
			if cfg.Limiter != nil {
				decision = cfg.Limiter.Allow(ratelimit.Identify(r))
				w.Header().Set("RateLimit-Limit", strconv.Itoa(decision.Limit))
				w.Header().Set("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			}

			if cfg.RequireAuth && cfg.Auth != nil {
				if err := cfg.Auth.Verify(r); err != nil {
					HandleError(w, err)
					return
				}
			}

			if cfg.Limiter != nil && !decision.Allowed {
				cfg.Metrics.RateLimited()
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(decision.RetryAfter.Seconds()))))
				HandleError(w, &cryptosheet.RequestError{
					Kind:    cryptosheet.ErrRateLimited,
					Message: "Too many requests, please try again later.",
					Fields:  map[string]any{"retryAfter": int(math.Ceil(decision.RetryAfter.Seconds()))},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request and feeds the request metrics.
func RequestLogger(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			metrics.Request(r.Method, route, status, duration)

			slog.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", status,
				"duration", duration,
				"bytes", ww.BytesWritten(),
				"identity", ratelimit.Identify(r).Short(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// Recoverer turns a panic in a handler into a 500 error envelope.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			slog.Error("handler panic",
				"panic", fmt.Sprint(rec),
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			WriteError(w, http.StatusInternalServerError, CodeInternal, "Internal server error", nil)
		}()

		next.ServeHTTP(w, r)
	})
}
