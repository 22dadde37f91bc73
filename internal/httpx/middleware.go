package httpx

import (
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/lokmanguedri/motivex/internal/auth"
	"github.com/lokmanguedri/motivex/internal/metrics"
	"github.com/lokmanguedri/motivex/internal/ratelimit"
)

func requestID(r *http.Request) string { return middleware.GetReqID(r.Context()) }

// accessLog logs one line per request and feeds the HTTP metrics. The route
// label is the chi pattern so ids do not explode cardinality.
func accessLog(log zerolog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			d := time.Since(start)
			m.ObserveHTTP(r.Method, route, status, d)

			ev := log.Info()
			if status >= http.StatusInternalServerError {
				ev = log.Error()
			}
			ev = ev.Str("request_id", requestID(r)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", route).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", d).
				Str("remote_ip", clientIP(r))
			if id, ok := auth.FromContext(r.Context()); ok {
				ev = ev.Str("user_id", id.UserID)
			}
			ev.Msg("request completed")
		})
	}
}

// recoverer answers 500 JSON when a handler panics.
func recoverer(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error().
					Str("request_id", requestID(r)).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("panic", fmt.Sprint(rec)).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				writeMessage(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate attaches the bearer identity when a token is sent. Requests
// without one pass through anonymous; a bad token is a 401.
func authenticate(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" {
				next.ServeHTTP(w, r)
				return
			}
			scheme, token, ok := strings.Cut(h, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeMessage(w, http.StatusUnauthorized, "malformed authorization header")
				return
			}
			id, err := tokens.Parse(strings.TrimSpace(token))
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			writeMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !id.IsAdmin() {
			writeMessage(w, http.StatusForbidden, "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit keys l by client IP. It runs after middleware.RealIP.
func rateLimit(l ratelimit.Limiter) func(http.Handler) http.Handler {
	retry := strconv.Itoa(int(l.Window().Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(r.Context(), clientIP(r)) {
				w.Header().Set("Retry-After", retry)
				writeMessage(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func currentUser(r *http.Request) (auth.Identity, bool) { return auth.FromContext(r.Context()) }
