package httpapi

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/example/fleet-loads/internal/observability"
)

type ctxKey struct{}

const requestIDHeader = "X-Request-ID"

// quietRoutes are scraped or probed constantly and only logged at debug.
var quietRoutes = map[string]bool{
	"/metrics": true,
	"/healthz": true,
}

func (s *Server) registerMiddleware() {
	s.mux.Use(s.tagRequest, s.recoverPanics, s.logRequests)
}

// tagRequest keeps a caller's request id when it is a uuid and mints one
// otherwise. The id is echoed in the response and carried in the context.
func (s *Server) tagRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.logger.Error("handler panic", "error", rec, "path", r.URL.Path, "request_id", requestID(r.Context()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}()
		next.ServeHTTP(w, r)
	})
}

// logRequests records the request metrics and writes one access log line.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := routeOf(r)
		code := strconv.Itoa(rec.status)
		observability.HTTPRequestsTotal.WithLabelValues(r.Method, route, code).Inc()
		observability.HTTPRequestDuration.WithLabelValues(r.Method, route, code).Observe(elapsed.Seconds())

		level := slog.LevelInfo
		if quietRoutes[route] {
			level = slog.LevelDebug
		}
		s.logger.Log(r.Context(), level, "http_request",
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"bytes", rec.written,
			"duration_ms", elapsed.Milliseconds(),
			"client", clientAddr(r),
			"request_id", requestID(r.Context()),
		)
	})
}

// statusRecorder captures what the handler sent. It must stay hijackable or
// the /ws upgrade fails behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("connection cannot be hijacked")
	}
	rw.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// routeOf prefers the mux template so /loads/{id}/accept is one label.
func routeOf(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return r.URL.Path
	}
	tmpl, err := route.GetPathTemplate()
	if err != nil {
		return r.URL.Path
	}
	return tmpl
}

func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
