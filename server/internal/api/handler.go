package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/alertrelay/alertrelay/server/internal/alerts"
	"github.com/alertrelay/alertrelay/server/internal/auth"
	"github.com/alertrelay/alertrelay/server/internal/config"
	"github.com/alertrelay/alertrelay/server/internal/logging"
	"github.com/alertrelay/alertrelay/server/internal/metrics"
)

const (
	msgMethodNotAllowed = "method not allowed"
	msgTooLarge         = "payload too large"
	msgUnreadable       = "Invalid JSON payload: request body could not be read"
)

// Handler is the HTTP handler for the relay: the alert endpoint, the
// liveness probe, and optionally the Prometheus endpoint.
type Handler struct {
	mux       *http.ServeMux
	root      http.Handler
	forwarder atomic.Pointer[alerts.Forwarder]
	guard     *auth.Guard
	metrics   *metrics.Metrics
	maxBody   int64
}

// New creates a Handler and registers all routes. When m is nil no /metrics
// route is registered and nothing is recorded.
func New(cfg config.ServerConfig, f *alerts.Forwarder, g *auth.Guard, m *metrics.Metrics) *Handler {
	h := &Handler{
		mux:     http.NewServeMux(),
		guard:   g,
		metrics: m,
		maxBody: cfg.MaxBodyBytes,
	}
	if h.maxBody <= 0 {
		h.maxBody = config.DefaultMaxBodyBytes
	}
	h.forwarder.Store(f)

	path := cfg.Path
	if path == "" {
		path = config.DefaultPath
	}
	var alert http.Handler = http.HandlerFunc(h.alert)
	if g != nil {
		alert = g.Middleware(alert)
	}

	h.mux.Handle(path, alert)
	h.mux.HandleFunc(config.HealthPath, h.health)
	if m != nil {
		h.mux.Handle(config.MetricsPath, m.Handler())
	}

	h.root = logging.RequestID(h.accessLog(h.mux))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

// SetForwarder replaces the forwarder used for subsequent requests.
func (h *Handler) SetForwarder(f *alerts.Forwarder) {
	h.forwarder.Store(f)
}

// --- route handlers ---------------------------------------------------------

// alert handles POST {path}: parse, render, forward, and report the outcome.
func (h *Handler) alert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		textResp(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.WarnContext(r.Context(), "api: body too large", "limit", tooLarge.Limit)
			h.metrics.Request(metrics.OutcomeTooLarge)
			textResp(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		slog.WarnContext(r.Context(), "api: read body", "err", err)
		h.metrics.Request(metrics.OutcomeInvalidPayload)
		textResp(w, http.StatusBadRequest, msgUnreadable)
		return
	}

	res := h.forwarder.Load().Handle(r.Context(), body)
	h.metrics.Request(res.Outcome)
	textResp(w, res.Status, res.Body)
}

// health returns GET /healthz. It never touches the webhook.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		jsonErr(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// --- middleware -------------------------------------------------------------

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// accessLog writes one line per request once the response is complete.
func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.InfoContext(r.Context(), "http: request",
			logging.FieldMethod, r.Method,
			logging.FieldPath, r.URL.Path,
			logging.FieldStatus, rec.status,
			logging.FieldDuration, time.Since(start).Milliseconds(),
		)
	})
}

// --- helpers ----------------------------------------------------------------

func textResp(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	io.WriteString(w, msg) //nolint:errcheck
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
