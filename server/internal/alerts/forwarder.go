package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alertrelay/alertrelay/pkg/types"
	"github.com/alertrelay/alertrelay/server/internal/config"
	"github.com/alertrelay/alertrelay/server/internal/metrics"
)

// Caller-facing response bodies.
const (
	bodyInvalid     = "Invalid JSON payload: "
	bodyForwarded   = "Alert forwarded successfully."
	bodyRejected    = "Failed to forward alert: webhook responded with status %d"
	bodyUnreachable = "Failed to forward alert: webhook unreachable"
)

// DefaultUserAgent is sent on webhook requests unless overridden.
const DefaultUserAgent = "alertrelay"

// Result is the caller-facing outcome of handling one alert.
type Result struct {
	Status int
	Body   string

	// Outcome is the metrics label describing how the request ended.
	Outcome string
}

// Forwarder renders alert payloads and posts them to the configured chat
// webhook. It holds no per-request state and is safe for concurrent use.
type Forwarder struct {
	url       string
	format    string
	client    *http.Client
	userAgent string
	metrics   *metrics.Metrics
}

// Option customises a Forwarder.
type Option func(*Forwarder)

// WithMetrics records delivery latency and rule counts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Forwarder) { f.metrics = m }
}

// WithHTTPClient replaces the default client. The caller owns its timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Forwarder) { f.client = c }
}

// WithUserAgent sets the User-Agent header on webhook requests.
func WithUserAgent(ua string) Option {
	return func(f *Forwarder) { f.userAgent = ua }
}

// New creates a Forwarder from the webhook configuration. The destination
// URL and credentials are resolved from the environment once, here.
func New(cfg config.WebhookConfig, opts ...Option) (*Forwarder, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultWebhookTimeout
	}
	client, err := buildHTTPClient(cfg, timeout)
	if err != nil {
		return nil, fmt.Errorf("webhook client: %w", err)
	}
	f := &Forwarder{
		url:       cfg.URL(),
		format:    cfg.EffectiveFormat(),
		client:    client,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Configured reports whether a destination URL is set.
func (f *Forwarder) Configured() bool {
	return f.url != ""
}

// Handle parses body, forwards the rendered alert, and maps the outcome to
// an HTTP status and plain-text response body.
func (f *Forwarder) Handle(ctx context.Context, body []byte) Result {
	p, err := types.Parse(body)
	if err != nil {
		slog.WarnContext(ctx, "alerts: rejecting payload", "err", err)
		reason := err.Error()
		var pe *types.ParseError
		if errors.As(err, &pe) {
			reason = pe.Err.Error()
		}
		return Result{
			Status:  http.StatusBadRequest,
			Body:    bodyInvalid + reason,
			Outcome: metrics.OutcomeInvalidPayload,
		}
	}

	err = f.Forward(ctx, p)

	var se *StatusError
	switch {
	case err == nil:
		return Result{Status: http.StatusOK, Body: bodyForwarded, Outcome: metrics.OutcomeForwarded}
	case errors.As(err, &se):
		return Result{
			Status:  http.StatusBadRequest,
			Body:    fmt.Sprintf(bodyRejected, se.Code),
			Outcome: metrics.OutcomeRejected,
		}
	default:
		return Result{Status: http.StatusBadGateway, Body: bodyUnreachable, Outcome: metrics.OutcomeWebhookUnreachable}
	}
}

// Forward renders p and posts it to the webhook in a single attempt.
// A non-2xx response is returned as a *StatusError.
func (f *Forwarder) Forward(ctx context.Context, p *types.AlertPayload) error {
	if f.url == "" {
		slog.ErrorContext(ctx, "alerts: webhook delivery skipped", "err", ErrNoWebhookURL)
		return ErrNoWebhookURL
	}

	s := Summarize(p.Record)
	body, err := buildBody(f.format, render(p, s), s, p.Record.Rules)
	if err != nil {
		return fmt.Errorf("encode webhook body: %w", err)
	}
	f.metrics.Rules(len(p.Record.Rules))

	start := time.Now()
	err = f.post(ctx, f.url, body)
	elapsed := time.Since(start)

	var se *StatusError
	switch {
	case err == nil:
		f.metrics.Delivery(metrics.DeliveryOK, elapsed)
		slog.DebugContext(ctx, "alerts: webhook delivered",
			"format", f.format,
			"rules", len(s.Rules),
			"elapsed", elapsed,
		)
	case errors.As(err, &se):
		f.metrics.Delivery(metrics.DeliveryRejected, elapsed)
		slog.WarnContext(ctx, "alerts: webhook rejected alert",
			"format", f.format,
			"status", se.Code,
		)
	default:
		f.metrics.Delivery(metrics.DeliveryUnreachable, elapsed)
		slog.ErrorContext(ctx, "alerts: webhook delivery failed",
			"format", f.format,
			"err", err,
		)
	}
	return err
}
