package alerts

import (
	"context"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alertrelay/alertrelay/server/internal/config"
	"github.com/alertrelay/alertrelay/server/internal/metrics"
)

// headerWebhook records the headers of the last request it received.
type headerWebhook struct {
	mu   sync.Mutex
	last http.Header
}

func (h *headerWebhook) Get(key string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last.Get(key)
}

func newHeaderWebhook(t *testing.T) (*headerWebhook, string) {
	t.Helper()
	h := &headerWebhook{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.last = r.Header.Clone()
		h.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return h, srv.URL
}

func forwardWith(t *testing.T, cfg config.WebhookConfig) error {
	t.Helper()
	cfg.URLEnv = testURLEnv
	cfg.Timeout = 2 * time.Second
	f, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f.Forward(context.Background(), mustParse(t, sampleAlert))
}

func TestTransport_APIKey(t *testing.T) {
	last, url := newHeaderWebhook(t)
	t.Setenv(testURLEnv, url)
	t.Setenv("ALERTRELAY_TEST_HOOK_KEY", "k-123")

	err := forwardWith(t, config.WebhookConfig{
		Auth: config.OutboundAuthConfig{Mode: "apikey", Header: "X-Hook-Key", KeyEnv: "ALERTRELAY_TEST_HOOK_KEY"},
	})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if got := last.Get("X-Hook-Key"); got != "k-123" {
		t.Errorf("X-Hook-Key: got %q, want %q", got, "k-123")
	}
}

func TestTransport_Bearer(t *testing.T) {
	last, url := newHeaderWebhook(t)
	t.Setenv(testURLEnv, url)
	t.Setenv("ALERTRELAY_TEST_HOOK_TOKEN", "tok")

	err := forwardWith(t, config.WebhookConfig{
		Auth: config.OutboundAuthConfig{Mode: "bearer", TokenEnv: "ALERTRELAY_TEST_HOOK_TOKEN"},
	})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if got := last.Get("Authorization"); got != "Bearer tok" {
		t.Errorf("Authorization: got %q, want %q", got, "Bearer tok")
	}
}

func TestTransport_Basic(t *testing.T) {
	last, url := newHeaderWebhook(t)
	t.Setenv(testURLEnv, url)
	t.Setenv("ALERTRELAY_TEST_HOOK_PASS", "pw")

	err := forwardWith(t, config.WebhookConfig{
		Auth: config.OutboundAuthConfig{Mode: "basic", Username: "relay", PasswordEnv: "ALERTRELAY_TEST_HOOK_PASS"},
	})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	r := &http.Request{Header: http.Header{"Authorization": {last.Get("Authorization")}}}
	user, pass, ok := r.BasicAuth()
	if !ok {
		t.Fatalf("Authorization is not basic: %q", last.Get("Authorization"))
	}
	if user != "relay" || pass != "pw" {
		t.Errorf("basic auth: got %q/%q, want relay/pw", user, pass)
	}
}

func TestTransport_NoAuth(t *testing.T) {
	last, url := newHeaderWebhook(t)
	t.Setenv(testURLEnv, url)

	if err := forwardWith(t, config.WebhookConfig{}); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if got := last.Get("Authorization"); got != "" {
		t.Errorf("Authorization: got %q, want empty", got)
	}
}

func TestTransport_RedirectNotFollowed(t *testing.T) {
	last, other := newHeaderWebhook(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, other, http.StatusFound)
	}))
	t.Cleanup(srv.Close)
	t.Setenv(testURLEnv, srv.URL)
	t.Setenv("ALERTRELAY_TEST_HOOK_TOKEN", "tok")

	f, err := New(config.WebhookConfig{
		URLEnv:  testURLEnv,
		Timeout: 2 * time.Second,
		Auth:    config.OutboundAuthConfig{Mode: "bearer", TokenEnv: "ALERTRELAY_TEST_HOOK_TOKEN"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = f.Forward(context.Background(), mustParse(t, sampleAlert))
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want *StatusError", err)
	}
	if se.Code != http.StatusFound {
		t.Errorf("code: got %d, want %d", se.Code, http.StatusFound)
	}

	res := f.Handle(context.Background(), []byte(sampleAlert))
	checkResult(t, res, http.StatusBadRequest, metrics.OutcomeRejected)

	last.mu.Lock()
	defer last.mu.Unlock()
	if last.last != nil {
		t.Errorf("redirect target received a request with headers %v", last.last)
	}
}

// --- TLS ---

func TestTransport_TLSUnknownCA(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	t.Cleanup(srv.Close)
	t.Setenv(testURLEnv, srv.URL)

	err := forwardWith(t, config.WebhookConfig{})
	if err == nil {
		t.Fatal("expected certificate error, got nil")
	}
	if errors.Is(err, ErrWebhookStatus) {
		t.Errorf("certificate error reported as status error: %v", err)
	}
}

func TestTransport_TLSInsecureSkipVerify(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	t.Cleanup(srv.Close)
	t.Setenv(testURLEnv, srv.URL)

	err := forwardWith(t, config.WebhookConfig{
		TLS: config.TLSConfig{InsecureSkipVerify: true},
	})
	if err != nil {
		t.Errorf("Forward: %v", err)
	}
}

func TestTransport_TLSCAFile(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	t.Cleanup(srv.Close)
	t.Setenv(testURLEnv, srv.URL)

	ca := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	if err := os.WriteFile(ca, pemBytes, 0o600); err != nil {
		t.Fatal(err)
	}

	err := forwardWith(t, config.WebhookConfig{
		TLS: config.TLSConfig{CAFile: ca},
	})
	if err != nil {
		t.Errorf("Forward: %v", err)
	}
}

func TestNew_BadCAFile(t *testing.T) {
	ca := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(ca, []byte("not a cert"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := New(config.WebhookConfig{TLS: config.TLSConfig{CAFile: ca}})
	if err == nil || !strings.Contains(err.Error(), "no valid certs") {
		t.Errorf("got %v, want error containing %q", err, "no valid certs")
	}

	_, err = New(config.WebhookConfig{TLS: config.TLSConfig{CAFile: filepath.Join(t.TempDir(), "missing.pem")}})
	if err == nil || !strings.Contains(err.Error(), "read ca file") {
		t.Errorf("got %v, want error containing %q", err, "read ca file")
	}
}

func TestNew_MissingClientCert(t *testing.T) {
	_, err := New(config.WebhookConfig{Auth: config.OutboundAuthConfig{
		Mode:     "mtls",
		CertFile: filepath.Join(t.TempDir(), "c.pem"),
		KeyFile:  filepath.Join(t.TempDir(), "k.pem"),
	}})
	if err == nil || !strings.Contains(err.Error(), "load client cert") {
		t.Errorf("got %v, want error containing %q", err, "load client cert")
	}
}
