package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alertrelay/alertrelay/server/internal/config"
	"github.com/alertrelay/alertrelay/server/internal/metrics"
)

const testKeyEnv = "ALERTRELAY_TEST_FUNCTION_KEY"

// okHandler answers 200 "ok".
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func apikeyConfig(t *testing.T, key string) config.AuthConfig {
	t.Helper()
	t.Setenv(testKeyEnv, key)
	return config.AuthConfig{Mode: ModeAPIKey, KeyEnv: testKeyEnv}
}

func serve(g *Guard, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	g.Middleware(okHandler).ServeHTTP(rr, r)
	return rr
}

func TestGuard_ModeNone_PassesThrough(t *testing.T) {
	t.Setenv(testKeyEnv, "secret")
	g := NewGuard(config.AuthConfig{Mode: "none", KeyEnv: testKeyEnv}, nil)

	rr := serve(g, httptest.NewRequest(http.MethodPost, "/api/v1/alerts", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
	if g.Enabled() {
		t.Error("Enabled: got true, want false")
	}
}

func TestGuard_EmptyKey_PassesThrough(t *testing.T) {
	g := NewGuard(apikeyConfig(t, ""), nil)

	rr := serve(g, httptest.NewRequest(http.MethodPost, "/", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

func TestGuard_CorrectHeader_Passes(t *testing.T) {
	g := NewGuard(apikeyConfig(t, "supersecret"), nil)

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("X-Functions-Key", "supersecret")
	rr := serve(g, r)
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("body: got %q, want ok", rr.Body.String())
	}
}

func TestGuard_CodeQuery_Passes(t *testing.T) {
	g := NewGuard(apikeyConfig(t, "supersecret"), nil)

	rr := serve(g, httptest.NewRequest(http.MethodPost, "/?code=supersecret", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

func TestGuard_CustomHeader(t *testing.T) {
	cfg := apikeyConfig(t, "k")
	cfg.Header = "x-api-key"
	g := NewGuard(cfg, nil)

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("X-Functions-Key", "k")
	if rr := serve(g, r); rr.Code != http.StatusUnauthorized {
		t.Errorf("default header: got %d, want 401", rr.Code)
	}

	r = httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("x-api-key", "k")
	if rr := serve(g, r); rr.Code != http.StatusOK {
		t.Errorf("custom header: got %d, want 200", rr.Code)
	}
}

func TestGuard_WrongKey_Unauthorized(t *testing.T) {
	m := metrics.New()
	g := NewGuard(apikeyConfig(t, "supersecret"), m)

	r := httptest.NewRequest(http.MethodPost, "/?code=nope", nil)
	r.Header.Set("X-Functions-Key", "wrong")
	rr := serve(g, r)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rr.Code)
	}
	if rr.Body.String() != "unauthorized" {
		t.Errorf("body: got %q, want unauthorized", rr.Body.String())
	}

	mfs, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var found bool
	for _, mf := range mfs {
		if mf.GetName() != "alertrelay_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if metric.GetLabel()[0].GetValue() == metrics.OutcomeUnauthorized && metric.GetCounter().GetValue() == 1 {
				found = true
			}
		}
	}
	if !found {
		t.Error("unauthorized outcome not counted")
	}
}

func TestGuard_MissingKey_Unauthorized(t *testing.T) {
	g := NewGuard(apikeyConfig(t, "supersecret"), nil)

	rr := serve(g, httptest.NewRequest(http.MethodPost, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

func TestGuard_PrefixOfKey_Unauthorized(t *testing.T) {
	g := NewGuard(apikeyConfig(t, "supersecret"), nil)

	rr := serve(g, httptest.NewRequest(http.MethodPost, "/?code=super", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

func TestGuard_Update(t *testing.T) {
	g := NewGuard(apikeyConfig(t, "old"), nil)

	t.Setenv(testKeyEnv, "new")
	g.Update(config.AuthConfig{Mode: ModeAPIKey, KeyEnv: testKeyEnv})

	if rr := serve(g, httptest.NewRequest(http.MethodPost, "/?code=old", nil)); rr.Code != http.StatusUnauthorized {
		t.Errorf("old key: got %d, want 401", rr.Code)
	}
	if rr := serve(g, httptest.NewRequest(http.MethodPost, "/?code=new", nil)); rr.Code != http.StatusOK {
		t.Errorf("new key: got %d, want 200", rr.Code)
	}

	g.Update(config.AuthConfig{Mode: "none"})
	if rr := serve(g, httptest.NewRequest(http.MethodPost, "/", nil)); rr.Code != http.StatusOK {
		t.Errorf("disabled: got %d, want 200", rr.Code)
	}
}
