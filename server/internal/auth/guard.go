package auth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/alertrelay/alertrelay/server/internal/config"
	"github.com/alertrelay/alertrelay/server/internal/metrics"
)

// ModeAPIKey enables key checking. Any other mode lets every request through.
const ModeAPIKey = "apikey"

// QueryParam is the query-string parameter accepted as an alternative to the
// key header.
const QueryParam = "code"

type settings struct {
	enabled bool
	header  string
	key     []byte
}

// Guard enforces the static function key on wrapped handlers. Its settings
// can be replaced at runtime with Update.
type Guard struct {
	cur     atomic.Pointer[settings]
	metrics *metrics.Metrics
}

// NewGuard returns a Guard configured from cfg. m may be nil.
func NewGuard(cfg config.AuthConfig, m *metrics.Metrics) *Guard {
	g := &Guard{metrics: m}
	g.Update(cfg)
	return g
}

// Update swaps in new settings. Requests already past the check are unaffected.
//
// If mode != "apikey" or the resolved key is empty, all requests pass.
func (g *Guard) Update(cfg config.AuthConfig) {
	key := cfg.Key()
	g.cur.Store(&settings{
		enabled: cfg.Mode == ModeAPIKey && key != "",
		header:  cfg.EffectiveHeader(),
		key:     []byte(key),
	})
}

// Enabled reports whether requests are currently checked.
func (g *Guard) Enabled() bool {
	return g.cur.Load().enabled
}

// Allow reports whether r carries the expected key, either in the configured
// header or in the "code" query parameter.
func (g *Guard) Allow(r *http.Request) bool {
	s := g.cur.Load()
	if !s.enabled {
		return true
	}
	got := r.Header.Get(s.header)
	if got == "" {
		got = r.URL.Query().Get(QueryParam)
	}
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), s.key) == 1
}

// Middleware rejects requests without a valid key with 401 "unauthorized".
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Allow(r) {
			slog.WarnContext(r.Context(), "auth: rejected request",
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
			)
			g.metrics.Request(metrics.OutcomeUnauthorized)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
