// ABOUTME: Test helpers for e2e tests
// ABOUTME: Builds a configured server from environment variables the way main does

package e2e

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/markalston/fabric-planner/backend/cache"
	"github.com/markalston/fabric-planner/backend/config"
	"github.com/markalston/fabric-planner/backend/handlers"
	"github.com/markalston/fabric-planner/backend/middleware"
	"github.com/markalston/fabric-planner/backend/models"
	"github.com/markalston/fabric-planner/backend/services"
	"github.com/markalston/fabric-planner/backend/store"
)

// newTestServer loads config from env (plus extra vars) and serves the full
// middleware chain. The fabric store lives in a temp dir.
//
// Example:
//
//	srv := newTestServer(t, map[string]string{
//	    "CORS_ALLOWED_ORIGINS": "https://example.com",
//	})
func newTestServer(t *testing.T, extra map[string]string) *httptest.Server {
	t.Helper()

	t.Setenv("FABRIC_DATA_DIR", t.TempDir())
	for key, value := range extra {
		t.Setenv(key, value)
	}
	// Keep a developer's .env out of the test
	t.Chdir(t.TempDir())

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	var limits *middleware.Limits
	if cfg.RateLimitEnabled {
		limits = middleware.NewLimits(cfg.RateLimitWrite, cfg.RateLimitDefault)
	}

	h := handlers.NewHandler(cfg, services.DefaultRegistry(), store.New(cfg.DataDir),
		cache.New[*models.CompileResult](time.Duration(cfg.CacheTTL)*time.Second))
	srv := httptest.NewServer(h.NewServeMux(limits))
	t.Cleanup(func() {
		srv.Close()
		h.Close()
	})
	return srv
}

// specJSON is a small non-blocking legacy spec
const specJSON = `{
	"name": "edge-1",
	"spineModelId": "DS3000",
	"leafModelId": "DS2000",
	"uplinksPerLeaf": 4,
	"endpointCount": 80,
	"endpointProfile": {"name": "compute", "portsPerEndpoint": 1}
}`
