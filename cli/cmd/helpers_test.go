// ABOUTME: Shared fixtures for command tests
// ABOUTME: Spec files on disk, flag resets and an in-process backend

package cmd

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/markalston/fabric-planner/backend/config"
	"github.com/markalston/fabric-planner/backend/handlers"
	"github.com/markalston/fabric-planner/backend/store"
)

// validSpecYAML compiles cleanly: one DS2000 leaf, one DS3000 spine, ratio 10
const validSpecYAML = `name: dc1
spineModelId: DS3000
leafModelId: DS2000
uplinksPerLeaf: 4
endpointCount: 40
endpointProfile:
  name: web
  portsPerEndpoint: 1
`

// blockingSpecYAML exceeds the oversubscription limit (100 / 6)
var blockingSpecYAML = strings.Replace(
	strings.Replace(validSpecYAML, "uplinksPerLeaf: 4", "uplinksPerLeaf: 2", 1),
	"endpointCount: 40", "endpointCount: 100", 1)

// writeSpec writes content to a file in a fresh temp dir and returns its path
func writeSpec(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write spec: %v", err)
	}
	return path
}

// resetFlags restores every package-level flag after the test
func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		apiURL = ""
		jsonOutput = false
		catalogPath = ""
		compileOutDir = ""
		compileFabricID = ""
		compileWatch = false
		importCurrent = ""
		importAcceptAll = false
		importRejectAll = false
		importOut = ""
		maxOversubscription = 15
		checkSave = ""
		schemaOut = ""
		getOut = ""
	})
}

// newBackend starts the real API over a temp artifact store and points
// the CLI at it
func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	resetFlags(t)

	cfg := &config.Config{DataDir: t.TempDir()}
	h := handlers.NewHandler(cfg, nil, store.New(cfg.DataDir), nil)
	server := httptest.NewServer(h.NewServeMux(nil))
	t.Cleanup(func() {
		server.Close()
		h.Close()
	})

	apiURL = server.URL
	return server
}
