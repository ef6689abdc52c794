// ABOUTME: Tests for the compile command
// ABOUTME: Verifies in-process compilation, document output, exit codes and watch mode

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/markalston/fabric-planner/backend/services"
	"github.com/markalston/fabric-planner/backend/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileCommand_Summary(t *testing.T) {
	resetFlags(t)
	path := writeSpec(t, "dc1.yaml", validSpecYAML)

	var buf bytes.Buffer
	exitCode := runCompile(context.Background(), &buf, path)

	require.Equal(t, 0, exitCode, buf.String())
	out := buf.String()
	assert.Contains(t, out, "Fabric dc1")
	assert.Contains(t, out, "1 x DS3000")
	assert.Contains(t, out, "10.00:1")
	assert.NotContains(t, out, "BLOCKED")
}

func TestCompileCommand_WritesDocuments(t *testing.T) {
	resetFlags(t)
	compileOutDir = t.TempDir()
	path := writeSpec(t, "dc1.yaml", validSpecYAML)

	var buf bytes.Buffer
	exitCode := runCompile(context.Background(), &buf, path)
	require.Equal(t, 0, exitCode, buf.String())
	assert.Contains(t, buf.String(), "Wrote fabric documents to "+filepath.Join(compileOutDir, "dc1"))

	docs, err := store.New(compileOutDir).Load(context.Background(), "dc1")
	require.NoError(t, err)
	wiring, err := services.ParseDocuments(docs)
	require.NoError(t, err)
	assert.Len(t, wiring.Servers, 40)
	assert.Len(t, wiring.Leaves, 1)
}

func TestCompileCommand_FabricIDOverride(t *testing.T) {
	resetFlags(t)
	compileOutDir = t.TempDir()
	compileFabricID = "dc1-staging"
	path := writeSpec(t, "dc1.yaml", validSpecYAML)

	var buf bytes.Buffer
	require.Equal(t, 0, runCompile(context.Background(), &buf, path), buf.String())

	ids, err := store.New(compileOutDir).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"dc1-staging"}, ids)
}

func TestCompileCommand_BlockingNotWritten(t *testing.T) {
	resetFlags(t)
	compileOutDir = t.TempDir()
	path := writeSpec(t, "dc1.yaml", blockingSpecYAML)

	var buf bytes.Buffer
	exitCode := runCompile(context.Background(), &buf, path)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, buf.String(), "OVERSUBSCRIPTION_RATIO")
	assert.Contains(t, buf.String(), "BLOCKED")

	ids, err := store.New(compileOutDir).List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCompileCommand_JSONOutput(t *testing.T) {
	resetFlags(t)
	jsonOutput = true
	path := writeSpec(t, "dc1.json", `{
		"name": "dc1",
		"spineModelId": "DS3000",
		"leafModelId": "DS2000",
		"uplinksPerLeaf": 4,
		"endpointCount": 40,
		"endpointProfile": {"name": "web", "portsPerEndpoint": 1}
	}`)

	var buf bytes.Buffer
	require.Equal(t, 0, runCompile(context.Background(), &buf, path), buf.String())

	var out compileOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "dc1", out.Fabric)
	assert.False(t, out.Blocking)
	assert.NotEmpty(t, out.Fingerprint)
	assert.Equal(t, 1, out.Topology.LeavesNeeded)
	require.NotNil(t, out.Metadata)
	assert.Equal(t, 40, out.Metadata.ServerCount)
}

func TestCompileCommand_InvalidSpec(t *testing.T) {
	resetFlags(t)
	path := writeSpec(t, "bad.yaml", strings.Replace(validSpecYAML, "name: dc1", "name: ../etc", 1))

	var buf bytes.Buffer
	exitCode := runCompile(context.Background(), &buf, path)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, buf.String(), codeSpec)
}

func TestCompileCommand_UnknownField(t *testing.T) {
	resetFlags(t)
	path := writeSpec(t, "typo.yaml", validSpecYAML+"uplinkPerLeaf: 4\n")

	var buf bytes.Buffer
	exitCode := runCompile(context.Background(), &buf, path)

	assert.Equal(t, 2, exitCode)
	assert.Contains(t, buf.String(), "invalid YAML spec")
}

func TestCompileCommand_MissingFile(t *testing.T) {
	resetFlags(t)

	var buf bytes.Buffer
	exitCode := runCompile(context.Background(), &buf, filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Equal(t, 2, exitCode)
	assert.Contains(t, buf.String(), "failed to read spec")
}

func TestCompileCommand_CatalogOverride(t *testing.T) {
	resetFlags(t)
	catalogPath = writeSpec(t, "catalog.yaml", `switches:
  - model: DS9000
    roles: [spine]
    ports: 128
    fabricPorts: "1-128"
    speeds:
      spine: 800G
`)
	path := writeSpec(t, "dc1.yaml", strings.Replace(validSpecYAML, "spineModelId: DS3000", "spineModelId: DS9000", 1))

	var buf bytes.Buffer
	exitCode := runCompile(context.Background(), &buf, path)

	require.NotEqual(t, 2, exitCode, buf.String())
	assert.Contains(t, buf.String(), "1 x DS9000")
}

// syncBuffer is a bytes.Buffer safe for the watcher goroutine and the test
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchCompile_RecompilesOnChange(t *testing.T) {
	resetFlags(t)
	path := writeSpec(t, "dc1.yaml", validSpecYAML)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out syncBuffer
	done := make(chan int, 1)
	go func() {
		done <- watchCompile(ctx, &out, path)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Watching")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(blockingSpecYAML), 0o644))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "changed, recompiling") &&
			strings.Contains(out.String(), "BLOCKED")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}
