// ABOUTME: Tests for the schema command
// ABOUTME: Verifies the printed JSON Schema describes the spec fields

package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSchemaCommand_Stdout(t *testing.T) {
	resetFlags(t)

	var buf bytes.Buffer
	if exitCode := runSchema(&buf); exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", exitCode)
	}

	var schema map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &schema); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected properties in schema, got %v", schema)
	}
	for _, field := range []string{"name", "spineModelId", "leafModelId", "leafClasses", "uplinksPerLeaf"} {
		if _, ok := props[field]; !ok {
			t.Errorf("expected property %s in schema", field)
		}
	}
}

func TestSchemaCommand_OutFile(t *testing.T) {
	resetFlags(t)
	schemaOut = filepath.Join(t.TempDir(), "fabric.schema.json")

	var buf bytes.Buffer
	if exitCode := runSchema(&buf); exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", exitCode)
	}
	if !strings.Contains(buf.String(), "Wrote schema to") {
		t.Errorf("expected confirmation, got %s", buf.String())
	}

	data, err := os.ReadFile(schemaOut)
	if err != nil {
		t.Fatalf("schema file not written: %v", err)
	}
	if !json.Valid(data) {
		t.Error("expected schema file to hold valid JSON")
	}
}
