// ABOUTME: Tests for the validate command
// ABOUTME: Verifies findings output and exit codes for valid, blocking and broken specs

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/markalston/fabric-planner/backend/models"
)

func TestValidateCommand_Valid(t *testing.T) {
	resetFlags(t)
	path := writeSpec(t, "dc1.yaml", validSpecYAML)

	var buf bytes.Buffer
	exitCode := runValidate(context.Background(), &buf, path)

	if exitCode != 0 {
		t.Errorf("expected exit code 0, got %d:\n%s", exitCode, buf.String())
	}
	if !strings.Contains(buf.String(), "VALID: "+path) {
		t.Errorf("expected VALID summary, got:\n%s", buf.String())
	}
}

func TestValidateCommand_Blocking(t *testing.T) {
	resetFlags(t)
	path := writeSpec(t, "dc1.yaml", blockingSpecYAML)

	var buf bytes.Buffer
	exitCode := runValidate(context.Background(), &buf, path)

	if exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", exitCode)
	}
	if !strings.Contains(buf.String(), models.CodeOversubscriptionRatio) {
		t.Errorf("expected oversubscription finding, got:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "INVALID: ") {
		t.Errorf("expected INVALID summary, got:\n%s", buf.String())
	}
}

func TestValidateCommand_StructuralProblems(t *testing.T) {
	resetFlags(t)
	spec := strings.Replace(validSpecYAML, "spineModelId: DS3000\n", "", 1)
	path := writeSpec(t, "dc1.yaml", spec)

	var buf bytes.Buffer
	exitCode := runValidate(context.Background(), &buf, path)

	if exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", exitCode)
	}
	if !strings.Contains(buf.String(), "spineModelId is required") {
		t.Errorf("expected structural problem, got:\n%s", buf.String())
	}
}

func TestValidateCommand_UnknownModel(t *testing.T) {
	resetFlags(t)
	path := writeSpec(t, "dc1.yaml", strings.Replace(validSpecYAML, "DS3000", "NOPE", 1))

	var buf bytes.Buffer
	exitCode := runValidate(context.Background(), &buf, path)

	if exitCode != 1 {
		t.Errorf("expected exit code 1, got %d:\n%s", exitCode, buf.String())
	}
	if !strings.Contains(buf.String(), "NOPE") {
		t.Errorf("expected unknown model in output, got:\n%s", buf.String())
	}
}

func TestValidateCommand_MissingFile(t *testing.T) {
	resetFlags(t)

	var buf bytes.Buffer
	exitCode := runValidate(context.Background(), &buf, "/nonexistent/spec.yaml")

	if exitCode != 2 {
		t.Errorf("expected exit code 2, got %d", exitCode)
	}
}

func TestValidateCommand_JSONOutput(t *testing.T) {
	resetFlags(t)
	jsonOutput = true
	path := writeSpec(t, "dc1.yaml", blockingSpecYAML)

	var buf bytes.Buffer
	runValidate(context.Background(), &buf, path)

	var parsed map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if parsed["valid"] != false {
		t.Errorf("expected valid false, got %v", parsed["valid"])
	}
	findings, ok := parsed["findings"].([]interface{})
	if !ok || len(findings) == 0 {
		t.Fatalf("expected findings, got %v", parsed["findings"])
	}
	first := findings[0].(map[string]interface{})
	if first["severity"] != "error" {
		t.Errorf("expected errors listed first, got %v", first)
	}
}

func TestFormatValidateHuman_NoFindings(t *testing.T) {
	output := formatValidateHuman("dc1.yaml", nil)
	if output != "VALID: dc1.yaml has 0 warning(s)" {
		t.Errorf("unexpected output: %q", output)
	}
}
