// ABOUTME: Fabric spec file loading from YAML or JSON
// ABOUTME: Unknown fields are rejected so typos surface instead of silently defaulting

package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/markalston/fabric-planner/backend/models"
	"gopkg.in/yaml.v3"
)

// ReadSpecFile loads a spec, choosing the decoder by file extension
func ReadSpecFile(path string) (models.FabricSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.FabricSpec{}, fmt.Errorf("failed to read spec: %w", err)
	}
	spec, err := DecodeSpec(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return models.FabricSpec{}, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// DecodeSpec decodes a spec document. YAML is a superset of JSON, but JSON
// input gets the stricter JSON decoder when asJSON is set.
func DecodeSpec(data []byte, asJSON bool) (models.FabricSpec, error) {
	var spec models.FabricSpec
	if asJSON {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return models.FabricSpec{}, fmt.Errorf("invalid JSON spec: %w", err)
		}
		return spec, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return models.FabricSpec{}, fmt.Errorf("invalid YAML spec: %w", err)
	}
	return spec, nil
}

// EncodeSpec writes a spec as YAML, or JSON when asJSON is set
func EncodeSpec(spec models.FabricSpec, asJSON bool) ([]byte, error) {
	if asJSON {
		data, err := json.MarshalIndent(spec, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(spec); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
