// ABOUTME: Switch profile registry threaded through every pipeline call
// ABOUTME: Ships a built-in catalog and loads overrides from YAML with port ranges

package services

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/markalston/fabric-planner/backend/models"
	"gopkg.in/yaml.v3"
)

// ProfileLookup resolves a model id to its switch profile
type ProfileLookup interface {
	Lookup(modelID string) (models.SwitchProfile, bool)
}

// SwitchProfileRegistry is an immutable set of switch profiles keyed by model id
type SwitchProfileRegistry struct {
	profiles map[string]models.SwitchProfile
}

// NewSwitchProfileRegistry builds a registry from the given profiles.
// Later profiles replace earlier ones with the same model id.
func NewSwitchProfileRegistry(profiles ...models.SwitchProfile) *SwitchProfileRegistry {
	r := &SwitchProfileRegistry{profiles: make(map[string]models.SwitchProfile, len(profiles))}
	for _, p := range profiles {
		r.profiles[p.ModelID] = p
	}
	return r
}

// DefaultRegistry returns the built-in switch catalog
func DefaultRegistry() *SwitchProfileRegistry {
	return NewSwitchProfileRegistry(
		models.SwitchProfile{
			ModelID:       "DS1000",
			Roles:         []models.SwitchRole{models.SwitchRoleLeaf},
			PortCount:     24,
			EndpointPorts: portRange(1, 24),
			FabricPorts:   portRange(21, 24),
			Speeds:        map[models.SwitchRole]string{models.SwitchRoleLeaf: "10G"},
		},
		models.SwitchProfile{
			ModelID:       "DS2000",
			Roles:         []models.SwitchRole{models.SwitchRoleLeaf, models.SwitchRoleBorder},
			PortCount:     48,
			EndpointPorts: portRange(1, 48),
			FabricPorts:   portRange(41, 48),
			Speeds: map[models.SwitchRole]string{
				models.SwitchRoleLeaf:   "25G",
				models.SwitchRoleBorder: "25G",
			},
		},
		models.SwitchProfile{
			ModelID:       "DS3000",
			Roles:         []models.SwitchRole{models.SwitchRoleSpine, models.SwitchRoleLeaf},
			PortCount:     32,
			EndpointPorts: portRange(1, 32),
			FabricPorts:   portRange(1, 32),
			Speeds: map[models.SwitchRole]string{
				models.SwitchRoleSpine: "100G",
				models.SwitchRoleLeaf:  "100G",
			},
		},
		models.SwitchProfile{
			ModelID:     "DS4000",
			Roles:       []models.SwitchRole{models.SwitchRoleSpine},
			PortCount:   64,
			FabricPorts: portRange(1, 64),
			Speeds:      map[models.SwitchRole]string{models.SwitchRoleSpine: "400G"},
		},
	)
}

// Lookup returns the profile for a model id. Unknown ids return false.
func (r *SwitchProfileRegistry) Lookup(modelID string) (models.SwitchProfile, bool) {
	if r == nil {
		return models.SwitchProfile{}, false
	}
	p, ok := r.profiles[modelID]
	return p, ok
}

// Profiles returns all profiles sorted by model id
func (r *SwitchProfileRegistry) Profiles() []models.SwitchProfile {
	out := make([]models.SwitchProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelID < out[j].ModelID })
	return out
}

// Len returns the number of registered models
func (r *SwitchProfileRegistry) Len() int {
	return len(r.profiles)
}

// Merge returns a new registry with other's profiles layered over r's
func (r *SwitchProfileRegistry) Merge(other *SwitchProfileRegistry) *SwitchProfileRegistry {
	merged := NewSwitchProfileRegistry(r.Profiles()...)
	for id, p := range other.profiles {
		merged.profiles[id] = p
	}
	return merged
}

// catalogFile is the on-disk YAML shape of a switch catalog
type catalogFile struct {
	Switches []catalogEntry `yaml:"switches"`
}

type catalogEntry struct {
	Model         string            `yaml:"model"`
	Roles         []string          `yaml:"roles"`
	Ports         int               `yaml:"ports"`
	PortPrefix    string            `yaml:"portPrefix"`
	EndpointPorts string            `yaml:"endpointPorts"` // e.g. "1-40,45"
	FabricPorts   string            `yaml:"fabricPorts"`
	Speeds        map[string]string `yaml:"speeds"`
}

// LoadRegistry reads a YAML switch catalog:
//
//	switches:
//	  - model: DS2000
//	    roles: [leaf]
//	    ports: 48
//	    endpointPorts: "1-48"
//	    fabricPorts: "41-48"
func LoadRegistry(r io.Reader) (*SwitchProfileRegistry, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode switch catalog: %w", err)
	}

	profiles := make([]models.SwitchProfile, 0, len(file.Switches))
	for i, e := range file.Switches {
		p, err := e.toProfile()
		if err != nil {
			return nil, fmt.Errorf("switch catalog entry %d: %w", i, err)
		}
		profiles = append(profiles, p)
	}
	return NewSwitchProfileRegistry(profiles...), nil
}

func (e catalogEntry) toProfile() (models.SwitchProfile, error) {
	if e.Model == "" {
		return models.SwitchProfile{}, fmt.Errorf("model is required")
	}
	if e.Ports <= 0 {
		return models.SwitchProfile{}, fmt.Errorf("model %s: ports must be positive", e.Model)
	}

	endpoint, err := ParsePortRanges(e.EndpointPorts, e.Ports)
	if err != nil {
		return models.SwitchProfile{}, fmt.Errorf("model %s endpointPorts: %w", e.Model, err)
	}
	fabric, err := ParsePortRanges(e.FabricPorts, e.Ports)
	if err != nil {
		return models.SwitchProfile{}, fmt.Errorf("model %s fabricPorts: %w", e.Model, err)
	}

	p := models.SwitchProfile{
		ModelID:       e.Model,
		PortCount:     e.Ports,
		PortPrefix:    e.PortPrefix,
		EndpointPorts: endpoint,
		FabricPorts:   fabric,
	}
	for _, role := range e.Roles {
		p.Roles = append(p.Roles, models.SwitchRole(strings.ToLower(role)))
	}
	if len(e.Speeds) > 0 {
		p.Speeds = make(map[models.SwitchRole]string, len(e.Speeds))
		for role, speed := range e.Speeds {
			p.Speeds[models.SwitchRole(strings.ToLower(role))] = speed
		}
	}
	return p, nil
}

// ParsePortRanges parses "1-40,45,47-48" into sorted unique port numbers
// bounded by maxPort. An empty string yields no ports.
func ParsePortRanges(spec string, maxPort int) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		lo, hi := part, part
		if idx := strings.Index(part, "-"); idx >= 0 {
			lo, hi = part[:idx], part[idx+1:]
		}
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", part)
		}
		end, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", part)
		}
		if start < 1 || end > maxPort || start > end {
			return nil, fmt.Errorf("port range %q outside 1-%d", part, maxPort)
		}
		for p := start; p <= end; p++ {
			seen[p] = true
		}
	}

	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports, nil
}

func portRange(start, end int) []int {
	ports := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		ports = append(ports, p)
	}
	return ports
}
