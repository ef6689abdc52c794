// ABOUTME: Fabric specification input model and its normalized form
// ABOUTME: Applies named defaults once and exposes multi-class vs legacy mode as a closed variant

package models

import "sort"

// LeafRole is the role a leaf class plays in the fabric
type LeafRole string

const (
	LeafRoleStandard LeafRole = "standard"
	LeafRoleBorder   LeafRole = "border"
)

// Defaults applied during normalization. Nothing downstream of Normalize
// should fall back to its own defaults.
const (
	DefaultNICs             = 1
	DefaultPortsPerEndpoint = 1
	DefaultLeafClassID      = "default"
	DefaultLeafRole         = LeafRoleStandard
	DefaultProfileName      = "server"
)

// Structural limits shared by the calculator, rules engine and import resolver
const (
	RequiredESLAGNICs        = 2
	MinMCLAGLeaves           = 2
	MaxOversubscriptionRatio = 15.0
)

// EndpointProfile describes a group of identical endpoints attached to a leaf class
type EndpointProfile struct {
	Name             string `json:"name" yaml:"name"`
	PortsPerEndpoint int    `json:"portsPerEndpoint" yaml:"portsPerEndpoint"`
	Count            *int   `json:"count,omitempty" yaml:"count,omitempty"`
	ESLAG            bool   `json:"esLag,omitempty" yaml:"esLag,omitempty"`
	NICs             *int   `json:"nics,omitempty" yaml:"nics,omitempty"`
}

// LeafClass is a group of identically configured leaves
type LeafClass struct {
	ID               string            `json:"id" yaml:"id"`
	Name             string            `json:"name,omitempty" yaml:"name,omitempty"`
	Role             LeafRole          `json:"role,omitempty" yaml:"role,omitempty" jsonschema:"enum=standard,enum=border"`
	LeafModelID      string            `json:"leafModelId,omitempty" yaml:"leafModelId,omitempty"`
	UplinksPerLeaf   int               `json:"uplinksPerLeaf" yaml:"uplinksPerLeaf"`
	EndpointProfiles []EndpointProfile `json:"endpointProfiles" yaml:"endpointProfiles"`
	Count            *int              `json:"count,omitempty" yaml:"count,omitempty"`
	MCLAG            bool              `json:"mcLag,omitempty" yaml:"mcLag,omitempty"`
}

// FabricSpec is the declarative fabric description submitted to the pipeline.
// LeafClasses takes precedence over the legacy flat fields when non-empty.
type FabricSpec struct {
	Name         string      `json:"name" yaml:"name"`
	SpineModelID string      `json:"spineModelId" yaml:"spineModelId"`
	LeafModelID  string      `json:"leafModelId" yaml:"leafModelId"`
	LeafClasses  []LeafClass `json:"leafClasses,omitempty" yaml:"leafClasses,omitempty"`

	// Legacy single-class fields
	UplinksPerLeaf  *int             `json:"uplinksPerLeaf,omitempty" yaml:"uplinksPerLeaf,omitempty"`
	EndpointProfile *EndpointProfile `json:"endpointProfile,omitempty" yaml:"endpointProfile,omitempty"`
	EndpointCount   *int             `json:"endpointCount,omitempty" yaml:"endpointCount,omitempty"`
}

// IsMultiClass reports whether the spec uses leaf classes
func (s FabricSpec) IsMultiClass() bool {
	return len(s.LeafClasses) > 0
}

// ResolvedProfile is an EndpointProfile with every default applied
type ResolvedProfile struct {
	Name             string `json:"name"`
	PortsPerEndpoint int    `json:"portsPerEndpoint"`
	Count            int    `json:"count"`
	ESLAG            bool   `json:"esLag"`
	NICs             int    `json:"nics"`
}

// Ports returns the number of leaf downlink ports this profile consumes
func (p ResolvedProfile) Ports() int {
	return p.Count * p.PortsPerEndpoint
}

// ResolvedLeafClass is a LeafClass with every default applied
type ResolvedLeafClass struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Role           LeafRole          `json:"role"`
	LeafModelID    string            `json:"leafModelId"`
	UplinksPerLeaf int               `json:"uplinksPerLeaf"`
	Profiles       []ResolvedProfile `json:"profiles"`
	Count          *int              `json:"count,omitempty"` // explicit leaf count, nil = computed
	MCLAG          bool              `json:"mcLag"`
}

// EndpointPorts returns the total downlink port demand of the class
func (c ResolvedLeafClass) EndpointPorts() int {
	total := 0
	for _, p := range c.Profiles {
		total += p.Ports()
	}
	return total
}

// EndpointCount returns the number of endpoints (servers) in the class
func (c ResolvedLeafClass) EndpointCount() int {
	total := 0
	for _, p := range c.Profiles {
		total += p.Count
	}
	return total
}

// SpecMode is the closed set of spec shapes: MultiClassMode or LegacyMode
type SpecMode interface {
	Classes() []ResolvedLeafClass
	isSpecMode()
}

// MultiClassMode holds leaf classes sorted by id
type MultiClassMode struct {
	LeafClasses []ResolvedLeafClass
}

func (m MultiClassMode) Classes() []ResolvedLeafClass { return m.LeafClasses }
func (MultiClassMode) isSpecMode()                     {}

// LegacyMode holds the single implicit class built from the flat fields
type LegacyMode struct {
	Class ResolvedLeafClass
}

func (m LegacyMode) Classes() []ResolvedLeafClass { return []ResolvedLeafClass{m.Class} }
func (LegacyMode) isSpecMode()                     {}

// NormalizedSpec is the pipeline's view of a FabricSpec
type NormalizedSpec struct {
	Name         string
	SpineModelID string
	LeafModelID  string
	Mode         SpecMode
}

// Classes returns the leaf classes in id order
func (s NormalizedSpec) Classes() []ResolvedLeafClass {
	return s.Mode.Classes()
}

// Normalize resolves the active mode and applies defaults.
// The receiver is not modified.
func (s FabricSpec) Normalize() NormalizedSpec {
	ns := NormalizedSpec{
		Name:         s.Name,
		SpineModelID: s.SpineModelID,
		LeafModelID:  s.LeafModelID,
	}

	if !s.IsMultiClass() {
		ns.Mode = LegacyMode{Class: s.legacyClass()}
		return ns
	}

	classes := make([]ResolvedLeafClass, 0, len(s.LeafClasses))
	for _, lc := range s.LeafClasses {
		classes = append(classes, resolveClass(lc, s.LeafModelID))
	}
	sort.SliceStable(classes, func(i, j int) bool {
		return classes[i].ID < classes[j].ID
	})
	ns.Mode = MultiClassMode{LeafClasses: classes}
	return ns
}

func (s FabricSpec) legacyClass() ResolvedLeafClass {
	profile := EndpointProfile{Name: DefaultProfileName}
	if s.EndpointProfile != nil {
		profile = *s.EndpointProfile
	}
	resolved := resolveProfile(profile)
	if s.EndpointCount != nil {
		resolved.Count = *s.EndpointCount
	}

	uplinks := 0
	if s.UplinksPerLeaf != nil {
		uplinks = *s.UplinksPerLeaf
	}

	return ResolvedLeafClass{
		ID:             DefaultLeafClassID,
		Name:           DefaultLeafClassID,
		Role:           DefaultLeafRole,
		LeafModelID:    s.LeafModelID,
		UplinksPerLeaf: uplinks,
		Profiles:       []ResolvedProfile{resolved},
	}
}

func resolveClass(lc LeafClass, defaultModel string) ResolvedLeafClass {
	rc := ResolvedLeafClass{
		ID:             lc.ID,
		Name:           lc.Name,
		Role:           lc.Role,
		LeafModelID:    lc.LeafModelID,
		UplinksPerLeaf: lc.UplinksPerLeaf,
		MCLAG:          lc.MCLAG,
	}
	if rc.Name == "" {
		rc.Name = lc.ID
	}
	if rc.Role == "" {
		rc.Role = DefaultLeafRole
	}
	if rc.LeafModelID == "" {
		rc.LeafModelID = defaultModel
	}
	if lc.Count != nil {
		count := *lc.Count
		rc.Count = &count
	}
	rc.Profiles = make([]ResolvedProfile, 0, len(lc.EndpointProfiles))
	for _, p := range lc.EndpointProfiles {
		rc.Profiles = append(rc.Profiles, resolveProfile(p))
	}
	return rc
}

func resolveProfile(p EndpointProfile) ResolvedProfile {
	rp := ResolvedProfile{
		Name:             p.Name,
		PortsPerEndpoint: p.PortsPerEndpoint,
		ESLAG:            p.ESLAG,
		NICs:             DefaultNICs,
	}
	if rp.Name == "" {
		rp.Name = DefaultProfileName
	}
	if rp.PortsPerEndpoint <= 0 {
		rp.PortsPerEndpoint = DefaultPortsPerEndpoint
	}
	if p.Count != nil {
		rp.Count = *p.Count
	}
	if p.NICs != nil {
		rp.NICs = *p.NICs
	}
	return rp
}

// Ptr returns a pointer to v, for optional spec fields
func Ptr[T any](v T) *T {
	return &v
}
