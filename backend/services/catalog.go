// ABOUTME: Switch catalog capability consumed by the validation rules engine
// ABOUTME: Answers port and recommended-use lookups without failing on unknown models

package services

import "github.com/markalston/fabric-planner/backend/models"

// PortInfo is the port summary of a switch model
type PortInfo struct {
	Ports int    `json:"ports"`
	Type  string `json:"type"`
}

// Capabilities describes what a model is suited for.
// MaxCapacity is the number of fabric-assignable ports.
type Capabilities struct {
	MaxCapacity     int                 `json:"maxCapacity"`
	RecommendedUses []models.SwitchRole `json:"recommendedUses"`
}

// SwitchCatalog looks up catalog data by model id. Both lookups return
// false for unknown models instead of failing.
type SwitchCatalog interface {
	Ports(modelID string) (PortInfo, bool)
	Capabilities(modelID string) (Capabilities, bool)
}

// RegistryCatalog adapts a profile registry to the SwitchCatalog capability
type RegistryCatalog struct {
	profiles ProfileLookup
}

// NewRegistryCatalog creates a catalog backed by the given profiles
func NewRegistryCatalog(profiles ProfileLookup) *RegistryCatalog {
	return &RegistryCatalog{profiles: profiles}
}

// Ports returns the port count and primary speed of a model
func (c *RegistryCatalog) Ports(modelID string) (PortInfo, bool) {
	p, ok := c.profiles.Lookup(modelID)
	if !ok {
		return PortInfo{}, false
	}

	info := PortInfo{Ports: p.PortCount}
	for _, role := range p.Roles {
		if speed, ok := p.Speeds[role]; ok {
			info.Type = speed
			break
		}
	}
	return info, true
}

// Capabilities returns fabric capacity and recommended roles of a model
func (c *RegistryCatalog) Capabilities(modelID string) (Capabilities, bool) {
	p, ok := c.profiles.Lookup(modelID)
	if !ok {
		return Capabilities{}, false
	}
	uses := make([]models.SwitchRole, len(p.Roles))
	copy(uses, p.Roles)
	return Capabilities{
		MaxCapacity:     len(p.FabricPorts),
		RecommendedUses: uses,
	}, true
}
