// ABOUTME: Switch hardware profile model
// ABOUTME: Port counts, role assignability and per-role speed for a switch model

package models

import (
	"fmt"
	"slices"
)

// SwitchRole is a role a switch model may be deployed in
type SwitchRole string

const (
	SwitchRoleSpine  SwitchRole = "spine"
	SwitchRoleLeaf   SwitchRole = "leaf"
	SwitchRoleBorder SwitchRole = "border"
)

// DefaultPortPrefix is used when a profile does not name its ports
const DefaultPortPrefix = "E1/"

// SwitchProfile describes a switch model. EndpointPorts and FabricPorts are
// sorted 1-based port numbers; the two sets may overlap.
type SwitchProfile struct {
	ModelID       string                `json:"modelId"`
	Roles         []SwitchRole          `json:"roles"`
	PortCount     int                   `json:"portCount"`
	PortPrefix    string                `json:"portPrefix,omitempty"`
	EndpointPorts []int                 `json:"endpointPorts"`
	FabricPorts   []int                 `json:"fabricPorts"`
	Speeds        map[SwitchRole]string `json:"speeds,omitempty"`
}

// HasRole reports whether the model may be deployed in the given role
func (p SwitchProfile) HasRole(role SwitchRole) bool {
	return slices.Contains(p.Roles, role)
}

// PortName formats a port number using the profile's prefix
func (p SwitchProfile) PortName(port int) string {
	prefix := p.PortPrefix
	if prefix == "" {
		prefix = DefaultPortPrefix
	}
	return fmt.Sprintf("%s%d", prefix, port)
}
