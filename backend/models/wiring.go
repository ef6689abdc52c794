// ABOUTME: Compiled wiring diagram: devices and typed connections
// ABOUTME: Built once per compilation and never mutated after it is returned

package models

import "time"

// DeviceRole is the role of a device in the wiring diagram
type DeviceRole string

const (
	DeviceRoleSpine  DeviceRole = "spine"
	DeviceRoleLeaf   DeviceRole = "leaf"
	DeviceRoleServer DeviceRole = "server"
)

// ConnectionType classifies a wiring connection
type ConnectionType string

const (
	ConnectionUplink   ConnectionType = "uplink"   // leaf to spine
	ConnectionDownlink ConnectionType = "downlink" // switch to non-server device
	ConnectionEndpoint ConnectionType = "endpoint" // server to leaf
)

// PortRef is one end of a connection
type PortRef struct {
	Device string `json:"device" yaml:"device"`
	Port   string `json:"port" yaml:"port"`
}

// WiringDevice is a switch or server in the wiring diagram
type WiringDevice struct {
	ID        string     `json:"id" yaml:"id"`
	Role      DeviceRole `json:"role" yaml:"role"`
	ModelID   string     `json:"modelId,omitempty" yaml:"modelId,omitempty"`
	PortCount int        `json:"portCount" yaml:"portCount"`
	ClassID   string     `json:"classId,omitempty" yaml:"classId,omitempty"`
	Profile   string     `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// WiringConnection links two device ports
type WiringConnection struct {
	ID   string         `json:"id" yaml:"id"`
	From PortRef        `json:"from" yaml:"from"`
	To   PortRef        `json:"to" yaml:"to"`
	Type ConnectionType `json:"type" yaml:"type"`
}

// WiringMetadata is embedded in every serialized document
type WiringMetadata struct {
	FabricName      string    `json:"fabricName" yaml:"fabricName"`
	GeneratedAt     time.Time `json:"generatedAt" yaml:"generatedAt"`
	SpineCount      int       `json:"spineCount" yaml:"spineCount"`
	LeafCount       int       `json:"leafCount" yaml:"leafCount"`
	ServerCount     int       `json:"serverCount" yaml:"serverCount"`
	ConnectionCount int       `json:"connectionCount" yaml:"connectionCount"`
}

// Wiring is the compiled device and connection graph
type Wiring struct {
	Metadata    WiringMetadata     `json:"metadata"`
	Spines      []WiringDevice     `json:"spines"`
	Leaves      []WiringDevice     `json:"leaves"`
	Servers     []WiringDevice     `json:"servers"`
	Connections []WiringConnection `json:"connections"`
	Issues      []string           `json:"issues,omitempty"`
}

// Devices returns spines, leaves and servers in that order
func (w *Wiring) Devices() []WiringDevice {
	all := make([]WiringDevice, 0, len(w.Spines)+len(w.Leaves)+len(w.Servers))
	all = append(all, w.Spines...)
	all = append(all, w.Leaves...)
	all = append(all, w.Servers...)
	return all
}

// WiringValidation is the result of validating a wiring diagram
type WiringValidation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Valid reports whether no errors were found
func (v WiringValidation) Valid() bool {
	return len(v.Errors) == 0
}
