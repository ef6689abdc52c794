// ABOUTME: Derived topology produced by the topology calculator
// ABOUTME: Includes per-class sizing and structural guards (ES-LAG, MC-LAG)

package models

import (
	"encoding/json"
	"fmt"
)

// ClassTopology is the sizing of a single leaf class
type ClassTopology struct {
	ClassID          string   `json:"classId"`
	Role             LeafRole `json:"role"`
	LeafModelID      string   `json:"leafModelId"`
	LeafPorts        int      `json:"leafPorts"`
	UplinksPerLeaf   int      `json:"uplinksPerLeaf"`
	DownlinkCapacity int      `json:"downlinkCapacity"` // per leaf
	EndpointPorts    int      `json:"endpointPorts"`
	LeavesNeeded     int      `json:"leavesNeeded"`
	ExplicitCount    bool     `json:"explicitCount"`
	MCLAG            bool     `json:"mcLag"`
}

// UplinkPorts returns the uplink ports the class consumes across all its leaves
func (c ClassTopology) UplinkPorts() int {
	return c.LeavesNeeded * c.UplinksPerLeaf
}

// DerivedTopology is computed fresh from a spec and never mutated afterwards
type DerivedTopology struct {
	LeavesNeeded          int             `json:"leavesNeeded"`
	SpinesNeeded          int             `json:"spinesNeeded"`
	SpineModelID          string          `json:"spineModelId"`
	SpinePorts            int             `json:"spinePorts"`
	TotalPorts            int             `json:"totalPorts"`
	UsedPorts             int             `json:"usedPorts"`
	TotalEndpointPorts    int             `json:"totalEndpointPorts"`
	TotalUplinkPorts      int             `json:"totalUplinkPorts"`
	OversubscriptionRatio float64         `json:"oversubscriptionRatio"`
	IsValid               bool            `json:"isValid"`
	ValidationErrors      []string        `json:"validationErrors"`
	Guards                Guards          `json:"guards"`
	Classes               []ClassTopology `json:"classes"`
}

// Class returns the sizing for the given class id
func (t DerivedTopology) Class(id string) (ClassTopology, bool) {
	for _, c := range t.Classes {
		if c.ClassID == id {
			return c, true
		}
	}
	return ClassTopology{}, false
}

// GuardKind identifies a guard variant
type GuardKind string

const (
	GuardKindESLAG GuardKind = "ES_LAG"
	GuardKindMCLAG GuardKind = "MC_LAG"
)

// Guard is a structurally objectionable configuration. The set of
// implementations is closed: ESLAGGuard and MCLAGGuard.
type Guard interface {
	Kind() GuardKind
	Message() string
	isGuard()
}

// ESLAGGuard flags an ES-LAG endpoint profile with too few NICs
type ESLAGGuard struct {
	Profile      string `json:"profile"`
	LeafClass    string `json:"leafClass"`
	RequiredNICs int    `json:"requiredNics"`
	ActualNICs   int    `json:"actualNics"`
}

func (ESLAGGuard) Kind() GuardKind { return GuardKindESLAG }
func (ESLAGGuard) isGuard()        {}

func (g ESLAGGuard) Message() string {
	return fmt.Sprintf("ES-LAG profile %s in leaf class %s requires %d NICs, has %d",
		g.Profile, g.LeafClass, g.RequiredNICs, g.ActualNICs)
}

func (g ESLAGGuard) MarshalJSON() ([]byte, error) {
	type plain ESLAGGuard
	return json.Marshal(struct {
		GuardType GuardKind `json:"guardType"`
		plain
	}{GuardKindESLAG, plain(g)})
}

// MCLAGGuard flags an MC-LAG leaf class whose leaf count is odd or below two
type MCLAGGuard struct {
	LeafClass string `json:"leafClass"`
	LeafCount int    `json:"leafCount"`
}

func (MCLAGGuard) Kind() GuardKind { return GuardKindMCLAG }
func (MCLAGGuard) isGuard()        {}

func (g MCLAGGuard) Message() string {
	return fmt.Sprintf("MC-LAG leaf class %s needs an even leaf count of at least %d, has %d",
		g.LeafClass, MinMCLAGLeaves, g.LeafCount)
}

func (g MCLAGGuard) MarshalJSON() ([]byte, error) {
	type plain MCLAGGuard
	return json.Marshal(struct {
		GuardType GuardKind `json:"guardType"`
		plain
	}{GuardKindMCLAG, plain(g)})
}

// Guards is a list of guards that round-trips through JSON
type Guards []Guard

// UnmarshalJSON decodes each element into its concrete guard type
func (gs *Guards) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Guards, 0, len(raw))
	for _, item := range raw {
		var head struct {
			GuardType GuardKind `json:"guardType"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			return err
		}

		switch head.GuardType {
		case GuardKindESLAG:
			var g ESLAGGuard
			if err := json.Unmarshal(item, &g); err != nil {
				return err
			}
			out = append(out, g)
		case GuardKindMCLAG:
			var g MCLAGGuard
			if err := json.Unmarshal(item, &g); err != nil {
				return err
			}
			out = append(out, g)
		default:
			return fmt.Errorf("unknown guard type %q", head.GuardType)
		}
	}

	*gs = out
	return nil
}
