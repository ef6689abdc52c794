// ABOUTME: Topology calculator deriving leaf/spine counts from a fabric spec
// ABOUTME: Pure and total: always returns a topology, marked invalid when constraints fail

package services

import (
	"fmt"
	"log/slog"

	"github.com/markalston/fabric-planner/backend/models"
)

// TopologyCalculator computes DerivedTopology values
type TopologyCalculator struct {
	profiles ProfileLookup
}

// NewTopologyCalculator creates a calculator over the given profiles
func NewTopologyCalculator(profiles ProfileLookup) *TopologyCalculator {
	return &TopologyCalculator{profiles: profiles}
}

// Compute derives the topology of a spec
func (c *TopologyCalculator) Compute(spec models.FabricSpec) models.DerivedTopology {
	return c.ComputeNormalized(spec.Normalize())
}

// ComputeNormalized derives the topology of an already normalized spec.
// Classes are visited in id order.
func (c *TopologyCalculator) ComputeNormalized(spec models.NormalizedSpec) models.DerivedTopology {
	topo := models.DerivedTopology{
		SpineModelID:     spec.SpineModelID,
		ValidationErrors: []string{},
		Guards:           models.Guards{},
	}

	var errs []string
	var leafPortTotal int

	// Unknown leaf models are reported once each, in class order
	reportedModels := make(map[string]bool)

	for _, class := range spec.Classes() {
		leafPorts := 0
		if p, ok := c.profiles.Lookup(class.LeafModelID); ok {
			leafPorts = p.PortCount
		} else if !reportedModels[class.LeafModelID] {
			reportedModels[class.LeafModelID] = true
			errs = append(errs, fmt.Sprintf("Unknown leaf model: %s", class.LeafModelID))
		}

		ct := models.ClassTopology{
			ClassID:          class.ID,
			Role:             class.Role,
			LeafModelID:      class.LeafModelID,
			LeafPorts:        leafPorts,
			UplinksPerLeaf:   class.UplinksPerLeaf,
			DownlinkCapacity: leafPorts - class.UplinksPerLeaf,
			EndpointPorts:    class.EndpointPorts(),
			MCLAG:            class.MCLAG,
		}
		ct.LeavesNeeded = leavesForClass(class, ct)
		ct.ExplicitCount = class.Count != nil

		topo.Classes = append(topo.Classes, ct)
		topo.LeavesNeeded += ct.LeavesNeeded
		topo.TotalEndpointPorts += ct.EndpointPorts
		topo.TotalUplinkPorts += ct.UplinkPorts()
		leafPortTotal += ct.LeavesNeeded * leafPorts
	}

	spinePorts := 0
	if p, ok := c.profiles.Lookup(spec.SpineModelID); ok {
		spinePorts = p.PortCount
	} else {
		errs = append([]string{fmt.Sprintf("Unknown spine model: %s", spec.SpineModelID)}, errs...)
	}
	topo.SpinePorts = spinePorts
	topo.SpinesNeeded = spinesNeeded(topo.TotalUplinkPorts, spinePorts)

	topo.TotalPorts = leafPortTotal + topo.SpinesNeeded*spinePorts
	topo.UsedPorts = topo.TotalEndpointPorts + 2*topo.TotalUplinkPorts
	if topo.TotalUplinkPorts > 0 {
		topo.OversubscriptionRatio = float64(topo.TotalEndpointPorts) / float64(topo.TotalUplinkPorts)
	}

	if topo.LeavesNeeded <= 0 {
		errs = append(errs, "No leaves required: endpoint demand is zero or leaves have no downlink capacity")
	}
	if topo.SpinesNeeded <= 0 {
		errs = append(errs, "No spines required: there is no uplink demand or the spine model has no ports")
	}
	if topo.OversubscriptionRatio > models.MaxOversubscriptionRatio {
		errs = append(errs, fmt.Sprintf("Oversubscription ratio %.2f exceeds maximum %.1f",
			topo.OversubscriptionRatio, models.MaxOversubscriptionRatio))
	}
	for _, ct := range topo.Classes {
		if ct.LeafPorts > 0 && ct.UplinksPerLeaf > ct.LeafPorts/2 {
			errs = append(errs, fmt.Sprintf("Leaf class %s: uplinksPerLeaf (%d) exceeds half of leaf ports (%d)",
				ct.ClassID, ct.UplinksPerLeaf, ct.LeafPorts))
		}
	}
	if topo.SpinesNeeded > 1 {
		for _, ct := range topo.Classes {
			if ct.UplinksPerLeaf%topo.SpinesNeeded != 0 {
				errs = append(errs, fmt.Sprintf("Leaf class %s: uplinksPerLeaf (%d) is not divisible by spinesNeeded (%d)",
					ct.ClassID, ct.UplinksPerLeaf, topo.SpinesNeeded))
			}
		}
	}

	topo.Guards = evaluateGuards(spec, topo)
	if errs != nil {
		topo.ValidationErrors = errs
	}
	topo.IsValid = len(topo.ValidationErrors) == 0 && len(topo.Guards) == 0

	slog.Debug("Topology computed",
		"fabric", spec.Name,
		"leaves", topo.LeavesNeeded,
		"spines", topo.SpinesNeeded,
		"oversubscription", topo.OversubscriptionRatio,
		"valid", topo.IsValid,
	)
	return topo
}

// leavesForClass honours an explicit count, otherwise ceil(endpoints / downlinks)
func leavesForClass(class models.ResolvedLeafClass, ct models.ClassTopology) int {
	if class.Count != nil {
		return max(*class.Count, 0)
	}
	if ct.DownlinkCapacity <= 0 || ct.EndpointPorts <= 0 {
		return 0
	}
	return ceilDiv(ct.EndpointPorts, ct.DownlinkCapacity)
}

// spinesNeeded is max(1, ceil(uplinks / spinePorts)), or 0 without demand
func spinesNeeded(uplinkPorts, spinePorts int) int {
	if uplinkPorts <= 0 || spinePorts <= 0 {
		return 0
	}
	return max(1, ceilDiv(uplinkPorts, spinePorts))
}

// evaluateGuards applies the ES-LAG and MC-LAG structural checks in class order
func evaluateGuards(spec models.NormalizedSpec, topo models.DerivedTopology) models.Guards {
	guards := models.Guards{}
	for _, class := range spec.Classes() {
		for _, p := range class.Profiles {
			if p.ESLAG && p.NICs < models.RequiredESLAGNICs {
				guards = append(guards, models.ESLAGGuard{
					Profile:      p.Name,
					LeafClass:    class.ID,
					RequiredNICs: models.RequiredESLAGNICs,
					ActualNICs:   p.NICs,
				})
			}
		}

		if !class.MCLAG {
			continue
		}
		ct, _ := topo.Class(class.ID)
		if ct.LeavesNeeded < models.MinMCLAGLeaves || ct.LeavesNeeded%2 != 0 {
			guards = append(guards, models.MCLAGGuard{
				LeafClass: class.ID,
				LeafCount: ct.LeavesNeeded,
			})
		}
	}
	return guards
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
