// ABOUTME: Uplink allocator assigning leaf uplink ports to spine ports
// ABOUTME: Fails softly with issue strings instead of producing partial assignments

package services

import (
	"fmt"
	"log/slog"

	"github.com/markalston/fabric-planner/backend/models"
)

// UplinkAllocator distributes leaf uplinks round-robin across spines
type UplinkAllocator struct{}

// NewUplinkAllocator creates a new allocator
func NewUplinkAllocator() *UplinkAllocator {
	return &UplinkAllocator{}
}

// Allocate assigns uplinks for a single leaf class (legacy mode).
// Leaf i's k-th uplink goes to spine k mod spines, on the next free port of
// that spine.
func (a *UplinkAllocator) Allocate(leaves, spines, uplinksPerLeaf int, leafProfile, spineProfile models.SwitchProfile) models.AllocationResult {
	result := newAllocationResult(false, spineProfile.ModelID, spines)
	result.LeafCounts = []models.ClassLeafCount{{
		ClassID:        models.DefaultLeafClassID,
		LeafModelID:    leafProfile.ModelID,
		Leaves:         leaves,
		UplinksPerLeaf: uplinksPerLeaf,
	}}

	if leaves <= 0 {
		return result
	}

	result.Issues = append(result.Issues, classIssues(leafProfile, uplinksPerLeaf, spines)...)
	if issue := capacityIssue(leaves*uplinksPerLeaf, spines, spineProfile); issue != "" {
		result.Issues = append(result.Issues, issue)
	}
	if !result.OK() {
		slog.Debug("Uplink allocation failed", "issues", result.Issues)
		return result
	}

	cursors := make([]int, spines)
	for i := 0; i < leaves; i++ {
		result.LeafMaps = append(result.LeafMaps, assignLeaf(i, models.DefaultLeafClassID, i, uplinksPerLeaf, leafProfile, spineProfile, cursors))
	}
	copy(result.SpineUtilization, cursors)
	return result
}

// AllocateClasses assigns uplinks for every leaf class of a derived topology
// (extended mode). Classes are processed in id order and share the per-spine
// port cursors, so ports on a spine are handed out class by class, leaf by
// leaf, uplink by uplink.
func (a *UplinkAllocator) AllocateClasses(topo models.DerivedTopology, profiles ProfileLookup) models.AllocationResult {
	spineProfile, _ := profiles.Lookup(topo.SpineModelID)
	spines := topo.SpinesNeeded
	result := newAllocationResult(true, topo.SpineModelID, spines)

	leafProfiles := make(map[string]models.SwitchProfile, len(topo.Classes))
	totalLeaves, totalUplinks := 0, 0
	for _, ct := range topo.Classes {
		result.LeafCounts = append(result.LeafCounts, models.ClassLeafCount{
			ClassID:        ct.ClassID,
			LeafModelID:    ct.LeafModelID,
			Leaves:         ct.LeavesNeeded,
			UplinksPerLeaf: ct.UplinksPerLeaf,
		})
		totalLeaves += ct.LeavesNeeded
		totalUplinks += ct.UplinkPorts()

		if ct.LeavesNeeded <= 0 {
			continue
		}
		leafProfile, ok := profiles.Lookup(ct.LeafModelID)
		if !ok {
			result.Issues = append(result.Issues, fmt.Sprintf("Leaf class %s: unknown leaf model %s", ct.ClassID, ct.LeafModelID))
			continue
		}
		leafProfiles[ct.ClassID] = leafProfile
		for _, issue := range classIssues(leafProfile, ct.UplinksPerLeaf, spines) {
			result.Issues = append(result.Issues, fmt.Sprintf("Leaf class %s: %s", ct.ClassID, issue))
		}
	}

	if totalLeaves <= 0 {
		result.Issues = nil
		return result
	}
	if issue := capacityIssue(totalUplinks, spines, spineProfile); issue != "" {
		result.Issues = append(result.Issues, issue)
	}
	if !result.OK() {
		slog.Debug("Uplink allocation failed", "issues", result.Issues)
		return result
	}

	cursors := make([]int, spines)
	leafIndex := 0
	for _, ct := range topo.Classes {
		for i := 0; i < ct.LeavesNeeded; i++ {
			result.LeafMaps = append(result.LeafMaps, assignLeaf(leafIndex, ct.ClassID, i, ct.UplinksPerLeaf, leafProfiles[ct.ClassID], spineProfile, cursors))
			leafIndex++
		}
	}
	copy(result.SpineUtilization, cursors)
	return result
}

// AllocateSpec dispatches on the spec mode: legacy specs use the
// single-class allocator, multi-class specs the extended one.
func (a *UplinkAllocator) AllocateSpec(spec models.NormalizedSpec, topo models.DerivedTopology, profiles ProfileLookup) models.AllocationResult {
	switch mode := spec.Mode.(type) {
	case models.MultiClassMode:
		return a.AllocateClasses(topo, profiles)
	case models.LegacyMode:
		spineProfile, _ := profiles.Lookup(spec.SpineModelID)
		leafProfile, ok := profiles.Lookup(mode.Class.LeafModelID)
		if !ok {
			result := newAllocationResult(false, spec.SpineModelID, topo.SpinesNeeded)
			result.LeafCounts = []models.ClassLeafCount{{
				ClassID:        mode.Class.ID,
				LeafModelID:    mode.Class.LeafModelID,
				Leaves:         topo.LeavesNeeded,
				UplinksPerLeaf: mode.Class.UplinksPerLeaf,
			}}
			if topo.LeavesNeeded > 0 {
				result.Issues = append(result.Issues, fmt.Sprintf("Unknown leaf model %s", mode.Class.LeafModelID))
			}
			return result
		}
		return a.Allocate(topo.LeavesNeeded, topo.SpinesNeeded, mode.Class.UplinksPerLeaf, leafProfile, spineProfile)
	default:
		panic(fmt.Sprintf("unhandled spec mode %T", mode))
	}
}

func newAllocationResult(extended bool, spineModel string, spines int) models.AllocationResult {
	return models.AllocationResult{
		Extended:         extended,
		SpineModelID:     spineModel,
		SpineCount:       spines,
		LeafMaps:         []models.LeafUplinkMap{},
		SpineUtilization: make([]int, max(spines, 0)),
		Issues:           []string{},
	}
}

// classIssues checks per-leaf port demand and spine divisibility
func classIssues(leafProfile models.SwitchProfile, uplinksPerLeaf, spines int) []string {
	var issues []string
	if spines <= 0 {
		return append(issues, "No spines available for uplink allocation")
	}
	if uplinksPerLeaf > len(leafProfile.FabricPorts) {
		issues = append(issues, fmt.Sprintf("Leaf requires %d uplinks but model %s has only %d fabric ports",
			uplinksPerLeaf, leafProfile.ModelID, len(leafProfile.FabricPorts)))
	}
	if uplinksPerLeaf%spines != 0 {
		issues = append(issues, fmt.Sprintf("uplinksPerLeaf %d is not divisible by spine count %d", uplinksPerLeaf, spines))
	}
	return issues
}

// capacityIssue checks aggregate demand against all spine fabric ports
func capacityIssue(demand, spines int, spineProfile models.SwitchProfile) string {
	if spines <= 0 {
		return ""
	}
	capacity := spines * len(spineProfile.FabricPorts)
	if demand > capacity {
		return fmt.Sprintf("Aggregate uplink demand %d exceeds spine fabric capacity %d", demand, capacity)
	}
	return ""
}

func assignLeaf(leafIndex int, classID string, classLeafIndex, uplinks int, leafProfile, spineProfile models.SwitchProfile, cursors []int) models.LeafUplinkMap {
	m := models.LeafUplinkMap{
		LeafIndex:      leafIndex,
		ClassID:        classID,
		ClassLeafIndex: classLeafIndex,
		LeafModelID:    leafProfile.ModelID,
		Uplinks:        make([]models.UplinkAssignment, 0, uplinks),
	}
	for k := 0; k < uplinks; k++ {
		spine := k % len(cursors)
		m.Uplinks = append(m.Uplinks, models.UplinkAssignment{
			Uplink:     k,
			LeafPort:   leafProfile.FabricPorts[k],
			SpineIndex: spine,
			SpinePort:  spineProfile.FabricPorts[cursors[spine]],
		})
		cursors[spine]++
	}
	return m
}
