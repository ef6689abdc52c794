// ABOUTME: Uplink allocation results for leaf-to-spine port assignment
// ABOUTME: Shared by legacy single-class and extended multi-class allocation

package models

// UplinkAssignment binds one leaf uplink port to a spine port
type UplinkAssignment struct {
	Uplink     int `json:"uplink"` // k-th uplink of the leaf, 0-based
	LeafPort   int `json:"leafPort"`
	SpineIndex int `json:"spineIndex"`
	SpinePort  int `json:"spinePort"`
}

// LeafUplinkMap holds every uplink assignment of one leaf
type LeafUplinkMap struct {
	LeafIndex      int                `json:"leafIndex"`      // across the whole fabric
	ClassID        string             `json:"classId"`
	ClassLeafIndex int                `json:"classLeafIndex"` // within the class
	LeafModelID    string             `json:"leafModelId"`
	Uplinks        []UplinkAssignment `json:"uplinks"`
}

// ClassLeafCount records how many leaves a class needs regardless of
// whether their uplinks could be allocated
type ClassLeafCount struct {
	ClassID        string `json:"classId"`
	LeafModelID    string `json:"leafModelId"`
	Leaves         int    `json:"leaves"`
	UplinksPerLeaf int    `json:"uplinksPerLeaf"`
}

// AllocationResult is the allocator output. LeafMaps is empty whenever
// Issues is non-empty.
type AllocationResult struct {
	Extended         bool             `json:"extended"`
	SpineModelID     string           `json:"spineModelId"`
	SpineCount       int              `json:"spineCount"`
	LeafCounts       []ClassLeafCount `json:"leafCounts"`
	LeafMaps         []LeafUplinkMap  `json:"leafMaps"`
	SpineUtilization []int            `json:"spineUtilization"`
	Issues           []string         `json:"issues"`
}

// OK reports whether the allocation succeeded
func (r AllocationResult) OK() bool {
	return len(r.Issues) == 0
}

// LeafMap returns the uplink map for a class leaf, if allocated
func (r AllocationResult) LeafMap(classID string, classLeafIndex int) (LeafUplinkMap, bool) {
	for _, m := range r.LeafMaps {
		if m.ClassID == classID && m.ClassLeafIndex == classLeafIndex {
			return m, true
		}
	}
	return LeafUplinkMap{}, false
}
