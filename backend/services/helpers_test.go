// ABOUTME: Shared fixtures for pipeline service tests
// ABOUTME: Builds specs against the built-in catalog and runs the stages in order

package services

import (
	"testing"
	"time"

	"github.com/markalston/fabric-planner/backend/models"
)

// fixedTime is the generation timestamp used by every test wiring
var fixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

// legacySpec is a single-class spec on DS3000 spines and DS2000 leaves
func legacySpec(uplinks, endpoints int) models.FabricSpec {
	return models.FabricSpec{
		Name:           "dc1",
		SpineModelID:   "DS3000",
		LeafModelID:    "DS2000",
		UplinksPerLeaf: models.Ptr(uplinks),
		EndpointCount:  models.Ptr(endpoints),
	}
}

// classSpec wraps leaf classes in a multi-class spec with DS2000 as the default leaf
func classSpec(classes ...models.LeafClass) models.FabricSpec {
	return models.FabricSpec{
		Name:         "dc2",
		SpineModelID: "DS3000",
		LeafModelID:  "DS2000",
		LeafClasses:  classes,
	}
}

// leafClass is a class with one profile of single-port endpoints
func leafClass(id string, uplinks, endpoints int) models.LeafClass {
	return models.LeafClass{
		ID:             id,
		UplinksPerLeaf: uplinks,
		EndpointProfiles: []models.EndpointProfile{
			{Name: "web", PortsPerEndpoint: 1, Count: models.Ptr(endpoints)},
		},
	}
}

// pipeline runs topology, allocation and wiring for a spec
func pipeline(t *testing.T, spec models.FabricSpec) (models.DerivedTopology, models.AllocationResult, *models.Wiring) {
	t.Helper()
	reg := DefaultRegistry()
	ns := spec.Normalize()
	topo := NewTopologyCalculator(reg).ComputeNormalized(ns)
	alloc := NewUplinkAllocator().AllocateSpec(ns, topo, reg)
	w, err := NewWiringBuilder(reg, WithClock(fixedClock)).Build(spec, alloc)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	return topo, alloc, w
}
