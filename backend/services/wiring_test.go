// ABOUTME: Tests for the wiring builder and wiring validation
// ABOUTME: Checks device naming, server placement, connection ids and structural findings

package services

import (
	"errors"
	"testing"

	"github.com/markalston/fabric-planner/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_LegacyFabric(t *testing.T) {
	_, _, w := pipeline(t, legacySpec(4, 40))

	require.Len(t, w.Spines, 1)
	require.Len(t, w.Leaves, 1)
	require.Len(t, w.Servers, 40)
	// 4 uplinks plus one endpoint link per server
	require.Len(t, w.Connections, 44)

	assert.Equal(t, "spine-1", w.Spines[0].ID)
	assert.Equal(t, "leaf-1", w.Leaves[0].ID)
	assert.Equal(t, "srv-default-server-1", w.Servers[0].ID)
	assert.Equal(t, models.DefaultLeafClassID, w.Leaves[0].ClassID)

	// Connections are sorted by id, so uplinks come first
	first := w.Connections[0]
	assert.Equal(t, "link-leaf-1-spine-1-1", first.ID)
	assert.Equal(t, models.PortRef{Device: "leaf-1", Port: "E1/41"}, first.From)
	assert.Equal(t, models.PortRef{Device: "spine-1", Port: "E1/1"}, first.To)
	assert.Equal(t, models.ConnectionUplink, first.Type)

	assert.Equal(t, models.WiringMetadata{
		FabricName:      "dc1",
		GeneratedAt:     fixedTime,
		SpineCount:      1,
		LeafCount:       1,
		ServerCount:     40,
		ConnectionCount: 44,
	}, w.Metadata)
	assert.Empty(t, w.Issues)
}

func TestBuild_ServersSkipUplinkPorts(t *testing.T) {
	_, _, w := pipeline(t, legacySpec(4, 40))

	byServer := make(map[string]models.WiringConnection)
	for _, c := range w.Connections {
		if c.Type == models.ConnectionEndpoint {
			byServer[c.From.Device] = c
		}
	}
	require.Len(t, byServer, 40)

	assert.Equal(t, models.PortRef{Device: "leaf-1", Port: "E1/1"}, byServer["srv-default-server-1"].To)
	assert.Equal(t, models.PortRef{Device: "leaf-1", Port: "E1/40"}, byServer["srv-default-server-40"].To)
	assert.Equal(t, "eth1", byServer["srv-default-server-1"].From.Port)
	assert.Equal(t, "link-srv-default-server-1-leaf-1-1", byServer["srv-default-server-1"].ID)
}

func TestBuild_MultiClassNaming(t *testing.T) {
	class := leafClass("compute", 4, 50)
	class.EndpointProfiles[0].Name = "Web-Tier"
	class.EndpointProfiles[0].PortsPerEndpoint = 2

	_, _, w := pipeline(t, classSpec(class))

	// 100 ports over 44 downlinks = 3 leaves
	require.Len(t, w.Leaves, 3)
	assert.Equal(t, "leaf-compute-1", w.Leaves[0].ID)
	assert.Equal(t, "leaf-compute-3", w.Leaves[2].ID)
	assert.Equal(t, "srv-compute-webtier-1", w.Servers[0].ID)
	assert.Equal(t, "Web-Tier", w.Servers[0].Profile)
	assert.Equal(t, 2, w.Servers[0].PortCount)

	// Both ports of a server land on the same leaf and share one sequence per pair
	var ids []string
	for _, c := range w.Connections {
		if c.From.Device == "srv-compute-webtier-1" {
			ids = append(ids, c.ID)
		}
	}
	assert.Equal(t, []string{"link-srv-compute-webtier-1-leaf-compute-1-1", "link-srv-compute-webtier-1-leaf-compute-1-2"}, ids)
}

func TestBuild_UnplacedPortsAreReported(t *testing.T) {
	class := leafClass("compute", 4, 50)
	class.Count = models.Ptr(1)

	_, _, w := pipeline(t, classSpec(class))

	// Every server exists even though only 44 of 50 fit on one leaf
	assert.Len(t, w.Servers, 50)
	assert.Len(t, w.Connections, 4+44)
	assert.Equal(t, []string{"Leaf class compute: 6 endpoint ports could not be placed on 1 leaves"}, w.Issues)
}

func TestBuild_FailedAllocationStillEmitsLeaves(t *testing.T) {
	// 11 leaves x 3 uplinks on 2 spines cannot be allocated evenly
	class := leafClass("compute", 3, 200)
	class.Count = models.Ptr(11)

	_, alloc, w := pipeline(t, classSpec(class))

	require.False(t, alloc.OK())
	assert.Len(t, w.Leaves, 11)
	assert.Len(t, w.Spines, 2)

	v := ValidateWiring(w)
	assert.Contains(t, v.Warnings, "Leaf leaf-compute-1 has no uplink connections")
}

func TestBuild_MissingProfiles(t *testing.T) {
	reg := DefaultRegistry()
	builder := NewWiringBuilder(reg)

	spec := legacySpec(4, 40)
	spec.SpineModelID = "NOPE"
	_, err := builder.Build(spec, models.AllocationResult{})

	require.Error(t, err)
	assert.Equal(t, "Spine profile not found: NOPE", err.Error())
	var pnf *ProfileNotFoundError
	require.True(t, errors.As(err, &pnf))
	assert.Equal(t, "Spine", pnf.Role)
	assert.Equal(t, "NOPE", pnf.ModelID)

	spec = classSpec(leafClass("compute", 4, 40))
	spec.LeafClasses[0].LeafModelID = "GHOST"
	_, err = builder.Build(spec, models.AllocationResult{})
	assert.EqualError(t, err, "Leaf profile not found: GHOST")
}

func TestBuild_DoesNotShareSlicesAcrossCalls(t *testing.T) {
	_, _, first := pipeline(t, legacySpec(4, 40))
	_, _, second := pipeline(t, legacySpec(4, 40))

	first.Servers[0].ID = "changed"
	assert.Equal(t, "srv-default-server-1", second.Servers[0].ID)
}

func TestValidateWiring_CleanBuild(t *testing.T) {
	_, _, w := pipeline(t, classSpec(leafClass("compute", 4, 200), leafClass("storage", 2, 30)))

	v := ValidateWiring(w)

	assert.True(t, v.Valid())
	assert.Empty(t, v.Errors)
	assert.Empty(t, v.Warnings)
}

func testWiring() *models.Wiring {
	return &models.Wiring{
		Spines: []models.WiringDevice{
			{ID: "spine-1", Role: models.DeviceRoleSpine},
			{ID: "spine-2", Role: models.DeviceRoleSpine},
		},
		Leaves: []models.WiringDevice{
			{ID: "leaf-1", Role: models.DeviceRoleLeaf},
		},
		Connections: []models.WiringConnection{
			{ID: "c1", From: models.PortRef{Device: "leaf-1", Port: "E1/41"}, To: models.PortRef{Device: "spine-1", Port: "E1/1"}, Type: models.ConnectionUplink},
			{ID: "c2", From: models.PortRef{Device: "leaf-1", Port: "E1/42"}, To: models.PortRef{Device: "spine-2", Port: "E1/1"}, Type: models.ConnectionUplink},
		},
	}
}

func TestValidateWiring_Findings(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(w *models.Wiring)
		errors   []string
		warnings []string
	}{
		{
			name:   "valid",
			mutate: func(w *models.Wiring) {},
		},
		{
			name: "duplicate device",
			mutate: func(w *models.Wiring) {
				w.Spines = append(w.Spines, models.WiringDevice{ID: "spine-1", Role: models.DeviceRoleSpine})
			},
			errors: []string{"Duplicate device id: spine-1"},
		},
		{
			name: "duplicate connection",
			mutate: func(w *models.Wiring) {
				w.Connections = append(w.Connections, w.Connections[0])
			},
			errors: []string{"Duplicate connection id: c1"},
		},
		{
			name: "port overlap",
			mutate: func(w *models.Wiring) {
				w.Connections[1].From.Port = "E1/41"
			},
			errors: []string{"Port overlap on leaf-1 port E1/41: connections c1 and c2"},
		},
		{
			name: "unknown device",
			mutate: func(w *models.Wiring) {
				w.Connections[1].To.Device = "ghost"
			},
			errors: []string{"Connection c2 references unknown device ghost"},
		},
		{
			name: "leaf without uplinks",
			mutate: func(w *models.Wiring) {
				w.Leaves = append(w.Leaves, models.WiringDevice{ID: "leaf-2", Role: models.DeviceRoleLeaf})
			},
			warnings: []string{"Leaf leaf-2 has no uplink connections"},
		},
		{
			name: "spine imbalance",
			mutate: func(w *models.Wiring) {
				w.Connections = append(w.Connections,
					models.WiringConnection{ID: "c3", From: models.PortRef{Device: "leaf-1", Port: "E1/43"}, To: models.PortRef{Device: "spine-1", Port: "E1/2"}, Type: models.ConnectionUplink},
					models.WiringConnection{ID: "c4", From: models.PortRef{Device: "leaf-1", Port: "E1/44"}, To: models.PortRef{Device: "spine-1", Port: "E1/3"}, Type: models.ConnectionUplink},
				)
			},
			warnings: []string{"Spine utilization imbalance: max 3, min 1 uplinks per spine"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testWiring()
			tt.mutate(w)

			v := ValidateWiring(w)

			assert.ElementsMatch(t, tt.errors, v.Errors)
			assert.ElementsMatch(t, tt.warnings, v.Warnings)
		})
	}
}

func TestValidateWiring_OrderIndependent(t *testing.T) {
	w := testWiring()
	w.Connections[1].From.Port = "E1/41"
	w.Leaves = append(w.Leaves, models.WiringDevice{ID: "leaf-0", Role: models.DeviceRoleLeaf})
	before := ValidateWiring(w)

	w.Connections[0], w.Connections[1] = w.Connections[1], w.Connections[0]
	w.Leaves[0], w.Leaves[1] = w.Leaves[1], w.Leaves[0]
	after := ValidateWiring(w)

	assert.Equal(t, before, after)
}

func TestValidateWiring_Nil(t *testing.T) {
	v := ValidateWiring(nil)

	assert.False(t, v.Valid())
	assert.Equal(t, []string{"Wiring is empty"}, v.Errors)
}
