// ABOUTME: Wiring builder turning allocation results into a device/connection graph
// ABOUTME: Device and connection ids are deterministic; connections are sorted by id

package services

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/markalston/fabric-planner/backend/models"
)

// ProfileNotFoundError is returned when a spec references a switch model
// that has no registered profile
type ProfileNotFoundError struct {
	Role    string // "Spine" or "Leaf"
	ModelID string
}

func (e *ProfileNotFoundError) Error() string {
	return fmt.Sprintf("%s profile not found: %s", e.Role, e.ModelID)
}

// WiringBuilder compiles allocations into wiring diagrams
type WiringBuilder struct {
	profiles ProfileLookup
	now      func() time.Time
}

// WiringOption configures a WiringBuilder
type WiringOption func(*WiringBuilder)

// WithClock sets the clock used for the generation timestamp
func WithClock(now func() time.Time) WiringOption {
	return func(b *WiringBuilder) {
		b.now = now
	}
}

// NewWiringBuilder creates a builder over the given profiles
func NewWiringBuilder(profiles ProfileLookup, opts ...WiringOption) *WiringBuilder {
	b := &WiringBuilder{
		profiles: profiles,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// builtLeaf tracks a leaf and its free downlink ports during construction
type builtLeaf struct {
	device   models.WiringDevice
	profile  models.SwitchProfile
	downlink []int
}

// Build compiles a wiring diagram. It fails only when the spine model or a
// leaf model has no registered profile.
func (b *WiringBuilder) Build(spec models.FabricSpec, alloc models.AllocationResult) (*models.Wiring, error) {
	ns := spec.Normalize()

	spineProfile, ok := b.profiles.Lookup(ns.SpineModelID)
	if !ok {
		return nil, &ProfileNotFoundError{Role: "Spine", ModelID: ns.SpineModelID}
	}
	leafProfiles := make(map[string]models.SwitchProfile)
	for _, class := range ns.Classes() {
		p, ok := b.profiles.Lookup(class.LeafModelID)
		if !ok {
			return nil, &ProfileNotFoundError{Role: "Leaf", ModelID: class.LeafModelID}
		}
		leafProfiles[class.ID] = p
	}

	w := &models.Wiring{
		Spines:      []models.WiringDevice{},
		Leaves:      []models.WiringDevice{},
		Servers:     []models.WiringDevice{},
		Connections: []models.WiringConnection{},
	}
	seq := make(map[string]int)
	link := func(from, to models.PortRef, kind models.ConnectionType) {
		key := from.Device + "\x00" + to.Device
		seq[key]++
		w.Connections = append(w.Connections, models.WiringConnection{
			ID:   fmt.Sprintf("link-%s-%s-%d", from.Device, to.Device, seq[key]),
			From: from,
			To:   to,
			Type: kind,
		})
	}

	for i := 0; i < alloc.SpineCount; i++ {
		w.Spines = append(w.Spines, models.WiringDevice{
			ID:        spineID(i),
			Role:      models.DeviceRoleSpine,
			ModelID:   spineProfile.ModelID,
			PortCount: spineProfile.PortCount,
		})
	}

	leafCounts := make(map[string]int, len(alloc.LeafCounts))
	for _, lc := range alloc.LeafCounts {
		leafCounts[lc.ClassID] = lc.Leaves
	}

	globalLeaf := 0
	for _, class := range ns.Classes() {
		profile := leafProfiles[class.ID]
		leaves := make([]*builtLeaf, 0, leafCounts[class.ID])

		for n := 0; n < leafCounts[class.ID]; n++ {
			leaf := &builtLeaf{
				device: models.WiringDevice{
					ID:        leafID(ns.Mode, class.ID, n, globalLeaf),
					Role:      models.DeviceRoleLeaf,
					ModelID:   profile.ModelID,
					PortCount: profile.PortCount,
					ClassID:   class.ID,
				},
				profile: profile,
			}
			globalLeaf++

			used := make(map[int]bool)
			if m, ok := alloc.LeafMap(class.ID, n); ok {
				for _, u := range m.Uplinks {
					if u.SpineIndex >= alloc.SpineCount {
						continue
					}
					used[u.LeafPort] = true
					link(
						models.PortRef{Device: leaf.device.ID, Port: profile.PortName(u.LeafPort)},
						models.PortRef{Device: spineID(u.SpineIndex), Port: spineProfile.PortName(u.SpinePort)},
						models.ConnectionUplink,
					)
				}
			}
			leaf.downlink = downlinkPorts(profile, used, class.UplinksPerLeaf)

			w.Leaves = append(w.Leaves, leaf.device)
			leaves = append(leaves, leaf)
		}

		unplaced := b.attachServers(w, class, leaves, link)
		if unplaced > 0 {
			w.Issues = append(w.Issues, fmt.Sprintf("Leaf class %s: %d endpoint ports could not be placed on %d leaves",
				class.ID, unplaced, len(leaves)))
		}
	}

	sort.Slice(w.Connections, func(i, j int) bool {
		return w.Connections[i].ID < w.Connections[j].ID
	})

	w.Metadata = models.WiringMetadata{
		FabricName:      ns.Name,
		GeneratedAt:     b.now().UTC(),
		SpineCount:      len(w.Spines),
		LeafCount:       len(w.Leaves),
		ServerCount:     len(w.Servers),
		ConnectionCount: len(w.Connections),
	}

	slog.Debug("Wiring built",
		"fabric", ns.Name,
		"spines", len(w.Spines),
		"leaves", len(w.Leaves),
		"servers", len(w.Servers),
		"connections", len(w.Connections),
	)
	return w, nil
}

// attachServers creates every server of the class and packs its ports onto
// the class leaves in order. It returns the number of ports left unplaced.
func (b *WiringBuilder) attachServers(w *models.Wiring, class models.ResolvedLeafClass, leaves []*builtLeaf, link func(from, to models.PortRef, kind models.ConnectionType)) int {
	leafIdx, portIdx, unplaced := 0, 0, 0

	for _, p := range class.Profiles {
		name := normalizeProfileName(p.Name)
		for n := 1; n <= p.Count; n++ {
			server := models.WiringDevice{
				ID:        fmt.Sprintf("srv-%s-%s-%d", class.ID, name, n),
				Role:      models.DeviceRoleServer,
				PortCount: p.PortsPerEndpoint,
				ClassID:   class.ID,
				Profile:   p.Name,
			}
			w.Servers = append(w.Servers, server)

			for port := 1; port <= p.PortsPerEndpoint; port++ {
				for leafIdx < len(leaves) && portIdx >= len(leaves[leafIdx].downlink) {
					leafIdx++
					portIdx = 0
				}
				if leafIdx >= len(leaves) {
					unplaced++
					continue
				}
				leaf := leaves[leafIdx]
				link(
					models.PortRef{Device: server.ID, Port: fmt.Sprintf("eth%d", port)},
					models.PortRef{Device: leaf.device.ID, Port: leaf.profile.PortName(leaf.downlink[portIdx])},
					models.ConnectionEndpoint,
				)
				portIdx++
			}
		}
	}
	return unplaced
}

// downlinkPorts returns the endpoint ports not taken by uplinks, capped at
// the leaf's downlink capacity
func downlinkPorts(profile models.SwitchProfile, used map[int]bool, uplinksPerLeaf int) []int {
	capacity := profile.PortCount - uplinksPerLeaf
	ports := make([]int, 0, max(capacity, 0))
	for _, p := range profile.EndpointPorts {
		if len(ports) >= capacity {
			break
		}
		if !used[p] {
			ports = append(ports, p)
		}
	}
	return ports
}

func spineID(index int) string {
	return fmt.Sprintf("spine-%d", index+1)
}

// leafID names a leaf: leaf-<n+1> in legacy mode, leaf-<class>-<n> per class
// otherwise
func leafID(mode models.SpecMode, classID string, classIndex, globalIndex int) string {
	switch mode.(type) {
	case models.LegacyMode:
		return fmt.Sprintf("leaf-%d", globalIndex+1)
	case models.MultiClassMode:
		return fmt.Sprintf("leaf-%s-%d", classID, classIndex+1)
	default:
		panic(fmt.Sprintf("unhandled spec mode %T", mode))
	}
}

// normalizeProfileName lower-cases and strips non-alphanumeric characters
func normalizeProfileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return -1
		}
	}, name)
}
