// ABOUTME: Structural checks over a compiled wiring diagram
// ABOUTME: Errors for id/port collisions and dangling references, warnings for uplink shape

package services

import (
	"fmt"
	"sort"

	"github.com/markalston/fabric-planner/backend/models"
)

// ValidateWiring checks a wiring diagram. Findings are reported in id order
// so the result is stable for a given graph regardless of list order.
func ValidateWiring(w *models.Wiring) models.WiringValidation {
	result := models.WiringValidation{
		Errors:   []string{},
		Warnings: []string{},
	}
	if w == nil {
		result.Errors = append(result.Errors, "Wiring is empty")
		return result
	}

	devices := w.Devices()
	sort.SliceStable(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	conns := make([]models.WiringConnection, len(w.Connections))
	copy(conns, w.Connections)
	sort.SliceStable(conns, func(i, j int) bool { return conns[i].ID < conns[j].ID })

	known := make(map[string]models.DeviceRole, len(devices))
	dupDevices := make(map[string]bool)
	for _, d := range devices {
		if _, dup := known[d.ID]; dup && !dupDevices[d.ID] {
			dupDevices[d.ID] = true
			result.Errors = append(result.Errors, fmt.Sprintf("Duplicate device id: %s", d.ID))
		}
		known[d.ID] = d.Role
	}

	seenConn := make(map[string]bool, len(conns))
	portOwner := make(map[models.PortRef]string, 2*len(conns))
	uplinksPerDevice := make(map[string]int)

	for _, c := range conns {
		if seenConn[c.ID] {
			result.Errors = append(result.Errors, fmt.Sprintf("Duplicate connection id: %s", c.ID))
			continue
		}
		seenConn[c.ID] = true

		for _, end := range []models.PortRef{c.From, c.To} {
			if _, ok := known[end.Device]; !ok {
				result.Errors = append(result.Errors, fmt.Sprintf("Connection %s references unknown device %s", c.ID, end.Device))
				continue
			}
			if owner, taken := portOwner[end]; taken {
				result.Errors = append(result.Errors, fmt.Sprintf("Port overlap on %s port %s: connections %s and %s",
					end.Device, end.Port, owner, c.ID))
				continue
			}
			portOwner[end] = c.ID
		}

		if c.Type == models.ConnectionUplink {
			uplinksPerDevice[c.From.Device]++
			uplinksPerDevice[c.To.Device]++
		}
	}

	var spineLoad []int
	reported := make(map[string]bool)
	for _, d := range devices {
		if reported[d.ID] {
			continue
		}
		reported[d.ID] = true
		switch d.Role {
		case models.DeviceRoleLeaf:
			if uplinksPerDevice[d.ID] == 0 {
				result.Warnings = append(result.Warnings, fmt.Sprintf("Leaf %s has no uplink connections", d.ID))
			}
		case models.DeviceRoleSpine:
			spineLoad = append(spineLoad, uplinksPerDevice[d.ID])
		}
	}

	if len(spineLoad) > 0 {
		lo, hi := spineLoad[0], spineLoad[0]
		for _, n := range spineLoad[1:] {
			lo = min(lo, n)
			hi = max(hi, n)
		}
		if hi-lo > 1 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Spine utilization imbalance: max %d, min %d uplinks per spine", hi, lo))
		}
	}

	return result
}
