// ABOUTME: Validation rules engine producing coded diagnostics for a fabric design
// ABOUTME: Each rule runs independently; unknown catalog models skip model rules instead of failing

package services

import (
	"fmt"

	"github.com/markalston/fabric-planner/backend/models"
)

// RulesEngine evaluates design rules against a spec and its derived topology
type RulesEngine struct{}

// NewRulesEngine creates a new rules engine
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// ruleContext is shared by the rules of one evaluation
type ruleContext struct {
	spec     models.FabricSpec
	ns       models.NormalizedSpec
	topo     models.DerivedTopology
	catalog  SwitchCatalog
	result   *models.RuleEvaluationResult
	reported map[string]bool // unknown models already reported
}

type rule func(rc *ruleContext)

// rules run in this order; diagnostics keep that order within each severity
var rules = []rule{
	spineCapacityRule,
	leafCapacityRule,
	uplinkDivisibilityRule,
	mcLagRule,
	esLagRule,
	modelProfileRule,
	oversubscriptionRule,
}

// Evaluate runs every rule. It never fails; catalog lookup misses are
// reported as CATALOG_MODEL_UNKNOWN info diagnostics.
func (e *RulesEngine) Evaluate(spec models.FabricSpec, topo models.DerivedTopology, catalog SwitchCatalog) models.RuleEvaluationResult {
	result := models.RuleEvaluationResult{
		Errors:   []models.Diagnostic{},
		Warnings: []models.Diagnostic{},
		Info:     []models.Diagnostic{},
	}
	rc := &ruleContext{
		spec:     spec,
		ns:       spec.Normalize(),
		topo:     topo,
		catalog:  catalog,
		result:   &result,
		reported: make(map[string]bool),
	}
	for _, r := range rules {
		r(rc)
	}
	return result
}

// capabilities looks up a model, reporting a miss once per model id
func (rc *ruleContext) capabilities(modelID, path string) (Capabilities, bool) {
	if rc.catalog == nil {
		return Capabilities{}, false
	}
	caps, ok := rc.catalog.Capabilities(modelID)
	if !ok {
		rc.unknownModel(modelID, path)
	}
	return caps, ok
}

func (rc *ruleContext) ports(modelID, path string) (PortInfo, bool) {
	if rc.catalog == nil {
		return PortInfo{}, false
	}
	info, ok := rc.catalog.Ports(modelID)
	if !ok {
		rc.unknownModel(modelID, path)
	}
	return info, ok
}

func (rc *ruleContext) unknownModel(modelID, path string) {
	if rc.reported[modelID] {
		return
	}
	rc.reported[modelID] = true
	rc.result.Add(models.Diagnostic{
		Code:     models.CodeCatalogModelUnknown,
		Severity: models.SeverityInfo,
		Message:  fmt.Sprintf("Model %s is not in the switch catalog; model-dependent rules skipped", modelID),
		Path:     path,
	})
}

// classPath returns the JSON path of a class field in the submitted spec
func (rc *ruleContext) classPath(classID, field string) string {
	switch rc.ns.Mode.(type) {
	case models.LegacyMode:
		switch field {
		case "uplinksPerLeaf":
			return "uplinksPerLeaf"
		case "count":
			return "endpointCount"
		case "leafModelId":
			return "leafModelId"
		default:
			return "endpointProfile"
		}
	default:
		for i, lc := range rc.spec.LeafClasses {
			if lc.ID == classID {
				if field == "" {
					return fmt.Sprintf("leafClasses.%d", i)
				}
				return fmt.Sprintf("leafClasses.%d.%s", i, field)
			}
		}
		return "leafClasses"
	}
}

func spineCapacityRule(rc *ruleContext) {
	caps, ok := rc.capabilities(rc.ns.SpineModelID, "spineModelId")
	if !ok {
		return
	}
	capacity := rc.topo.SpinesNeeded * caps.MaxCapacity
	if rc.topo.TotalUplinkPorts > capacity {
		rc.result.Add(models.Diagnostic{
			Code:     models.CodeSpineCapacityExceeded,
			Severity: models.SeverityError,
			Message: fmt.Sprintf("Uplink demand %d exceeds spine capacity %d (%d x %s with %d fabric ports)",
				rc.topo.TotalUplinkPorts, capacity, rc.topo.SpinesNeeded, rc.ns.SpineModelID, caps.MaxCapacity),
			Path: "spineModelId",
		})
	}
}

func leafCapacityRule(rc *ruleContext) {
	for _, ct := range rc.topo.Classes {
		info, ok := rc.ports(ct.LeafModelID, rc.classPath(ct.ClassID, "leafModelId"))
		if !ok {
			continue
		}
		downlinks := max(info.Ports-ct.UplinksPerLeaf, 0)
		capacity := ct.LeavesNeeded * downlinks
		if ct.EndpointPorts > capacity {
			rc.result.Add(models.Diagnostic{
				Code:     models.CodeLeafCapacityExceeded,
				Severity: models.SeverityError,
				Message: fmt.Sprintf("Leaf class %s: endpoint demand %d exceeds downlink capacity %d (%d leaves x %d ports)",
					ct.ClassID, ct.EndpointPorts, capacity, ct.LeavesNeeded, downlinks),
				Path: rc.classPath(ct.ClassID, "count"),
			})
		}
	}
}

func uplinkDivisibilityRule(rc *ruleContext) {
	spines := rc.topo.SpinesNeeded
	if spines <= 1 {
		return
	}
	for _, ct := range rc.topo.Classes {
		if ct.UplinksPerLeaf%spines != 0 {
			rc.result.Add(models.Diagnostic{
				Code:     models.CodeUplinksNotDivisibleBySpines,
				Severity: models.SeverityWarning,
				Message: fmt.Sprintf("Leaf class %s: uplinksPerLeaf %d is not divisible by %d spines",
					ct.ClassID, ct.UplinksPerLeaf, spines),
				Path: rc.classPath(ct.ClassID, "uplinksPerLeaf"),
			})
		}
	}
}

func mcLagRule(rc *ruleContext) {
	for _, ct := range rc.topo.Classes {
		if !ct.MCLAG {
			continue
		}
		if ct.LeavesNeeded < models.MinMCLAGLeaves || ct.LeavesNeeded%2 != 0 {
			rc.result.Add(models.Diagnostic{
				Code:     models.CodeMCLAGOddLeafs,
				Severity: models.SeverityWarning,
				Message: fmt.Sprintf("Leaf class %s: MC-LAG requires an even leaf count of at least %d, got %d",
					ct.ClassID, models.MinMCLAGLeaves, ct.LeavesNeeded),
				Path: rc.classPath(ct.ClassID, "mcLag"),
			})
		}
	}
}

func esLagRule(rc *ruleContext) {
	for _, class := range rc.ns.Classes() {
		for _, p := range class.Profiles {
			if p.ESLAG && p.NICs < models.RequiredESLAGNICs {
				rc.result.Add(models.Diagnostic{
					Code:     models.CodeESLAGSingleNIC,
					Severity: models.SeverityWarning,
					Message: fmt.Sprintf("Leaf class %s: ES-LAG profile %s has %d NIC, needs at least %d",
						class.ID, p.Name, p.NICs, models.RequiredESLAGNICs),
					Path: rc.classPath(class.ID, "endpointProfiles"),
				})
			}
		}
	}
}

func modelProfileRule(rc *ruleContext) {
	if caps, ok := rc.capabilities(rc.ns.SpineModelID, "spineModelId"); ok {
		checkRole(rc, rc.ns.SpineModelID, models.SwitchRoleSpine, caps, "spineModelId", "spine")
	}
	for _, class := range rc.ns.Classes() {
		path := rc.classPath(class.ID, "leafModelId")
		caps, ok := rc.capabilities(class.LeafModelID, path)
		if !ok {
			continue
		}
		role := models.SwitchRoleLeaf
		if class.Role == models.LeafRoleBorder {
			role = models.SwitchRoleBorder
		}
		checkRole(rc, class.LeafModelID, role, caps, path, "leaf class "+class.ID)
	}
}

func checkRole(rc *ruleContext, modelID string, role models.SwitchRole, caps Capabilities, path, usedAs string) {
	for _, use := range caps.RecommendedUses {
		if use == role {
			return
		}
	}
	rc.result.Add(models.Diagnostic{
		Code:     models.CodeModelProfileMismatch,
		Severity: models.SeverityWarning,
		Message:  fmt.Sprintf("Model %s is used as %s (%s) but is recommended for %v", modelID, role, usedAs, caps.RecommendedUses),
		Path:     path,
	})
}

func oversubscriptionRule(rc *ruleContext) {
	if rc.topo.TotalUplinkPorts <= 0 {
		return
	}
	rc.result.Add(models.Diagnostic{
		Code:     models.CodeOversubscriptionRatio,
		Severity: models.SeverityInfo,
		Message: fmt.Sprintf("Oversubscription ratio %.2f:1 (%d endpoint ports over %d uplinks)",
			rc.topo.OversubscriptionRatio, rc.topo.TotalEndpointPorts, rc.topo.TotalUplinkPorts),
	})
}
