// ABOUTME: Result of running the full fabric compilation pipeline
// ABOUTME: Bundles topology, allocation, wiring, wiring validation and rule diagnostics

package models

// CompileResult is everything one compilation produces
type CompileResult struct {
	Fingerprint string               `json:"fingerprint"`
	Topology    DerivedTopology      `json:"topology"`
	Allocation  AllocationResult     `json:"allocation"`
	Wiring      *Wiring              `json:"wiring"`
	Validation  WiringValidation     `json:"validation"`
	Rules       RuleEvaluationResult `json:"rules"`
}

// Blocking reports whether the result must not be persisted
func (r *CompileResult) Blocking() bool {
	return !r.Topology.IsValid || r.Rules.HasErrors() || !r.Validation.Valid()
}

// BlockingReasons lists why the result is blocking, in a stable order
func (r *CompileResult) BlockingReasons() []string {
	var reasons []string
	reasons = append(reasons, r.Topology.ValidationErrors...)
	for _, g := range r.Topology.Guards {
		reasons = append(reasons, g.Message())
	}
	for _, d := range r.Rules.Errors {
		reasons = append(reasons, d.Code+": "+d.Message)
	}
	reasons = append(reasons, r.Validation.Errors...)
	return reasons
}
