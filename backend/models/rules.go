// ABOUTME: Diagnostics produced by the validation rules engine
// ABOUTME: Every diagnostic carries a stable machine-readable code

package models

// Severity of a diagnostic
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Rule codes. These are displayed verbatim and must not change.
const (
	CodeSpineCapacityExceeded       = "SPINE_CAPACITY_EXCEEDED"
	CodeLeafCapacityExceeded        = "LEAF_CAPACITY_EXCEEDED"
	CodeUplinksNotDivisibleBySpines = "UPLINKS_NOT_DIVISIBLE_BY_SPINES"
	CodeMCLAGOddLeafs               = "MC_LAG_ODD_LEAFS"
	CodeESLAGSingleNIC              = "ES_LAG_SINGLE_NIC"
	CodeModelProfileMismatch        = "MODEL_PROFILE_MISMATCH"
	CodeCatalogModelUnknown         = "CATALOG_MODEL_UNKNOWN"
	CodeOversubscriptionRatio       = "OVERSUBSCRIPTION_RATIO"
)

// Diagnostic is a single rule finding
type Diagnostic struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Path     string   `json:"path,omitempty"`
}

// RuleEvaluationResult partitions diagnostics by severity
type RuleEvaluationResult struct {
	Errors   []Diagnostic `json:"errors"`
	Warnings []Diagnostic `json:"warnings"`
	Info     []Diagnostic `json:"info"`
}

// Add files a diagnostic under its severity
func (r *RuleEvaluationResult) Add(d Diagnostic) {
	switch d.Severity {
	case SeverityError:
		r.Errors = append(r.Errors, d)
	case SeverityWarning:
		r.Warnings = append(r.Warnings, d)
	default:
		r.Info = append(r.Info, d)
	}
}

// HasErrors reports whether any error-severity diagnostic fired
func (r RuleEvaluationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Codes returns every diagnostic code in errors, warnings, info order
func (r RuleEvaluationResult) Codes() []string {
	codes := make([]string, 0, len(r.Errors)+len(r.Warnings)+len(r.Info))
	for _, group := range [][]Diagnostic{r.Errors, r.Warnings, r.Info} {
		for _, d := range group {
			codes = append(codes, d.Code)
		}
	}
	return codes
}
