// ABOUTME: Import conflict model for reconciling an imported spec with the active one
// ABOUTME: Conflicts carry their category, severity and the resolution actions they allow

package models

import "slices"

// ConflictCategory classifies an import conflict
type ConflictCategory string

const (
	ConflictValue      ConflictCategory = "value"
	ConflictModel      ConflictCategory = "model"
	ConflictConstraint ConflictCategory = "constraint"
	ConflictTopology   ConflictCategory = "topology"
)

// ResolutionAction is what the caller chose to do with a conflict
type ResolutionAction string

const (
	ActionAccept ResolutionAction = "accept"
	ActionReject ResolutionAction = "reject"
	ActionModify ResolutionAction = "modify"
)

// ImportState is a state of the import resolution cycle
type ImportState string

const (
	ImportIdle              ImportState = "idle"
	ImportConflictsDetected ImportState = "conflicts-detected"
	ImportAccepted          ImportState = "accepted"
	ImportRejected          ImportState = "rejected"
	ImportModified          ImportState = "modified"
	ImportResolved          ImportState = "resolved"
)

// ImportConflict is one difference between an imported and the current spec.
// Path is a JSON path into the current spec document.
type ImportConflict struct {
	ID               string             `json:"id"`
	Path             string             `json:"path"`
	ImportedValue    any                `json:"importedValue"`
	CurrentValue     any                `json:"currentValue"`
	SuggestedValue   any                `json:"suggestedValue,omitempty"`
	Category         ConflictCategory   `json:"category"`
	Severity         Severity           `json:"severity"`
	Message          string             `json:"message"`
	SupportedActions []ResolutionAction `json:"supportedActions"`
}

// Supports reports whether the conflict allows the given action
func (c ImportConflict) Supports(action ResolutionAction) bool {
	return slices.Contains(c.SupportedActions, action)
}

// Resolution is the outcome of resolving one conflict
type Resolution struct {
	ConflictID        string           `json:"conflictId"`
	Path              string           `json:"path"`
	Action            ResolutionAction `json:"action"`
	Value             any              `json:"value"`
	RecomputeRequired bool             `json:"recomputeRequired"`
	AffectedFields    []string         `json:"affectedFields"`
}
