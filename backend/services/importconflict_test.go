// ABOUTME: Tests for import conflict detection, resolution and application
// ABOUTME: Also drives the import session state machine through its transitions

package services

import (
	"testing"

	"github.com/markalston/fabric-planner/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detect(t *testing.T, imported, current models.FabricSpec) []models.ImportConflict {
	t.Helper()
	topo := NewTopologyCalculator(DefaultRegistry()).Compute(imported)
	conflicts, err := DetectConflicts(imported, topo, current)
	require.NoError(t, err)
	return conflicts
}

func TestDetectConflicts_Identical(t *testing.T) {
	spec := classSpec(leafClass("compute", 4, 40), leafClass("storage", 2, 10))

	assert.Empty(t, detect(t, spec, spec))
}

func TestDetectConflicts_ValueChange(t *testing.T) {
	conflicts := detect(t, legacySpec(2, 20), legacySpec(4, 20))

	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, "value:uplinksPerLeaf", c.ID)
	assert.Equal(t, "uplinksPerLeaf", c.Path)
	assert.Equal(t, float64(2), c.ImportedValue)
	assert.Equal(t, float64(4), c.CurrentValue)
	assert.Equal(t, models.ConflictValue, c.Category)
	assert.Equal(t, models.SeverityWarning, c.Severity)
	assert.Equal(t, []models.ResolutionAction{models.ActionAccept, models.ActionReject, models.ActionModify}, c.SupportedActions)
}

func TestDetectConflicts_ModelChange(t *testing.T) {
	imported := legacySpec(4, 20)
	imported.SpineModelID = "DS4000"

	conflicts := detect(t, imported, legacySpec(4, 20))

	require.Len(t, conflicts, 1)
	assert.Equal(t, "model:spineModelId", conflicts[0].ID)
	assert.Equal(t, models.ConflictModel, conflicts[0].Category)
	assert.False(t, conflicts[0].Supports(models.ActionModify))
}

func TestDetectConflicts_UnsetImportedFieldIsIgnored(t *testing.T) {
	imported := legacySpec(4, 20)
	imported.UplinksPerLeaf = nil

	conflicts := detect(t, imported, legacySpec(4, 20))

	assert.Empty(t, conflicts)
}

func TestDetectConflicts_ClassesAddedAndRemoved(t *testing.T) {
	current := classSpec(leafClass("a", 2, 10), leafClass("b", 2, 10))
	imported := classSpec(leafClass("b", 2, 10), leafClass("c", 2, 10))

	conflicts := detect(t, imported, current)

	require.Len(t, conflicts, 2)

	added := conflicts[0]
	assert.Equal(t, "topology:leafClasses[c]", added.ID)
	assert.Equal(t, "leafClasses.-1", added.Path)
	assert.Nil(t, added.CurrentValue)
	assert.NotNil(t, added.ImportedValue)

	removed := conflicts[1]
	assert.Equal(t, "topology:leafClasses.0", removed.ID)
	assert.Equal(t, "leafClasses.0", removed.Path)
	assert.Nil(t, removed.ImportedValue)
	assert.Equal(t, []models.ResolutionAction{models.ActionAccept, models.ActionReject}, removed.SupportedActions)
}

func TestDetectConflicts_ClassFieldUsesCurrentIndex(t *testing.T) {
	current := classSpec(leafClass("a", 2, 10), leafClass("b", 2, 10))
	changed := leafClass("b", 2, 10)
	changed.MCLAG = true
	changed.Count = models.Ptr(2)
	imported := classSpec(changed, leafClass("a", 2, 10))

	conflicts := detect(t, imported, current)

	var paths []string
	for _, c := range conflicts {
		paths = append(paths, c.Path)
	}
	assert.ElementsMatch(t, []string{"leafClasses.1.count", "leafClasses.1.mcLag"}, paths)
}

func TestDetectConflicts_DivisibilityConstraint(t *testing.T) {
	// 451 endpoints over 45 downlinks = 11 leaves x 3 uplinks = 33, needing 2 spines
	conflicts := detect(t, legacySpec(3, 451), legacySpec(4, 20))

	require.Len(t, conflicts, 2)
	c := conflicts[0]
	assert.Equal(t, "constraint:uplinksPerLeaf", c.ID, "constraint replaces the plain value conflict on the same path")
	assert.Equal(t, models.ConflictConstraint, c.Category)
	assert.Equal(t, models.SeverityError, c.Severity)
	assert.Equal(t, 3, c.ImportedValue)
	assert.Equal(t, float64(4), c.CurrentValue)
	assert.Equal(t, 4, c.SuggestedValue)
	assert.Contains(t, c.Message, "not divisible by 2 spines")

	assert.Equal(t, "value:endpointCount", conflicts[1].ID)
}

func TestDetectConflicts_HalfPortsConstraint(t *testing.T) {
	// 20 endpoints over 18 downlinks = 2 leaves x 30 uplinks = 60, needing 2 spines
	conflicts := detect(t, legacySpec(30, 20), legacySpec(4, 20))

	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, models.ConflictConstraint, c.Category)
	assert.Equal(t, 24, c.SuggestedValue)
	assert.Contains(t, c.Message, "exceeds half of 48 leaf ports")
}

func TestDetectConflicts_Oversubscription(t *testing.T) {
	conflicts := detect(t, legacySpec(2, 100), legacySpec(4, 20))

	var found *models.ImportConflict
	for i := range conflicts {
		if conflicts[i].Path == "topology.oversubscriptionRatio" {
			found = &conflicts[i]
		}
	}
	require.NotNil(t, found, "expected an oversubscription conflict in %v", conflicts)
	assert.Equal(t, models.ConflictTopology, found.Category)
	assert.Equal(t, models.SeverityError, found.Severity)
	assert.Equal(t, models.MaxOversubscriptionRatio, found.CurrentValue)
	assert.False(t, found.Supports(models.ActionModify))
}

func TestSuggestUplinks(t *testing.T) {
	tests := []struct {
		uplinks, spines, leafPorts, want int
	}{
		{3, 2, 48, 4},
		{5, 4, 48, 4},
		{1, 2, 48, 2},
		{30, 2, 48, 24},
		{30, 4, 48, 24},
		{7, 1, 48, 7},
		{7, 0, 0, 7},
	}

	for _, tt := range tests {
		if got := suggestUplinks(tt.uplinks, tt.spines, tt.leafPorts); got != tt.want {
			t.Errorf("suggestUplinks(%d, %d, %d) = %d, want %d", tt.uplinks, tt.spines, tt.leafPorts, got, tt.want)
		}
	}
}

func valueConflict() models.ImportConflict {
	return models.ImportConflict{
		ID:               "value:uplinksPerLeaf",
		Path:             "uplinksPerLeaf",
		ImportedValue:    float64(2),
		CurrentValue:     float64(4),
		Category:         models.ConflictValue,
		SupportedActions: []models.ResolutionAction{models.ActionAccept, models.ActionReject, models.ActionModify},
	}
}

func TestResolveConflict(t *testing.T) {
	c := valueConflict()

	accept, err := ResolveConflict(c, models.ActionAccept, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(2), accept.Value)
	assert.True(t, accept.RecomputeRequired)
	assert.Equal(t, []string{"leavesNeeded", "spinesNeeded", "totalPorts", "usedPorts", "oversubscriptionRatio"}, accept.AffectedFields)

	reject, err := ResolveConflict(c, models.ActionReject, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(4), reject.Value)
	assert.False(t, reject.RecomputeRequired)

	modify, err := ResolveConflict(c, models.ActionModify, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, modify.Value)
	assert.True(t, modify.RecomputeRequired)
	assert.Equal(t, c.ID, modify.ConflictID)
	assert.Equal(t, c.Path, modify.Path)
}

func TestResolveConflict_ContractErrors(t *testing.T) {
	c := valueConflict()

	_, err := ResolveConflict(c, models.ActionModify, nil)
	assert.ErrorIs(t, err, ErrModifyRequiresValue)

	c.SupportedActions = []models.ResolutionAction{models.ActionAccept, models.ActionReject}
	_, err = ResolveConflict(c, models.ActionModify, 6)
	assert.ErrorIs(t, err, ErrUnsupportedAction)

	_, err = ResolveConflict(c, "ignore", nil)
	assert.ErrorIs(t, err, ErrUnsupportedAction)
}

func TestResolveConflict_InvalidModifyValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"string for a number", "four"},
		{"boolean for a number", true},
		{"fraction for a whole number", 2.5},
		{"list for a number", []int{4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveConflict(valueConflict(), models.ActionModify, tt.value)
			assert.ErrorIs(t, err, ErrInvalidModifyValue)
		})
	}

	model := models.ImportConflict{
		ID:               "model:spineModelId",
		Path:             "spineModelId",
		ImportedValue:    "DS4000",
		CurrentValue:     "DS3000",
		SupportedActions: []models.ResolutionAction{models.ActionModify},
	}
	_, err := ResolveConflict(model, models.ActionModify, 4000)
	assert.ErrorIs(t, err, ErrInvalidModifyValue)
	res, err := ResolveConflict(model, models.ActionModify, "DS1000")
	require.NoError(t, err)
	assert.Equal(t, "DS1000", res.Value)
}

func TestImportSession_InvalidModifyKeepsSessionOpen(t *testing.T) {
	s := NewImportSession("s1", legacySpec(4, 20))
	imported := legacySpec(2, 20)
	conflicts, err := s.Detect(imported, NewTopologyCalculator(DefaultRegistry()).Compute(imported))
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	_, err = s.Resolve("value:uplinksPerLeaf", models.ActionModify, "four")
	assert.ErrorIs(t, err, ErrInvalidModifyValue)
	assert.Equal(t, models.ImportConflictsDetected, s.State())
	assert.Empty(t, s.Resolutions())

	_, err = s.Resolve("value:uplinksPerLeaf", models.ActionModify, float64(2))
	require.NoError(t, err)
	assert.Equal(t, models.ImportResolved, s.State())

	out, err := s.Apply()
	require.NoError(t, err)
	assert.Equal(t, 2, *out.UplinksPerLeaf)
}

func TestAffectedFields(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"topology.oversubscriptionRatio", []string{}},
		{"leafClasses.0", allDerivedStats},
		{"leafClasses.1.mcLag", []string{"guards"}},
		{"spineModelId", []string{"spinesNeeded", "totalPorts"}},
		{"leafClasses.0.leafModelId", []string{"leavesNeeded", "spinesNeeded", "totalPorts"}},
		{"name", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, affectedFields(tt.path))
		})
	}
}

func TestApplyResolutions_SetsValuesWithoutMutatingInput(t *testing.T) {
	current := legacySpec(4, 20)

	out, err := ApplyResolutions(current, []models.Resolution{
		{Path: "uplinksPerLeaf", Action: models.ActionAccept, Value: float64(2)},
		{Path: "endpointCount", Action: models.ActionReject, Value: float64(99)},
		{Path: "spineModelId", Action: models.ActionModify, Value: "DS4000"},
		{Path: "topology.oversubscriptionRatio", Action: models.ActionAccept, Value: 16.7},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, *out.UplinksPerLeaf)
	assert.Equal(t, 20, *out.EndpointCount)
	assert.Equal(t, "DS4000", out.SpineModelID)

	assert.Equal(t, 4, *current.UplinksPerLeaf)
	assert.Equal(t, "DS3000", current.SpineModelID)
}

func TestApplyResolutions_AddsAndRemovesClasses(t *testing.T) {
	current := classSpec(leafClass("a", 2, 10), leafClass("b", 2, 10))
	imported := classSpec(leafClass("b", 2, 10), leafClass("c", 2, 10))
	conflicts := detect(t, imported, current)

	var resolutions []models.Resolution
	for _, c := range conflicts {
		r, err := ResolveConflict(c, models.ActionAccept, nil)
		require.NoError(t, err)
		resolutions = append(resolutions, r)
	}
	out, err := ApplyResolutions(current, resolutions)
	require.NoError(t, err)

	require.Len(t, out.LeafClasses, 2)
	assert.Equal(t, "b", out.LeafClasses[0].ID)
	assert.Equal(t, "c", out.LeafClasses[1].ID)
	assert.Equal(t, 10, *out.LeafClasses[1].EndpointProfiles[0].Count)
	assert.Equal(t, "a", current.LeafClasses[0].ID)
}

func TestApplyResolutions_RemovesHighestIndexFirst(t *testing.T) {
	current := classSpec(leafClass("a", 2, 10), leafClass("b", 2, 10), leafClass("c", 2, 10))

	out, err := ApplyResolutions(current, []models.Resolution{
		{Path: "leafClasses.0", Action: models.ActionAccept},
		{Path: "leafClasses.2", Action: models.ActionAccept},
	})
	require.NoError(t, err)

	require.Len(t, out.LeafClasses, 1)
	assert.Equal(t, "b", out.LeafClasses[0].ID)
}

func TestApplyResolutions_FirstClass(t *testing.T) {
	current := legacySpec(4, 20)
	class := map[string]any{"id": "edge", "uplinksPerLeaf": 2, "endpointProfiles": []any{}}

	out, err := ApplyResolutions(current, []models.Resolution{
		{Path: "leafClasses.-1", Action: models.ActionAccept, Value: class},
	})
	require.NoError(t, err)

	require.Len(t, out.LeafClasses, 1)
	assert.Equal(t, "edge", out.LeafClasses[0].ID)
}

func TestImportSession_Lifecycle(t *testing.T) {
	current := legacySpec(4, 20)
	imported := legacySpec(2, 30)
	topo := NewTopologyCalculator(DefaultRegistry()).Compute(imported)
	s := NewImportSession("s1", current)

	assert.Equal(t, models.ImportIdle, s.State())
	_, err := s.Resolve("value:uplinksPerLeaf", models.ActionAccept, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.Apply()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	conflicts, err := s.Detect(imported, topo)
	require.NoError(t, err)
	require.Len(t, conflicts, 2)
	assert.Equal(t, models.ImportConflictsDetected, s.State())

	_, err = s.Detect(imported, topo)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.Resolve("nope", models.ActionAccept, nil)
	assert.ErrorIs(t, err, ErrConflictNotFound)

	_, err = s.Resolve("value:uplinksPerLeaf", models.ActionAccept, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ImportAccepted, s.State())

	_, err = s.Apply()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.Resolve("value:endpointCount", models.ActionModify, float64(24))
	require.NoError(t, err)
	assert.Equal(t, models.ImportResolved, s.State())

	out, err := s.Apply()
	require.NoError(t, err)
	assert.Equal(t, 2, *out.UplinksPerLeaf)
	assert.Equal(t, 24, *out.EndpointCount)
	assert.Len(t, s.Resolutions(), 2)
}

func TestImportSession_RejectState(t *testing.T) {
	s := NewImportSession("s1", legacySpec(4, 20))
	imported := legacySpec(2, 30)
	_, err := s.Detect(imported, NewTopologyCalculator(DefaultRegistry()).Compute(imported))
	require.NoError(t, err)

	_, err = s.Resolve("value:uplinksPerLeaf", models.ActionReject, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ImportRejected, s.State())

	// Re-resolving the same conflict does not complete the session
	_, err = s.Resolve("value:uplinksPerLeaf", models.ActionModify, float64(3))
	require.NoError(t, err)
	assert.Equal(t, models.ImportModified, s.State())
}

func TestImportSession_NoConflictsResolvesImmediately(t *testing.T) {
	spec := legacySpec(4, 20)
	s := NewImportSession("s1", spec)

	conflicts, err := s.Detect(spec, NewTopologyCalculator(DefaultRegistry()).Compute(spec))
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.Equal(t, models.ImportResolved, s.State())

	out, err := s.Apply()
	require.NoError(t, err)
	assert.Equal(t, spec, out)
}
