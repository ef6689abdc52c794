// ABOUTME: Import conflict resolver diffing an imported spec against the active one
// ABOUTME: Detects typed conflicts, validates resolutions and applies them by JSON path

package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/markalston/fabric-planner/backend/models"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Resolver contract errors. These indicate a caller bug, not bad data.
var (
	ErrUnsupportedAction   = errors.New("resolution action not supported by conflict")
	ErrModifyRequiresValue = errors.New("modify requires a replacement value")
	ErrInvalidModifyValue  = errors.New("modify value does not fit the field")
	ErrInvalidTransition   = errors.New("invalid import state transition")
	ErrConflictNotFound    = errors.New("conflict not found")
)

// metricPathPrefix marks conflicts on derived metrics rather than spec fields.
// Resolutions on these paths never write to the spec.
const metricPathPrefix = "topology."

// appendClassPath appends a leaf class to the current spec
const appendClassPath = "leafClasses.-1"

var (
	allActions      = []models.ResolutionAction{models.ActionAccept, models.ActionReject, models.ActionModify}
	acceptOrReject  = []models.ResolutionAction{models.ActionAccept, models.ActionReject}
	topLevelFields  = []fieldCheck{{"name", models.ConflictValue}, {"spineModelId", models.ConflictModel}, {"leafModelId", models.ConflictModel}, {"uplinksPerLeaf", models.ConflictValue}, {"endpointCount", models.ConflictValue}, {"endpointProfile", models.ConflictValue}}
	classFields     = []fieldCheck{{"leafModelId", models.ConflictModel}, {"uplinksPerLeaf", models.ConflictValue}, {"count", models.ConflictValue}, {"mcLag", models.ConflictValue}, {"endpointProfiles", models.ConflictValue}}
	allDerivedStats = []string{"leavesNeeded", "spinesNeeded", "totalPorts", "usedPorts", "oversubscriptionRatio", "guards"}
)

type fieldCheck struct {
	name     string
	category models.ConflictCategory
}

// DetectConflicts compares an imported spec with the current one.
// importedTopo is the derived topology of the imported spec; it drives the
// constraint and capacity conflicts. Conflict paths address the current spec.
func DetectConflicts(imported models.FabricSpec, importedTopo models.DerivedTopology, current models.FabricSpec) ([]models.ImportConflict, error) {
	impDoc, err := json.Marshal(imported)
	if err != nil {
		return nil, fmt.Errorf("failed to encode imported spec: %w", err)
	}
	curDoc, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to encode current spec: %w", err)
	}

	d := &detector{imp: impDoc, cur: curDoc, byPath: make(map[string]int)}

	for _, f := range topLevelFields {
		d.compare(f.name, f.name, f.category)
	}

	// Classes are matched by id; the path uses the index in the current spec
	curIndex := make(map[string]int)
	for j, c := range gjson.GetBytes(curDoc, "leafClasses").Array() {
		curIndex[c.Get("id").String()] = j
	}
	impIDs := make(map[string]bool)
	for i, c := range gjson.GetBytes(impDoc, "leafClasses").Array() {
		id := c.Get("id").String()
		impIDs[id] = true
		j, ok := curIndex[id]
		if !ok {
			d.add(models.ImportConflict{
				ID:               fmt.Sprintf("%s:leafClasses[%s]", models.ConflictTopology, id),
				Path:             appendClassPath,
				ImportedValue:    c.Value(),
				Category:         models.ConflictTopology,
				Severity:         models.SeverityWarning,
				Message:          fmt.Sprintf("Imported spec adds leaf class %s", id),
				SupportedActions: acceptOrReject,
			})
			continue
		}
		for _, f := range classFields {
			d.compare(fmt.Sprintf("leafClasses.%d.%s", i, f.name), fmt.Sprintf("leafClasses.%d.%s", j, f.name), f.category)
		}
	}
	for j, c := range gjson.GetBytes(curDoc, "leafClasses").Array() {
		id := c.Get("id").String()
		if impIDs[id] {
			continue
		}
		d.add(models.ImportConflict{
			Path:             fmt.Sprintf("leafClasses.%d", j),
			CurrentValue:     c.Value(),
			Category:         models.ConflictTopology,
			Severity:         models.SeverityWarning,
			Message:          fmt.Sprintf("Imported spec removes leaf class %s", id),
			SupportedActions: acceptOrReject,
		})
	}

	d.constraints(imported, importedTopo, curIndex)

	if importedTopo.OversubscriptionRatio > models.MaxOversubscriptionRatio {
		d.add(models.ImportConflict{
			Path:             metricPathPrefix + "oversubscriptionRatio",
			ImportedValue:    importedTopo.OversubscriptionRatio,
			CurrentValue:     models.MaxOversubscriptionRatio,
			Category:         models.ConflictTopology,
			Severity:         models.SeverityError,
			Message:          fmt.Sprintf("Imported design oversubscription %.2f exceeds maximum %.1f", importedTopo.OversubscriptionRatio, models.MaxOversubscriptionRatio),
			SupportedActions: acceptOrReject,
		})
	}

	return d.conflicts, nil
}

type detector struct {
	imp, cur  []byte
	conflicts []models.ImportConflict
	byPath    map[string]int
}

// add appends a conflict, replacing an earlier one on the same path
func (d *detector) add(c models.ImportConflict) {
	if c.ID == "" {
		c.ID = fmt.Sprintf("%s:%s", c.Category, c.Path)
	}
	if idx, ok := d.byPath[c.Path]; ok && c.Path != appendClassPath {
		d.conflicts[idx] = c
		return
	}
	d.byPath[c.Path] = len(d.conflicts)
	d.conflicts = append(d.conflicts, c)
}

// compare emits a conflict when the imported field is set and differs
func (d *detector) compare(impPath, curPath string, category models.ConflictCategory) {
	imp := gjson.GetBytes(d.imp, impPath)
	if !imp.Exists() {
		return
	}
	cur := gjson.GetBytes(d.cur, curPath)
	if cur.Exists() && cur.Type == imp.Type && canonical(cur) == canonical(imp) {
		return
	}

	actions := acceptOrReject
	if category == models.ConflictValue && isScalar(imp) {
		actions = allActions
	}
	d.add(models.ImportConflict{
		Path:             curPath,
		ImportedValue:    imp.Value(),
		CurrentValue:     valueOrNil(cur),
		Category:         category,
		Severity:         models.SeverityWarning,
		Message:          fmt.Sprintf("%s differs: imported %s, current %s", curPath, display(imp), display(cur)),
		SupportedActions: actions,
	})
}

// constraints flags imported uplink counts that the imported topology
// cannot satisfy, with a suggested corrected value
func (d *detector) constraints(imported models.FabricSpec, topo models.DerivedTopology, curIndex map[string]int) {
	ns := imported.Normalize()
	for _, class := range ns.Classes() {
		ct, ok := topo.Class(class.ID)
		if !ok {
			continue
		}

		var path string
		switch ns.Mode.(type) {
		case models.LegacyMode:
			path = "uplinksPerLeaf"
		case models.MultiClassMode:
			j, ok := curIndex[class.ID]
			if !ok {
				// New classes are resolved through their add conflict
				continue
			}
			path = fmt.Sprintf("leafClasses.%d.uplinksPerLeaf", j)
		}

		var reasons []string
		spines := topo.SpinesNeeded
		if spines > 1 && ct.UplinksPerLeaf%spines != 0 {
			reasons = append(reasons, fmt.Sprintf("not divisible by %d spines", spines))
		}
		if ct.LeafPorts > 0 && ct.UplinksPerLeaf > ct.LeafPorts/2 {
			reasons = append(reasons, fmt.Sprintf("exceeds half of %d leaf ports", ct.LeafPorts))
		}
		if len(reasons) == 0 {
			continue
		}

		d.add(models.ImportConflict{
			Path:             path,
			ImportedValue:    ct.UplinksPerLeaf,
			CurrentValue:     valueOrNil(gjson.GetBytes(d.cur, path)),
			SuggestedValue:   suggestUplinks(ct.UplinksPerLeaf, spines, ct.LeafPorts),
			Category:         models.ConflictConstraint,
			Severity:         models.SeverityError,
			Message:          fmt.Sprintf("Leaf class %s: uplinksPerLeaf %d %s", class.ID, ct.UplinksPerLeaf, strings.Join(reasons, " and ")),
			SupportedActions: allActions,
		})
	}
}

// suggestUplinks returns the nearest multiple of spines that fits in half
// the leaf ports
func suggestUplinks(uplinks, spines, leafPorts int) int {
	step := max(spines, 1)
	suggested := int(math.Round(float64(uplinks)/float64(step))) * step
	if suggested < step {
		suggested = step
	}
	if limit := leafPorts / 2; leafPorts > 0 && suggested > limit {
		suggested = (limit / step) * step
	}
	return suggested
}

// ResolveConflict validates an action against a conflict and returns the
// resulting resolution. value is only used by modify.
func ResolveConflict(conflict models.ImportConflict, action models.ResolutionAction, value any) (models.Resolution, error) {
	if !conflict.Supports(action) {
		return models.Resolution{}, fmt.Errorf("%w: %s on %s (supported: %v)", ErrUnsupportedAction, action, conflict.ID, conflict.SupportedActions)
	}

	res := models.Resolution{
		ConflictID:     conflict.ID,
		Path:           conflict.Path,
		Action:         action,
		AffectedFields: affectedFields(conflict.Path),
	}
	switch action {
	case models.ActionAccept:
		res.Value = conflict.ImportedValue
		res.RecomputeRequired = true
	case models.ActionReject:
		res.Value = conflict.CurrentValue
		res.RecomputeRequired = false
	case models.ActionModify:
		if value == nil {
			return models.Resolution{}, fmt.Errorf("%w: %s", ErrModifyRequiresValue, conflict.ID)
		}
		if err := checkModifyValue(conflict, value); err != nil {
			return models.Resolution{}, err
		}
		res.Value = value
		res.RecomputeRequired = true
	default:
		return models.Resolution{}, fmt.Errorf("%w: %q", ErrUnsupportedAction, action)
	}
	return res, nil
}

// checkModifyValue requires a replacement to have the JSON kind of the value
// it replaces. Whole numbers stay whole.
func checkModifyValue(conflict models.ImportConflict, value any) error {
	ref := conflict.ImportedValue
	if ref == nil {
		ref = conflict.CurrentValue
	}
	if ref == nil {
		return nil
	}
	want, err := jsonValue(ref)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidModifyValue, conflict.ID, err)
	}
	got, err := jsonValue(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidModifyValue, conflict.ID, err)
	}

	if kindOf(got) != kindOf(want) {
		return fmt.Errorf("%w: %s expects a %s, got %s", ErrInvalidModifyValue, conflict.ID, kindOf(want), got.Raw)
	}
	if want.Type == gjson.Number && isWhole(want) && !isWhole(got) {
		return fmt.Errorf("%w: %s expects a whole number, got %s", ErrInvalidModifyValue, conflict.ID, got.Raw)
	}
	return nil
}

func jsonValue(v any) (gjson.Result, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.ParseBytes(b), nil
}

func kindOf(r gjson.Result) string {
	switch {
	case r.Type == gjson.True || r.Type == gjson.False:
		return "boolean"
	case r.Type == gjson.Number:
		return "number"
	case r.Type == gjson.String:
		return "string"
	case r.IsArray():
		return "list"
	case r.IsObject():
		return "object"
	default:
		return "null"
	}
}

func isWhole(r gjson.Result) bool {
	return r.Num == math.Trunc(r.Num)
}

// affectedFields lists the derived topology fields a change at path feeds
func affectedFields(path string) []string {
	if strings.HasPrefix(path, metricPathPrefix) {
		return []string{}
	}
	segments := strings.Split(path, ".")
	field := segments[len(segments)-1]
	if _, err := strconv.Atoi(field); err == nil && segments[0] == "leafClasses" {
		// whole class added or removed
		return append([]string{}, allDerivedStats...)
	}

	switch field {
	case "uplinksPerLeaf":
		return []string{"leavesNeeded", "spinesNeeded", "totalPorts", "usedPorts", "oversubscriptionRatio"}
	case "count", "endpointCount", "endpointProfile", "endpointProfiles":
		return append([]string{}, allDerivedStats...)
	case "leafModelId":
		return []string{"leavesNeeded", "spinesNeeded", "totalPorts"}
	case "spineModelId":
		return []string{"spinesNeeded", "totalPorts"}
	case "mcLag":
		return []string{"guards"}
	default:
		return []string{}
	}
}

// ApplyResolutions returns a copy of current with accepted and modified
// values written at their paths. Rejections leave the current value.
// Whole-class removals are applied last, highest index first.
func ApplyResolutions(current models.FabricSpec, resolutions []models.Resolution) (models.FabricSpec, error) {
	doc, err := json.Marshal(current)
	if err != nil {
		return models.FabricSpec{}, fmt.Errorf("failed to encode spec: %w", err)
	}

	var deletions []string
	for _, r := range resolutions {
		if r.Action == models.ActionReject || strings.HasPrefix(r.Path, metricPathPrefix) {
			continue
		}
		if r.Value == nil {
			deletions = append(deletions, r.Path)
			continue
		}
		if parent, ok := strings.CutSuffix(r.Path, ".-1"); ok && !gjson.GetBytes(doc, parent).Exists() {
			if doc, err = sjson.SetBytes(doc, parent, []any{r.Value}); err != nil {
				return models.FabricSpec{}, fmt.Errorf("failed to apply %s: %w", r.Path, err)
			}
			continue
		}
		if doc, err = sjson.SetBytes(doc, r.Path, r.Value); err != nil {
			return models.FabricSpec{}, fmt.Errorf("failed to apply %s: %w", r.Path, err)
		}
	}

	sort.SliceStable(deletions, func(i, j int) bool {
		return trailingIndex(deletions[i]) > trailingIndex(deletions[j])
	})
	for _, path := range deletions {
		if doc, err = sjson.DeleteBytes(doc, path); err != nil {
			return models.FabricSpec{}, fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}

	var out models.FabricSpec
	if err := json.Unmarshal(doc, &out); err != nil {
		return models.FabricSpec{}, fmt.Errorf("resolved spec is not valid: %w", err)
	}
	return out, nil
}

func trailingIndex(path string) int {
	n, err := strconv.Atoi(path[strings.LastIndex(path, ".")+1:])
	if err != nil {
		return -1
	}
	return n
}

func canonical(r gjson.Result) string {
	if r.Type == gjson.JSON {
		b, _ := json.Marshal(r.Value())
		return string(b)
	}
	return r.String()
}

func isScalar(r gjson.Result) bool {
	return r.Type == gjson.Number || r.Type == gjson.String || r.Type == gjson.True || r.Type == gjson.False
}

func valueOrNil(r gjson.Result) any {
	if !r.Exists() {
		return nil
	}
	return r.Value()
}

func display(r gjson.Result) string {
	if !r.Exists() {
		return "<unset>"
	}
	return r.String()
}

// ImportSession drives one detect/resolve/apply cycle
type ImportSession struct {
	ID string

	mu          sync.Mutex
	state       models.ImportState
	current     models.FabricSpec
	conflicts   []models.ImportConflict
	resolutions map[string]models.Resolution
}

// NewImportSession starts an idle session against the current spec
func NewImportSession(id string, current models.FabricSpec) *ImportSession {
	return &ImportSession{
		ID:          id,
		state:       models.ImportIdle,
		current:     current,
		resolutions: make(map[string]models.Resolution),
	}
}

// State returns the session state
func (s *ImportSession) State() models.ImportState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Conflicts returns the detected conflicts
func (s *ImportSession) Conflicts() []models.ImportConflict {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ImportConflict{}, s.conflicts...)
}

// Detect diffs the imported spec. A session without conflicts moves
// straight to resolved.
func (s *ImportSession) Detect(imported models.FabricSpec, importedTopo models.DerivedTopology) ([]models.ImportConflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != models.ImportIdle {
		return nil, fmt.Errorf("%w: detect from %s", ErrInvalidTransition, s.state)
	}
	conflicts, err := DetectConflicts(imported, importedTopo, s.current)
	if err != nil {
		return nil, err
	}
	s.conflicts = conflicts
	s.state = models.ImportConflictsDetected
	if len(conflicts) == 0 {
		s.state = models.ImportResolved
	}
	return append([]models.ImportConflict{}, conflicts...), nil
}

// Resolve records a resolution for one conflict. Once every conflict has a
// resolution the session becomes resolved.
func (s *ImportSession) Resolve(conflictID string, action models.ResolutionAction, value any) (models.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case models.ImportConflictsDetected, models.ImportAccepted, models.ImportRejected, models.ImportModified:
	default:
		return models.Resolution{}, fmt.Errorf("%w: resolve from %s", ErrInvalidTransition, s.state)
	}

	idx := slicesIndex(s.conflicts, conflictID)
	if idx < 0 {
		return models.Resolution{}, fmt.Errorf("%w: %s", ErrConflictNotFound, conflictID)
	}
	res, err := ResolveConflict(s.conflicts[idx], action, value)
	if err != nil {
		return models.Resolution{}, err
	}
	// A replacement must still decode into a spec, or Apply would fail
	// after the session can no longer be resolved again
	if action == models.ActionModify {
		if _, err := ApplyResolutions(s.current, []models.Resolution{res}); err != nil {
			return models.Resolution{}, fmt.Errorf("%w: %s: %v", ErrInvalidModifyValue, conflictID, err)
		}
	}
	s.resolutions[conflictID] = res

	switch action {
	case models.ActionAccept:
		s.state = models.ImportAccepted
	case models.ActionReject:
		s.state = models.ImportRejected
	case models.ActionModify:
		s.state = models.ImportModified
	}
	if len(s.resolutions) == len(s.conflicts) {
		s.state = models.ImportResolved
	}
	return res, nil
}

// Resolutions returns the recorded resolutions in conflict order
func (s *ImportSession) Resolutions() []models.Resolution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderedResolutions()
}

func (s *ImportSession) orderedResolutions() []models.Resolution {
	out := make([]models.Resolution, 0, len(s.resolutions))
	for _, c := range s.conflicts {
		if r, ok := s.resolutions[c.ID]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Apply produces the resolved spec. Only valid once resolved.
func (s *ImportSession) Apply() (models.FabricSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != models.ImportResolved {
		return models.FabricSpec{}, fmt.Errorf("%w: apply from %s", ErrInvalidTransition, s.state)
	}
	return ApplyResolutions(s.current, s.orderedResolutions())
}

func slicesIndex(conflicts []models.ImportConflict, id string) int {
	for i, c := range conflicts {
		if c.ID == id {
			return i
		}
	}
	return -1
}
