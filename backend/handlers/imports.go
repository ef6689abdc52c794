// ABOUTME: HTTP handlers for the import conflict workflow
// ABOUTME: Detect opens a session; resolve and apply drive it until the merged spec is produced

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/markalston/fabric-planner/backend/models"
	"github.com/markalston/fabric-planner/backend/services"
)

// ImportRequest carries both sides of an import
type ImportRequest struct {
	Imported models.FabricSpec `json:"imported"`
	Current  models.FabricSpec `json:"current"`
}

// ImportResponse describes an import session
type ImportResponse struct {
	SessionID   string                  `json:"sessionId"`
	State       models.ImportState      `json:"state"`
	Conflicts   []models.ImportConflict `json:"conflicts"`
	Resolutions []models.Resolution     `json:"resolutions"`
}

// ResolveRequest resolves one conflict of a session
type ResolveRequest struct {
	ConflictID string                  `json:"conflictId"`
	Action     models.ResolutionAction `json:"action"`
	Value      any                     `json:"value,omitempty"`
}

// ResolveResponse is the recorded resolution and the session state after it
type ResolveResponse struct {
	Resolution models.Resolution  `json:"resolution"`
	State      models.ImportState `json:"state"`
}

// ApplyResponse is the merged spec and its recomputed topology
type ApplyResponse struct {
	Spec     models.FabricSpec      `json:"spec"`
	Topology models.DerivedTopology `json:"topology"`
}

// StartImport detects conflicts between the imported and current specs
func (h *Handler) StartImport(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	for _, spec := range []models.FabricSpec{req.Imported, req.Current} {
		if err := services.ValidateSpec(spec); err != nil {
			writeError(w, "Invalid fabric spec", err.Error(), http.StatusBadRequest)
			return
		}
	}

	session := services.NewImportSession(uuid.NewString(), req.Current)
	conflicts, err := session.Detect(req.Imported, h.compiler.Topology().Compute(req.Imported))
	if err != nil {
		slog.Error("Import conflict detection failed", "error", err)
		h.writeError(w, "Conflict detection failed", http.StatusInternalServerError)
		return
	}
	h.sessions.Set(session.ID, session)

	slog.Info("Import session opened", "session", session.ID, "conflicts", len(conflicts))
	h.writeJSON(w, http.StatusCreated, ImportResponse{
		SessionID:   session.ID,
		State:       session.State(),
		Conflicts:   conflicts,
		Resolutions: []models.Resolution{},
	})
}

// GetImport returns the state of an open session
func (h *Handler) GetImport(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, ImportResponse{
		SessionID:   session.ID,
		State:       session.State(),
		Conflicts:   session.Conflicts(),
		Resolutions: session.Resolutions(),
	})
}

// ResolveImport records one conflict resolution
func (h *Handler) ResolveImport(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req ResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	res, err := session.Resolve(req.ConflictID, req.Action, req.Value)
	if err != nil {
		writeResolverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ResolveResponse{Resolution: res, State: session.State()})
}

// ApplyImport produces the merged spec and closes the session
func (h *Handler) ApplyImport(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	spec, err := session.Apply()
	if err != nil {
		writeResolverError(w, err)
		return
	}
	h.sessions.Clear(session.ID)

	slog.Info("Import session applied", "session", session.ID)
	h.writeJSON(w, http.StatusOK, ApplyResponse{
		Spec:     spec,
		Topology: h.compiler.Topology().Compute(spec),
	})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*services.ImportSession, bool) {
	id := r.PathValue("id")
	session, ok := h.sessions.Get(id)
	if !ok {
		h.writeError(w, "Import session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func writeResolverError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrConflictNotFound):
		writeError(w, "Conflict not found", err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrInvalidTransition):
		writeError(w, "Invalid import state transition", err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrUnsupportedAction), errors.Is(err, services.ErrModifyRequiresValue),
		errors.Is(err, services.ErrInvalidModifyValue):
		writeError(w, "Invalid resolution", err.Error(), http.StatusBadRequest)
	default:
		slog.Error("Import resolution failed", "error", err)
		writeError(w, "Import resolution failed", "", http.StatusInternalServerError)
	}
}
