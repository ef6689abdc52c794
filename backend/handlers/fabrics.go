// ABOUTME: HTTP handlers for saving and loading compiled fabrics
// ABOUTME: Saving refuses blocking compile results with 422

package handlers

import (
	"errors"
	"net/http"

	"github.com/markalston/fabric-planner/backend/models"
	"github.com/markalston/fabric-planner/backend/services"
	"github.com/markalston/fabric-planner/backend/store"
)

// SaveResponse summarizes a saved fabric
type SaveResponse struct {
	FabricID    string                `json:"fabricId"`
	Fingerprint string                `json:"fingerprint"`
	Metadata    models.WiringMetadata `json:"metadata"`
	Warnings    []string              `json:"warnings"`
}

// FabricResponse is a saved fabric's wiring
type FabricResponse struct {
	FabricID string         `json:"fabricId"`
	Wiring   *models.Wiring `json:"wiring"`
}

// ListFabrics returns the ids of saved fabrics
func (h *Handler) ListFabrics(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.List()
	if err != nil {
		writeError(w, "Failed to list fabrics", err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string][]string{"fabrics": ids})
}

// SaveFabric compiles the request spec and stores its wiring documents
func (h *Handler) SaveFabric(w http.ResponseWriter, r *http.Request) {
	fabricID := r.PathValue("id")
	if err := services.ValidateFabricID(fabricID); err != nil {
		writeError(w, "Invalid fabric id", err.Error(), http.StatusBadRequest)
		return
	}

	spec, ok := h.decodeSpec(w, r)
	if !ok {
		return
	}

	result, _, err := h.compile(r, spec)
	if err != nil {
		writeCompileError(w, err)
		return
	}
	if result.Blocking() {
		h.writeJSON(w, http.StatusUnprocessableEntity, CompileResponse{
			CompileResult:   result,
			Blocking:        true,
			BlockingReasons: result.BlockingReasons(),
		})
		return
	}

	docs, err := services.EmitYAML(result.Wiring)
	if err != nil {
		writeError(w, "Failed to serialize wiring", err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.store.Save(r.Context(), fabricID, docs); err != nil {
		if errors.Is(err, store.ErrLocked) {
			writeError(w, "Fabric is being written by another request", err.Error(), http.StatusConflict)
			return
		}
		writeError(w, "Failed to save fabric", err.Error(), http.StatusInternalServerError)
		return
	}

	warnings := append([]string{}, result.Validation.Warnings...)
	for _, d := range result.Rules.Warnings {
		warnings = append(warnings, d.Code+": "+d.Message)
	}
	h.writeJSON(w, http.StatusOK, SaveResponse{
		FabricID:    fabricID,
		Fingerprint: result.Fingerprint,
		Metadata:    result.Wiring.Metadata,
		Warnings:    warnings,
	})
}

// GetFabric loads a saved fabric. ?format=yaml returns the raw document bundle.
func (h *Handler) GetFabric(w http.ResponseWriter, r *http.Request) {
	fabricID := r.PathValue("id")
	docs, err := h.store.Load(r.Context(), fabricID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			h.writeError(w, "Fabric not found", http.StatusNotFound)
		case errors.Is(err, store.ErrLocked):
			writeError(w, "Fabric is being saved", err.Error(), http.StatusConflict)
		case services.ValidateFabricID(fabricID) != nil:
			writeError(w, "Invalid fabric id", err.Error(), http.StatusBadRequest)
		default:
			writeError(w, "Failed to load fabric", err.Error(), http.StatusInternalServerError)
		}
		return
	}

	if r.URL.Query().Get("format") == "yaml" {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		w.Write(docs.Bundle())
		return
	}

	wiring, err := services.ParseDocuments(docs)
	if err != nil {
		writeError(w, "Failed to parse fabric", err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, FabricResponse{FabricID: fabricID, Wiring: wiring})
}
