// ABOUTME: HTTP handlers for health, switch catalog and spec schema endpoints
// ABOUTME: Read-only endpoints that never touch the compilation pipeline

package handlers

import (
	"net/http"

	"github.com/markalston/fabric-planner/backend/models"
	"github.com/markalston/fabric-planner/backend/services"
)

// Health returns API health status including catalog size and store status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status:        "ok",
		CatalogModels: h.registry.Len(),
		StoreDir:      h.store.Root(),
		StoreWritable: h.store.Writable(),
	}
	if !resp.StoreWritable {
		resp.Status = "degraded"
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Catalog returns every registered switch profile
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"switches": h.registry.Profiles(),
	})
}

// Schema returns the JSON Schema of the fabric spec document
func (h *Handler) Schema(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, services.SpecSchema())
}
