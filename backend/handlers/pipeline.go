// ABOUTME: HTTP handlers exposing each pipeline stage and the full compile
// ABOUTME: Stage endpoints accept a fabric spec; wiring validation accepts a wiring diagram

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/markalston/fabric-planner/backend/models"
	"github.com/markalston/fabric-planner/backend/services"
)

// ComputeTopology sizes the fabric described by the request spec
func (h *Handler) ComputeTopology(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.decodeSpec(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.compiler.Topology().Compute(spec))
}

// AllocateUplinks sizes the fabric and assigns leaf uplinks to spine ports
func (h *Handler) AllocateUplinks(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.decodeSpec(w, r)
	if !ok {
		return
	}
	ns := spec.Normalize()
	topo := h.compiler.Topology().ComputeNormalized(ns)
	alloc := h.compiler.Allocator().AllocateSpec(ns, topo, h.compiler.Profiles())
	h.writeJSON(w, http.StatusOK, alloc)
}

// EvaluateRules runs the validation rules against the request spec
func (h *Handler) EvaluateRules(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.decodeSpec(w, r)
	if !ok {
		return
	}
	topo := h.compiler.Topology().Compute(spec)
	h.writeJSON(w, http.StatusOK, h.compiler.Rules().Evaluate(spec, topo, h.compiler.Catalog()))
}

// CompileResponse is a compile result plus whether it came from the cache
type CompileResponse struct {
	*models.CompileResult
	Cached          bool     `json:"cached"`
	Blocking        bool     `json:"blocking"`
	BlockingReasons []string `json:"blockingReasons,omitempty"`
}

// Compile runs the full pipeline. Blocking results still return 200; only
// persisting them is refused.
func (h *Handler) Compile(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.decodeSpec(w, r)
	if !ok {
		return
	}

	result, cached, err := h.compile(r, spec)
	if err != nil {
		writeCompileError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, CompileResponse{
		CompileResult:   result,
		Cached:          cached,
		Blocking:        result.Blocking(),
		BlockingReasons: result.BlockingReasons(),
	})
}

// ValidateWiring checks a wiring diagram for structural errors
func (h *Handler) ValidateWiring(w http.ResponseWriter, r *http.Request) {
	var wiring models.Wiring
	if err := decodeJSON(r, &wiring); err != nil {
		writeBodyError(w, err)
		return
	}

	result := services.ValidateWiring(&wiring)
	slog.Debug("Wiring validated",
		"fabric", wiring.Metadata.FabricName,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
	)
	h.writeJSON(w, http.StatusOK, result)
}
