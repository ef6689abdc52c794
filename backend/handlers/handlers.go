// ABOUTME: HTTP handlers for the fabric planner API
// ABOUTME: Holds the compiler, artifact store, compile cache and open import sessions

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/markalston/fabric-planner/backend/cache"
	"github.com/markalston/fabric-planner/backend/config"
	"github.com/markalston/fabric-planner/backend/models"
	"github.com/markalston/fabric-planner/backend/services"
	"github.com/markalston/fabric-planner/backend/store"
	"golang.org/x/sync/singleflight"
)

// importSessionTTL is how long an unapplied import session is kept
const importSessionTTL = 30 * time.Minute

type Handler struct {
	cfg      *config.Config
	registry *services.SwitchProfileRegistry
	compiler *services.Compiler
	store    *store.FabricStore
	results  *cache.Cache[*models.CompileResult]
	sessions *cache.Cache[*services.ImportSession]
	inflight singleflight.Group
}

// NewHandler creates the API handler. A nil registry uses the built-in
// switch catalog, a nil store is rooted at cfg.DataDir (or ./fabrics) and a
// nil cache disables compile caching.
func NewHandler(cfg *config.Config, registry *services.SwitchProfileRegistry, fabrics *store.FabricStore, results *cache.Cache[*models.CompileResult]) *Handler {
	if registry == nil {
		registry = services.DefaultRegistry()
	}
	if fabrics == nil {
		dir := "./fabrics"
		if cfg != nil && cfg.DataDir != "" {
			dir = cfg.DataDir
		}
		fabrics = store.New(dir)
	}
	if results == nil {
		results = cache.New[*models.CompileResult](0)
	}

	return &Handler{
		cfg:      cfg,
		registry: registry,
		compiler: services.NewCompiler(registry, nil),
		store:    fabrics,
		results:  results,
		sessions: cache.New[*services.ImportSession](importSessionTTL),
	}
}

// Close stops the handler's background sweepers
func (h *Handler) Close() {
	h.results.Close()
	h.sessions.Close()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	writeError(w, message, "", code)
}

func writeError(w http.ResponseWriter, message, details string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error:   message,
		Details: details,
		Code:    code,
	})
}

// decodeJSON strictly decodes the request body into v
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// decodeSpec reads a spec body and checks its structure. On failure the
// error response has been written and ok is false.
func (h *Handler) decodeSpec(w http.ResponseWriter, r *http.Request) (spec models.FabricSpec, ok bool) {
	if err := decodeJSON(r, &spec); err != nil {
		writeBodyError(w, err)
		return spec, false
	}
	if err := services.ValidateSpec(spec); err != nil {
		writeError(w, "Invalid fabric spec", err.Error(), http.StatusBadRequest)
		return spec, false
	}
	return spec, true
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, "Request body too large", "", http.StatusRequestEntityTooLarge)
		return
	}
	if errors.Is(err, io.EOF) {
		writeError(w, "Request body is empty", "", http.StatusBadRequest)
		return
	}
	writeError(w, "Invalid JSON", err.Error(), http.StatusBadRequest)
}

// writeCompileError maps pipeline failures to status codes
func writeCompileError(w http.ResponseWriter, err error) {
	var notFound *services.ProfileNotFoundError
	if errors.As(err, &notFound) {
		writeError(w, "Unknown switch model", notFound.Error(), http.StatusUnprocessableEntity)
		return
	}
	slog.Error("Fabric compilation failed", "error", err)
	writeError(w, "Fabric compilation failed", "", http.StatusInternalServerError)
}

// compile runs the pipeline once per fingerprint: results are cached and
// concurrent requests for the same spec share one compilation
func (h *Handler) compile(r *http.Request, spec models.FabricSpec) (*models.CompileResult, bool, error) {
	fingerprint, err := services.Fingerprint(spec)
	if err != nil {
		return nil, false, err
	}
	if result, ok := h.results.Get(fingerprint); ok {
		return result, true, nil
	}

	// The shared compile outlives the first caller, so it ignores its cancellation
	ctx := context.WithoutCancel(r.Context())
	v, err, shared := h.inflight.Do(fingerprint, func() (any, error) {
		result, err := h.compiler.Compile(ctx, spec)
		if err != nil {
			return nil, err
		}
		h.results.Set(fingerprint, result)
		return result, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("compile %s: %w", fingerprint, err)
	}
	if shared {
		slog.Debug("Shared in-flight compilation", "fingerprint", fingerprint)
	}
	return v.(*models.CompileResult), false, nil
}
