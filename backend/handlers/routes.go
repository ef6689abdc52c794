// ABOUTME: Declarative route table for API endpoints
// ABOUTME: Defines all routes with their HTTP methods and handlers

package handlers

import (
	"net/http"

	"github.com/markalston/fabric-planner/backend/middleware"
)

// defaultMaxBodyBytes applies when the handler has no config
const defaultMaxBodyBytes = 1 << 20

// Route defines an API endpoint with its HTTP method and handler.
type Route struct {
	Method  string           // HTTP method (GET, POST, etc.)
	Path    string           // URL path, may contain {id} wildcards
	Handler http.HandlerFunc // Handler function
}

// Pattern returns the ServeMux pattern for the route
func (r Route) Pattern() string {
	return r.Method + " " + r.Path
}

// Routes returns all API routes for registration.
func (h *Handler) Routes() []Route {
	return []Route{
		// Health & reference data
		{Method: http.MethodGet, Path: "/api/v1/health", Handler: h.Health},
		{Method: http.MethodGet, Path: "/api/v1/catalog", Handler: h.Catalog},
		{Method: http.MethodGet, Path: "/api/v1/schema", Handler: h.Schema},

		// Pipeline
		{Method: http.MethodPost, Path: "/api/v1/topology", Handler: h.ComputeTopology},
		{Method: http.MethodPost, Path: "/api/v1/allocation", Handler: h.AllocateUplinks},
		{Method: http.MethodPost, Path: "/api/v1/compile", Handler: h.Compile},
		{Method: http.MethodPost, Path: "/api/v1/rules", Handler: h.EvaluateRules},
		{Method: http.MethodPost, Path: "/api/v1/wiring/validate", Handler: h.ValidateWiring},

		// Import
		{Method: http.MethodPost, Path: "/api/v1/import", Handler: h.StartImport},
		{Method: http.MethodGet, Path: "/api/v1/import/{id}", Handler: h.GetImport},
		{Method: http.MethodPost, Path: "/api/v1/import/{id}/resolve", Handler: h.ResolveImport},
		{Method: http.MethodPost, Path: "/api/v1/import/{id}/apply", Handler: h.ApplyImport},

		// Fabrics
		{Method: http.MethodGet, Path: "/api/v1/fabrics", Handler: h.ListFabrics},
		{Method: http.MethodPut, Path: "/api/v1/fabrics/{id}", Handler: h.SaveFabric},
		{Method: http.MethodGet, Path: "/api/v1/fabrics/{id}", Handler: h.GetFabric},
	}
}

// NewServeMux registers every route behind the request middleware chain.
// A nil limits disables rate limiting.
func (h *Handler) NewServeMux(limits *middleware.Limits) *http.ServeMux {
	var origins []string
	maxBody := int64(defaultMaxBodyBytes)
	if h.cfg != nil {
		origins = h.cfg.CORSAllowedOrigins
		if h.cfg.MaxRequestBodyBytes > 0 {
			maxBody = h.cfg.MaxRequestBodyBytes
		}
	}
	cors := middleware.CORS(origins)

	mux := http.NewServeMux()
	for _, route := range h.Routes() {
		mux.HandleFunc(route.Pattern(), middleware.Chain(route.Handler,
			middleware.LogRequest,
			middleware.Recover,
			cors,
			middleware.RateLimit(limits.ForMethod(route.Method), middleware.ClientIP),
			middleware.LimitBody(maxBody),
		))
	}

	// Preflight for every API path
	mux.HandleFunc("OPTIONS /api/", middleware.Chain(func(w http.ResponseWriter, r *http.Request) {},
		middleware.LogRequest,
		cors,
	))
	return mux
}
