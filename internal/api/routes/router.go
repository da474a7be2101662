package routes

import (
	"net/http"

	"github.com/zatekoja/furniturefinder/internal/api/handlers"
	"github.com/zatekoja/furniturefinder/internal/api/middleware"
	"github.com/zatekoja/furniturefinder/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux            *http.ServeMux
	browseHandler  *handlers.BrowseHandler
	metrics        *observability.Metrics
	allowedOrigins []string
}

// NewRouter creates a new router
func NewRouter(browseHandler *handlers.BrowseHandler, metrics *observability.Metrics, allowedOrigins []string) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		browseHandler:  browseHandler,
		metrics:        metrics,
		allowedOrigins: allowedOrigins,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Session endpoints
	r.mux.HandleFunc("POST /api/sessions", r.browseHandler.CreateSession)
	r.mux.HandleFunc("DELETE /api/sessions/{id}", r.browseHandler.DeleteSession)

	// Filter endpoints
	r.mux.HandleFunc("GET /api/sessions/{id}/filters", r.browseHandler.GetFilters)
	r.mux.HandleFunc("DELETE /api/sessions/{id}/filters", r.browseHandler.ClearFilters)
	r.mux.HandleFunc("POST /api/sessions/{id}/filters/{facet}/{value}", r.browseHandler.AddFilter)
	r.mux.HandleFunc("DELETE /api/sessions/{id}/filters/{facet}/{value}", r.browseHandler.RemoveFilter)
	r.mux.HandleFunc("PUT /api/sessions/{id}/filters/price", r.browseHandler.SetPrice)
	r.mux.HandleFunc("PUT /api/sessions/{id}/filters/sort", r.browseHandler.SetSort)
	r.mux.HandleFunc("PUT /api/sessions/{id}/filters/navigation", r.browseHandler.SetNavigation)
	r.mux.HandleFunc("PUT /api/sessions/{id}/search", r.browseHandler.SetSearch)

	// Product endpoints
	r.mux.HandleFunc("GET /api/sessions/{id}/products", r.browseHandler.GetProducts)
	r.mux.HandleFunc("POST /api/sessions/{id}/products/next", r.browseHandler.FetchNextPage)
	r.mux.HandleFunc("POST /api/sessions/{id}/products/refresh", r.browseHandler.Refresh)
	r.mux.HandleFunc("POST /api/sessions/{id}/products/retry", r.browseHandler.Retry)
	r.mux.HandleFunc("GET /api/sessions/{id}/stream", r.browseHandler.StreamProducts)

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// CORS wraps everything so headers are set on every response
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
