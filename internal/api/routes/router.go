package routes

import (
	"net/http"

	"github.com/zatekoja/feedbackhub/internal/api/handlers"
	"github.com/zatekoja/feedbackhub/internal/api/middleware"
	"github.com/zatekoja/feedbackhub/internal/infrastructure/observability"
)

// Handlers groups the route handlers the router mounts
type Handlers struct {
	Feedback      *handlers.FeedbackHandler
	Analytics     *handlers.AnalyticsHandler
	Projects      *handlers.ProjectHandler
	AdminFeedback *handlers.AdminFeedbackHandler
	Notifications *handlers.NotificationHandler
	Stream        *handlers.StreamHandler
}

// Options configures the middleware chain
type Options struct {
	AdminToken     string
	AllowedOrigins []string
	Metrics        *observability.Metrics
}

// Router holds all route handlers
type Router struct {
	mux      *http.ServeMux
	handlers Handlers
	opts     Options
}

// NewRouter creates a new router
func NewRouter(h Handlers, opts Options) *Router {
	return &Router{
		mux:      http.NewServeMux(),
		handlers: h,
		opts:     opts,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Public endpoints
	r.mux.HandleFunc("POST /api/feedback", r.handlers.Feedback.SubmitFeedback)
	r.mux.HandleFunc("GET /api/analytics", r.handlers.Analytics.GetAnalytics)

	admin := middleware.AdminAuth(r.opts.AdminToken)
	handle := func(pattern string, fn http.HandlerFunc) {
		r.mux.Handle(pattern, admin(fn))
	}

	// Search is Typesense-backed and exposes raw submissions, so it sits
	// behind the admin token with the other feedback readers.
	handle("GET /api/feedback/search", r.handlers.AdminFeedback.SearchFeedback)

	handle("POST /api/admin/projects", r.handlers.Projects.CreateProject)
	handle("GET /api/admin/projects", r.handlers.Projects.ListProjects)
	handle("GET /api/admin/projects/{id}", r.handlers.Projects.GetProject)
	handle("PATCH /api/admin/projects/{id}", r.handlers.Projects.UpdateProject)
	handle("POST /api/admin/projects/{id}/regenerate-key", r.handlers.Projects.RegenerateKey)
	handle("DELETE /api/admin/projects/{id}", r.handlers.Projects.DeleteProject)

	handle("GET /api/admin/feedback", r.handlers.AdminFeedback.ListFeedback)
	handle("GET /api/admin/feedback/stream", r.handlers.Stream.StreamFeedbackEvents)
	handle("GET /api/admin/feedback/{id}", r.handlers.AdminFeedback.GetFeedback)
	handle("DELETE /api/admin/feedback/{id}", r.handlers.AdminFeedback.DeleteFeedback)

	handle("POST /api/admin/notifications/test", r.handlers.Notifications.SendTest)
	handle("GET /api/admin/notifications/providers", r.handlers.Notifications.ListProviders)

	// Apply middleware in reverse order (last middleware wraps first).
	// CORS is outermost so preflight and error responses carry its headers.
	var handler http.Handler = r.mux
	handler = middleware.Compression(handler)
	handler = middleware.ETag(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.opts.Metrics)(handler)
	handler = middleware.RecoveryMiddleware(handler)
	handler = middleware.CORSMiddleware(r.opts.AllowedOrigins)(handler)

	return handler
}
