package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/quillpost/quillpost/internal/auth"
	"github.com/quillpost/quillpost/internal/interactions"
	"github.com/quillpost/quillpost/internal/observability"
	"github.com/quillpost/quillpost/internal/posts"
	"github.com/quillpost/quillpost/internal/users"
	"github.com/quillpost/quillpost/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	ActorMiddleware     func(http.Handler) http.Handler
	AuthHandler         *auth.Handler
	UsersHandler        *users.Handler
	PostsHandler        *posts.Handler
	InteractionsHandler *interactions.Handler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with Quillpost defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Actor:   params.ActorMiddleware,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.PostsHandler != nil {
		params.PostsHandler.MountRoutes(r)
	}
	if params.InteractionsHandler != nil {
		params.InteractionsHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
