package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/GlacierEQ/llmbridge/app"
	"github.com/GlacierEQ/llmbridge/handlers"
	"github.com/GlacierEQ/llmbridge/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	if deps.Config.Server.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(deps.Config.Server.RequestTimeout))
	}
	r.Use(middleware.Throttle(deps.Config.Server.ThrottleRPS, deps.Config.Server.ThrottleBurst, deps.Logger))

	// CORS middleware. The add-in's task pane runs in a webview, so its
	// origin must be allowed explicitly.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	healthHandler := handlers.NewHealthHandler(deps.Registry, deps.Logger)
	completionHandler := handlers.NewCompletionHandler(deps.Client, deps.Logger)
	modelsHandler := handlers.NewModelsHandler(deps.Client, deps.Logger)
	settingsHandler := handlers.NewSettingsHandler(deps.Credentials, deps.Logger)

	// Health check endpoint
	r.Get("/healthz", healthHandler.HandleHealth)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/generate", completionHandler.HandleGenerate)
		r.Post("/chat/completions", completionHandler.HandleChatCompletion)
		r.Post("/completions", completionHandler.HandleCompletion)
		r.Post("/embeddings", completionHandler.HandleEmbedding)

		r.Get("/models/{provider}", modelsHandler.HandleListModels)

		r.Get("/settings", settingsHandler.HandleGetSettings)
		r.Put("/settings", settingsHandler.HandleUpdateSettings)
		r.Put("/settings/provider", settingsHandler.HandleSetActiveProvider)
		r.Put("/settings/keys/{provider}", settingsHandler.HandleSetKey)
		r.Put("/settings/endpoints/{provider}", settingsHandler.HandleSetEndpoint)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
