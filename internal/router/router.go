package router

import (
	"net/http"
	"time"

	"github.com/actuallystonmai/measurement-service/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func Setup(h *handler.Handler, apiKey string) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Routes
	r.Route("/measurements", func(r chi.Router) {
		r.Use(handler.RequireAPIKey(apiKey))

		r.Post("/validate", h.ValidateMeasurements)
		r.Post("/validate/batch", h.ValidateBatch)
		r.Post("/recommend", h.RecommendSizes)
		r.Get("/sessions/{sessionID}", h.GetSession)
		r.Get("/landmarks/{landmarkID}", h.GetLandmarkSet)
		r.Get("/review-flags", h.ListReviewFlags)
	})
	r.Get("/health", h.Health)

	return r
}
