package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ramonehamilton/cardsynergy/internal/api/handlers"
	"github.com/ramonehamilton/cardsynergy/internal/api/response"
	"github.com/ramonehamilton/cardsynergy/internal/metrics"
	"github.com/ramonehamilton/cardsynergy/internal/version"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.healthCheck)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		cardHandler := handlers.NewCardHandler(s.engine)
		themeHandler := handlers.NewThemeHandler(s.engine)
		r.Route("/cards", func(r chi.Router) {
			r.Get("/", cardHandler.SearchCards)
			r.Post("/search", cardHandler.SearchCardsPost)
			r.Get("/random", cardHandler.GetRandomCard)
			r.Get("/{cardID}", cardHandler.GetCard)
			r.Get("/{cardID}/recommendations", cardHandler.GetRecommendations)
			r.Get("/{cardID}/themes", themeHandler.GetSuggestions)
			r.Get("/{cardID}/themes/{theme}/cards", themeHandler.GetThemeCards)
		})

		r.Get("/themes", themeHandler.GetCatalog)

		voteHandler := handlers.NewVoteHandler(s.engine)
		r.Route("/votes", func(r chi.Router) {
			r.Post("/", voteHandler.SubmitVote)
			r.Get("/{targetType}/{targetID}", voteHandler.GetVote)
		})

		r.Delete("/admin/themes", themeHandler.ResetThemes)
	})
}

// healthCheck returns server health and recent scoring latency.
func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": version.Service,
		"version": version.Version,
		"scoring": metrics.ScoringLatency(),
	})
}
