package server

import (
	"log/slog"
	"net/http"

	"basket-dashboard/internal/config"
	"basket-dashboard/internal/handlers"
	"basket-dashboard/internal/services"
)

type Server struct {
	miner       *services.Miner
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(miner *services.Miner, mining config.MiningConfig, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		miner:       miner,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(miner, mining, logger),
		sseHandlers: handlers.NewSSEHandlers(miner, mining, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	s.mux.HandleFunc("GET /api/countries", s.apiHandlers.HandleCountries)
	s.mux.HandleFunc("GET /api/rules", s.apiHandlers.HandleRules)
	s.mux.HandleFunc("GET /api/rules/export", s.apiHandlers.HandleExport)
	s.mux.HandleFunc("GET /api/recommendations", s.apiHandlers.HandleRecommendations)

	// Datastar SSE endpoints driving the reactive dashboard
	s.mux.HandleFunc("GET /sse/rules", s.sseHandlers.HandleRules)
	s.mux.HandleFunc("GET /sse/recommendations", s.sseHandlers.HandleRecommendations)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
