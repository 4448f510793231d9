package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Briefing runs
	mux.HandleFunc("/api/briefing/run", s.app.BriefingHandler.RunHandler)     // POST - start a run
	mux.HandleFunc("/api/briefing/runs", s.app.BriefingHandler.RunsHandler)   // GET - recent run results
	mux.HandleFunc("/api/briefing/stats", s.app.BriefingHandler.StatsHandler) // GET - aggregate statistics

	// API routes - On-demand analysis
	mux.HandleFunc("/api/analysis/", s.app.AnalysisHandler.AnalyzeHandler)     // GET /{symbol}?user_id=
	mux.HandleFunc("/api/symbols/search", s.app.AnalysisHandler.SearchHandler) // GET ?q=

	// API routes - Watchlists
	mux.HandleFunc("/api/watchlist", s.handleWatchlistRoute)   // GET (list), POST (add)
	mux.HandleFunc("/api/watchlist/", s.handleWatchlistRoutes) // DELETE /{id}

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}

func (s *Server) handleWatchlistRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r, s.app.WatchlistHandler.ListHandler, s.app.WatchlistHandler.AddHandler)
}

func (s *Server) handleWatchlistRoutes(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		http.MethodDelete: s.app.WatchlistHandler.RemoveHandler,
	})
}
