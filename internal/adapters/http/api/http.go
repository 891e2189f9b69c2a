// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fragworks/fragstats/internal/adapters/repository"
	"github.com/fragworks/fragstats/internal/domain/event"
	"github.com/fragworks/fragstats/internal/domain/rating"
	"github.com/fragworks/fragstats/internal/domain/state"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// SeenAndRecord atomically checks and records an event id.
	SeenAndRecord(ctx context.Context, id string) bool
	// Unrecord rolls back a recorded id after a failed process.
	Unrecord(ctx context.Context, id string)
	// Process runs one event through the engine pipeline.
	Process(ctx context.Context, e event.Event) error

	// Read operations expose engine state.
	TopN(ctx context.Context, n int) ([]repository.Entry, error)
	Rating(ctx context.Context, playerID string) (rating.SkillRating, error)
	ServerState(ctx context.Context, id string) state.ServerState
	GetStats() map[string]interface{}
}

// Server wires HTTP routes for the engine API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	eventsHandler      *EventsHandler
	leaderboardHandler *LeaderboardHandler
	serversHandler     *ServersHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		eventsHandler:      NewEventsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, defaultMaxLimit),
		serversHandler:     NewServersHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/servers/", MetricsMiddleware(s.serversHandler.HandleGetServer, "servers"))
}

type ackResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
