// Package api declares HTTP contracts and route registration helpers.
package api

import "net/http"

// StatsProvider exposes the engine's diagnostic counters: saga monitor
// snapshot, active server count, tracked players and dedupe occupancy.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves the engine diagnostics endpoint.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.provider.GetStats())
}
