// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strings"
)

// ServersHandler handles server-state diagnostics requests.
type ServersHandler struct {
	deps Dependencies
}

// NewServersHandler creates a new servers handler.
func NewServersHandler(deps Dependencies) *ServersHandler {
	return &ServersHandler{deps: deps}
}

// HandleGetServer handles GET /servers/{server_id} requests.
func (h *ServersHandler) HandleGetServer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/servers/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	st := h.deps.ServerState(r.Context(), id)
	writeJSON(w, http.StatusOK, st)
}
