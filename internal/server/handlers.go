package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okaneconnor/azure-devops-mcp/internal/tools"
)

// invocation is the request body of POST /tools/{name}.
type invocation struct {
	Arguments map[string]any `json:"arguments"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"server_name":     serverName,
		"circuit_breaker": s.breaker.State().String(),
	})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"server_name": serverName,
		"tools":       tools.Definitions(),
	})
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	// An empty body means a call with no arguments.
	var inv invocation
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   true,
			"message": "request body must be JSON with an 'arguments' object",
		})
		return
	}
	if inv.Arguments == nil {
		inv.Arguments = map[string]any{}
	}

	caller := tools.IdentityFromRequest(r)

	payload, err := s.service.Dispatch(r.Context(), name, caller, inv.Arguments)
	if err != nil {
		if errors.Is(err, tools.ErrUnknownTool) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error":   true,
				"message": "unknown tool: " + name,
			})
			return
		}
		s.logger.Error("tool dispatch failed", "tool_name", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   true,
			"message": "internal error",
		})
		return
	}

	writeJSON(w, http.StatusOK, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
