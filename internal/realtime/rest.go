package realtime

import (
	"context"
	"encoding/json"
	"net/http"

	"project-tracker/internal/observability"
	"project-tracker/internal/snapshot"
)

type configResponse struct {
	PollIntervalMs int64 `json:"pollIntervalMs"`
}

// Snapshot endpoints always answer 200. A degraded build is logged and
// its fallback payload served.

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	out := s.snapshots.Agents(r.Context())
	logDegraded(r.Context(), snapshot.KindAgents, out.Err)
	writeJSON(w, r, http.StatusOK, out.Snapshot)
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	out := s.snapshots.Projects(r.Context())
	logDegraded(r.Context(), snapshot.KindProjects, out.Err)
	w.Header().Set("Cache-Control", "no-store, must-revalidate")
	writeJSON(w, r, http.StatusOK, out.Snapshot)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	agents, projects := s.snapshots.Dashboard(r.Context())
	logDegraded(r.Context(), snapshot.KindAgents, agents.Err)
	logDegraded(r.Context(), snapshot.KindProjects, projects.Err)
	w.Header().Set("Cache-Control", "no-store, must-revalidate")
	writeJSON(w, r, http.StatusOK, snapshot.Dashboard{
		Agents:   agents.Snapshot,
		Projects: projects.Snapshot,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, configResponse{
		PollIntervalMs: s.pollInterval.Milliseconds(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func logDegraded(ctx context.Context, kind string, err error) {
	if err == nil {
		return
	}
	observability.LoggerFromContext(ctx).Warn("serving fallback snapshot",
		"kind", kind,
		"error", err,
	)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error("encode response", "error", err)
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
