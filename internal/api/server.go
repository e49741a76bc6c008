// Package api exposes the conversation loop and schedule management over
// HTTP. Chat responses stream progress events as newline-delimited JSON so
// the client can show tool activity while the turn runs.
package api

import (
	"encoding/json"
	"net/http"

	"saintagent/internal/agent"
	"saintagent/internal/browser"
	"saintagent/internal/logging"
	"saintagent/internal/store"
	"saintagent/internal/tools"
)

// RegistryFactory builds the tool registry for one user's conversation.
// Registries are per-user because the portal tools bind to the user's
// browser session and credentials.
type RegistryFactory func(userID int64) (*tools.Registry, error)

// Server is the HTTP front end.
type Server struct {
	agent     *agent.Agent
	st        *store.Store
	registryF RegistryFactory
	mux       *http.ServeMux
}

// NewServer wires the HTTP handlers.
func NewServer(a *agent.Agent, st *store.Store, registryF RegistryFactory) *Server {
	s := &Server{agent: a, st: st, registryF: registryF, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /v1/chat", s.handleChat)
	s.mux.HandleFunc("GET /v1/health", s.handleHealth)
	s.mux.HandleFunc("POST /v1/schedules", s.handleCreateSchedule)
	s.mux.HandleFunc("GET /v1/schedules", s.handleListSchedules)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type chatRequest struct {
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
}

type chatEvent struct {
	Type string `json:"type"`
	Tool string `json:"tool,omitempty"`
	Text string `json:"text"`
}

// handleChat runs one conversation turn and streams its events. The
// response is NDJSON; the last line is always a message or error event.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID <= 0 || req.Message == "" {
		httpError(w, http.StatusBadRequest, "user_id and message are required")
		return
	}

	registry, err := s.registryF(req.UserID)
	if err != nil {
		logging.Get(logging.CategoryAPI).Error("build registry for user %d: %v", req.UserID, err)
		httpError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	key := browser.UserKey(req.UserID)
	logging.API("chat turn start (user=%d)", req.UserID)
	enc := json.NewEncoder(w)
	for ev := range s.agent.HandleMessage(r.Context(), key, registry, req.Message) {
		if err := enc.Encode(chatEvent{Type: string(ev.Type), Tool: ev.Tool, Text: ev.Text}); err != nil {
			logging.Get(logging.CategoryAPI).Warn("chat stream write failed: %v", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	logging.API("chat turn done (user=%d)", req.UserID)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scheduleRequest struct {
	UserID   int64  `json:"user_id"`
	TaskType string `json:"task_type"`
	Cron     string `json:"cron"`
	Params   string `json:"params"`
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID <= 0 || req.TaskType == "" || req.Cron == "" {
		httpError(w, http.StatusBadRequest, "user_id, task_type and cron are required")
		return
	}

	id, err := s.st.CreateSchedule(store.Schedule{
		UserID:   req.UserID,
		TaskType: req.TaskType,
		CronExpr: req.Cron,
		Params:   req.Params,
		Enabled:  true,
	})
	if err != nil {
		logging.Get(logging.CategoryAPI).Error("create schedule: %v", err)
		httpError(w, http.StatusInternalServerError, "internal error")
		return
	}
	logging.API("schedule %d created (user=%d type=%s cron=%q)", id, req.UserID, req.TaskType, req.Cron)
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleListSchedules(w http.ResponseWriter, _ *http.Request) {
	schedules, err := s.st.ListEnabledSchedules()
	if err != nil {
		httpError(w, http.StatusInternalServerError, "internal error")
		return
	}
	type row struct {
		ID        int64   `json:"id"`
		UserID    int64   `json:"user_id"`
		TaskType  string  `json:"task_type"`
		Cron      string  `json:"cron"`
		LastKnown *string `json:"last_known_result"`
	}
	out := make([]row, 0, len(schedules))
	for _, sc := range schedules {
		out = append(out, row{ID: sc.ID, UserID: sc.UserID, TaskType: sc.TaskType, Cron: sc.CronExpr, LastKnown: sc.LastKnownResult})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
