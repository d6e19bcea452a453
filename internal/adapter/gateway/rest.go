package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"absensi-ai/internal/domain"
	"absensi-ai/internal/usecase"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Query     string           `json:"query"`
	Model     string           `json:"model,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	History   []domain.Message `json:"history,omitempty"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id,omitempty"`
}

// StatusResponse is the body returned by GET /.
type StatusResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	Tools         int    `json:"tools"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRawJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:        "online",
		Message:       "Server Absensi AI siap. Gunakan endpoint /chat untuk bertanya.",
		Tools:         len(s.deps.Tools.Schemas()),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleChat answers one question. Prior turns come from the request's
// history when given, otherwise from the session named by session_id.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, statusForDecode(err), errorBody{Detail: err.Error()})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: "query is required"})
		return
	}
	s.metrics.ChatRequests.Add(1)

	var session *usecase.Session
	history := req.History
	if s.deps.Sessions != nil {
		session = s.deps.Sessions.GetOrCreate(req.SessionID)
		done, err := s.deps.Sessions.BeginTurn(r.Context(), session.ID)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Detail: err.Error()})
			return
		}
		defer done()
		if history == nil {
			history = session.Messages()
		}
	}

	opts := []usecase.RunOption{usecase.WithObserver(s.observer(nil))}
	if req.Model != "" {
		opts = append(opts, usecase.WithModel(req.Model))
	}
	answer := s.deps.Agent.Run(r.Context(), req.Query, history, opts...)

	resp := ChatResponse{Answer: answer}
	if session != nil {
		resp.SessionID = session.ID
		if err := s.deps.Sessions.Record(session, req.Query, answer); err != nil {
			s.logger.Warn("session save failed", "session_id", session.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// toolEndpoint exposes one operation as a JSON endpoint.
func (s *Server) toolEndpoint(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.invokeTool(w, r, name)
	}
}

func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	s.invokeTool(w, r, r.PathValue("name"))
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Tools.Schemas())
}

// invokeTool runs an operation with the request body as its arguments.
// Problem results are returned with status 200, as the model sees them.
func (s *Server) invokeTool(w http.ResponseWriter, r *http.Request, name string) {
	t, err := s.deps.Tools.Get(name)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "Function " + name + " tidak tersedia"})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, statusForDecode(err), errorBody{Detail: err.Error()})
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	s.metrics.ToolCallsTotal.Add(1)
	res, err := t.Execute(r.Context(), body)
	if err != nil {
		s.metrics.ToolErrorsTotal.Add(1)
		s.logger.Error("tool endpoint failed", "tool", name, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorBody{Detail: err.Error()})
		return
	}
	if res == nil {
		writeRawJSON(w, http.StatusOK, "null")
		return
	}
	writeRawJSON(w, http.StatusOK, res.Content)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

func statusForDecode(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
