package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"absensi-ai/internal/domain"
	"absensi-ai/internal/infra/config"
	"absensi-ai/internal/usecase"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptLLM calls cari_siswa when the question mentions "cari", fails when
// it mentions "gagal", and otherwise echoes the question with the number
// of messages it received.
type scriptLLM struct {
	mu     sync.Mutex
	models []string
}

func (s *scriptLLM) Name() string { return "script" }

func (s *scriptLLM) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	s.mu.Lock()
	s.models = append(s.models, req.Model)
	s.mu.Unlock()

	last := req.Messages[len(req.Messages)-1]
	reply := domain.Message{Role: domain.RoleAssistant}
	switch {
	case last.Role == domain.RoleTool:
		reply.Content = "Ditemukan: " + last.Content
	case strings.Contains(last.Content, "gagal"):
		return nil, errors.New("connection refused")
	case strings.Contains(last.Content, "cari"):
		reply.ToolCalls = []domain.ToolCall{{ID: "call_1", Name: "cari_siswa", Arguments: json.RawMessage(`{"nama":"budi"}`)}}
	default:
		reply.Content = fmt.Sprintf("Jawaban: %s (%d pesan)", last.Content, len(req.Messages))
	}
	return &domain.ChatResponse{Message: reply}, nil
}

type funcTool struct {
	name string
	fn   func(params json.RawMessage) (*domain.ToolResult, error)
}

func (f funcTool) Name() string              { return f.name }
func (f funcTool) Description() string       { return f.name }
func (f funcTool) Schema() domain.ToolSchema { return domain.ToolSchema{Name: f.name} }

func (f funcTool) Execute(_ context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return f.fn(params)
}

type toolSet []funcTool

func (ts toolSet) Get(name string) (domain.Tool, error) {
	for _, t := range ts {
		if t.name == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)
}

func (ts toolSet) Schemas() []domain.ToolSchema {
	out := make([]domain.ToolSchema, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Schema())
	}
	return out
}

func testTools() toolSet {
	return toolSet{
		{name: "cari_siswa", fn: func(json.RawMessage) (*domain.ToolResult, error) {
			return &domain.ToolResult{Content: `[{"id":1,"nama":"Budi Santoso"}]`}, nil
		}},
		{name: "get_attendance_trends", fn: func(params json.RawMessage) (*domain.ToolResult, error) {
			return &domain.ToolResult{Content: `{"echo":` + string(params) + `}`}, nil
		}},
		{name: "get_geolocation_analysis", fn: func(json.RawMessage) (*domain.ToolResult, error) {
			return nil, fmt.Errorf("%w: invalid params: bad tanggal", domain.ErrInvalidInput)
		}},
		{name: "compare_class_attendance", fn: func(json.RawMessage) (*domain.ToolResult, error) {
			return nil, errors.New("connection refused")
		}},
	}
}

type testGateway struct {
	srv      *Server
	http     *httptest.Server
	llm      *scriptLLM
	sessions *usecase.SessionManager
}

func newTestGateway(t *testing.T, cfg config.GatewayConfig, auth Authenticator, mutate ...func(*ServerDeps)) *testGateway {
	t.Helper()
	llm := &scriptLLM{}
	tools := testTools()
	sessions := usecase.NewSessionManager("", time.Hour, 0, nopLogger())
	agent := usecase.NewAgent(usecase.AgentDeps{
		LLM:     llm,
		Tools:   tools,
		History: usecase.NewHistoryManager("sys", 20),
		Logger:  nopLogger(),
	})

	deps := ServerDeps{
		Agent:    agent,
		Tools:    tools,
		Sessions: sessions,
		Auth:     auth,
		Logger:   nopLogger(),
	}
	for _, m := range mutate {
		m(&deps)
	}
	srv := NewServer(cfg, deps)
	ctx, cancel := context.WithCancel(context.Background())
	ts := httptest.NewServer(srv.Handler(ctx))
	t.Cleanup(func() {
		srv.Stop(context.Background())
		ts.Close()
		cancel()
	})
	return &testGateway{srv: srv, http: ts, llm: llm, sessions: sessions}
}
