package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"absensi-ai/internal/domain"
	"absensi-ai/internal/infra/config"
	"absensi-ai/internal/usecase"
)

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRootStatus(t *testing.T) {
	gw := newTestGateway(t, config.GatewayConfig{}, nil)

	resp, err := http.Get(gw.http.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	status := decode[StatusResponse](t, resp)
	assert.Equal(t, "online", status.Status)
	assert.Contains(t, status.Message, "/chat")
	assert.Equal(t, 4, status.Tools)

	notFound, err := http.Get(gw.http.URL + "/nope")
	require.NoError(t, err)
	notFound.Body.Close()
	assert.Equal(t, http.StatusNotFound, notFound.StatusCode)
}

func TestHealth(t *testing.T) {
	gw := newTestGateway(t, config.GatewayConfig{}, nil)

	resp, err := http.Get(gw.http.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	sick := newTestGateway(t, config.GatewayConfig{}, nil, func(d *ServerDeps) {
		d.Health = func(context.Context) error { return errors.New("database is locked") }
	})
	resp, err = http.Get(sick.http.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "database is locked", body["error"])
}

func TestChatSessionRoundTrip(t *testing.T) {
	gw := newTestGateway(t, config.GatewayConfig{}, nil)

	resp := postJSON(t, gw.http.URL+"/chat", `{"query":"halo"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[ChatResponse](t, resp)
	assert.Equal(t, "Jawaban: halo (2 pesan)", first.Answer)
	require.NotEmpty(t, first.SessionID)

	resp = postJSON(t, gw.http.URL+"/chat", `{"query":"lagi","session_id":"`+first.SessionID+`"}`)
	second := decode[ChatResponse](t, resp)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, "Jawaban: lagi (4 pesan)", second.Answer)

	s, err := gw.sessions.Get(first.SessionID)
	require.NoError(t, err)
	msgs := s.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "halo", msgs[0].Content)
	assert.Equal(t, domain.RoleAssistant, msgs[3].Role)
}

func TestChatUnknownSessionStartsFresh(t *testing.T) {
	gw := newTestGateway(t, config.GatewayConfig{}, nil)

	resp := postJSON(t, gw.http.URL+"/chat", `{"query":"halo","session_id":"01HZZZZZZZZZZZZZZZZZZZZZZZ"}`)
	got := decode[ChatResponse](t, resp)
	assert.NotEqual(t, "01HZZZZZZZZZZZZZZZZZZZZZZZ", got.SessionID)
	assert.Equal(t, "Jawaban: halo (2 pesan)", got.Answer)
}

func TestChatExplicitHistoryAndModel(t *testing.T) {
	gw := newTestGateway(t, config.GatewayConfig{}, nil)

	body := `{"query":"dan kelas lain?","model":"llama3.1:8b","history":[
		{"role":"user","content":"rekap XII RPL 1"},
		{"role":"assistant","content":"Hadir 92%"}]}`
	resp := postJSON(t, gw.http.URL+"/chat", body)
	got := decode[ChatResponse](t, resp)
	assert.Equal(t, "Jawaban: dan kelas lain? (4 pesan)", got.Answer)

	gw.llm.mu.Lock()
	defer gw.llm.mu.Unlock()
	assert.Equal(t, []string{"llama3.1:8b"}, gw.llm.models)
}

func TestChatWithTool(t *testing.T) {
	gw := newTestGateway(t, config.GatewayConfig{}, nil)

	resp := postJSON(t, gw.http.URL+"/chat", `{"query":"cari budi"}`)
	got := decode[ChatResponse](t, resp)
	assert.Equal(t, `Ditemukan: [{"id":1,"nama":"Budi Santoso"}]`, got.Answer)
	assert.Equal(t, int64(1), gw.srv.Metrics().ToolCallsTotal.Load())
	assert.Equal(t, int64(1), gw.srv.Metrics().ChatRequests.Load())
}

func TestChatModelFailureIsAnswer(t *testing.T) {
	gw := newTestGateway(t, config.GatewayConfig{}, nil)

	resp := postJSON(t, gw.http.URL+"/chat", `{"query":"ini pasti gagal"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[ChatResponse](t, resp)
	assert.Equal(t, usecase.MsgModelUnreachable+"connection refused", got.Answer)
}

func TestChatRejectsBadRequests(t *testing.T) {
	gw := newTestGateway(t, config.GatewayConfig{}, nil)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"empty query", `{"query":"   "}`, http.StatusUnprocessableEntity},
		{"missing query", `{}`, http.StatusUnprocessableEntity},
		{"bad json", `{"query":`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
		{"too large", `{"query":"` + strings.Repeat("a", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, gw.http.URL+"/chat", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, decode[errorBody](t, resp).Detail)
		})
	}
	assert.Zero(t, gw.srv.Metrics().ChatRequests.Load())
}

func TestAnalyticsEndpoints(t *testing.T) {
	gw := newTestGateway(t, config.GatewayConfig{}, nil)

	resp := postJSON(t, gw.http.URL+"/api/attendance/trends", `{"kelas_id":3,"periode":"bulan"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":{"kelas_id":3,"periode":"bulan"}}`, string(raw))

	resp = postJSON(t, gw.http.URL+"/api/attendance/trends", ``)
	raw, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":{}}`, string(raw))

	resp = postJSON(t, gw.http.URL+"/api/geolocation/analysis", `{"tanggal":"kemarin"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, resp).Detail, "bad tanggal")

	resp = postJSON(t, gw.http.URL+"/api/class/comparison", `{}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	assert.Equal(t, int64(4), gw.srv.Metrics().ToolCallsTotal.Load())
	assert.Equal(t, int64(2), gw.srv.Metrics().ToolErrorsTotal.Load())
}

func TestToolRoutes(t *testing.T) {
	gw := newTestGateway(t, config.GatewayConfig{}, nil)

	resp, err := http.Get(gw.http.URL + "/api/tools")
	require.NoError(t, err)
	defer resp.Body.Close()
	schemas := decode[[]domain.ToolSchema](t, resp)
	assert.Len(t, schemas, 4)

	call := postJSON(t, gw.http.URL+"/api/tools/cari_siswa", `{"nama":"budi"}`)
	assert.Equal(t, http.StatusOK, call.StatusCode)
	raw, err := io.ReadAll(call.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"nama":"Budi Santoso"}]`, string(raw))

	missing := postJSON(t, gw.http.URL+"/api/tools/hapus_semua", `{}`)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	assert.Equal(t, "Function hapus_semua tidak tersedia", decode[errorBody](t, missing).Detail)
}

func TestAuthRequired(t *testing.T) {
	auth := NewStaticTokenAuth([]config.TokenConfig{{Name: "dashboard", Token: "rahasia"}})
	gw := newTestGateway(t, config.GatewayConfig{}, auth)

	resp := postJSON(t, gw.http.URL+"/chat", `{"query":"halo"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, gw.http.URL+"/chat", bytes.NewBufferString(`{"query":"halo"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer rahasia")
	ok, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	ok.Body.Close()
	assert.Equal(t, http.StatusOK, ok.StatusCode)

	viaQuery := postJSON(t, gw.http.URL+"/chat?token=rahasia", `{"query":"halo"}`)
	assert.Equal(t, http.StatusOK, viaQuery.StatusCode)

	wrong := postJSON(t, gw.http.URL+"/chat?token=salah", `{"query":"halo"}`)
	assert.Equal(t, http.StatusUnauthorized, wrong.StatusCode)

	// Status and health stay public.
	root, err := http.Get(gw.http.URL + "/")
	require.NoError(t, err)
	root.Body.Close()
	assert.Equal(t, http.StatusOK, root.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	gw := newTestGateway(t, config.GatewayConfig{}, nil)
	postJSON(t, gw.http.URL+"/chat", `{"query":"cari budi"}`)

	resp, err := http.Get(gw.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(raw)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	assert.Contains(t, text, "# TYPE absensi_chat_requests_total counter")
	assert.Contains(t, text, "absensi_chat_requests_total 1\n")
	assert.Contains(t, text, "absensi_tool_calls_total 1\n")
	assert.Contains(t, text, "absensi_sessions_active 1\n")
	assert.Contains(t, text, "absensi_tools_registered 4\n")
}

func TestRateLimit(t *testing.T) {
	gw := newTestGateway(t, config.GatewayConfig{
		RateLimit: config.RateLimitConfig{RequestsPerMinute: 1, Burst: 1},
	}, nil)

	first, err := http.Get(gw.http.URL + "/")
	require.NoError(t, err)
	first.Body.Close()
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second, err := http.Get(gw.http.URL + "/")
	require.NoError(t, err)
	second.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}
