package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"absensi-ai/internal/infra/config"
)

type wsFrame struct {
	Type    MessageType     `json:"type"`
	Content string          `json:"content"`
	Data    json.RawMessage `json:"data"`
	IsFinal bool            `json:"is_final"`
	Error   string          `json:"error"`
}

func dialWS(t *testing.T, gw *testGateway, path string, header http.Header) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(gw.http.URL, "http") + path
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var f wsFrame
	require.NoError(t, wsjson.Read(ctx, conn, &f))
	return f
}

func writeFrame(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, v))
}

// readUntil skips frames until one of type want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want MessageType) wsFrame {
	t.Helper()
	for range 10 {
		if f := readFrame(t, conn); f.Type == want {
			return f
		}
	}
	t.Fatalf("no %s frame received", want)
	return wsFrame{}
}

func TestWSWelcome(t *testing.T) {
	gw := newTestGateway(t, config.GatewayConfig{}, nil)

	conn := dialWS(t, gw, "/ws/dashboard-1", nil)
	welcome := readFrame(t, conn)
	assert.Equal(t, MessageSystem, welcome.Type)
	assert.JSONEq(t, `{"client_id":"dashboard-1"}`, string(welcome.Data))

	anon := dialWS(t, gw, "/ws", nil)
	var data map[string]string
	require.NoError(t, json.Unmarshal(readFrame(t, anon).Data, &data))
	assert.Len(t, data["client_id"], 26, "generated ULID")

	require.Eventually(t, func() bool {
		return gw.srv.Metrics().WSConnections.Load() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestWSChatStreamsToolEvents(t *testing.T) {
	gw := newTestGateway(t, config.GatewayConfig{}, nil)
	conn := dialWS(t, gw, "/ws", nil)
	readFrame(t, conn)

	writeFrame(t, conn, Incoming{Type: MessageChat, Content: "cari budi"})

	assert.Equal(t, MessageTyping, readFrame(t, conn).Type)

	call := readFrame(t, conn)
	require.Equal(t, MessageToolCall, call.Type)
	assert.Equal(t, "cari_siswa", call.Content)
	assert.JSONEq(t, `{"id":"call_1","name":"cari_siswa","arguments":{"nama":"budi"}}`, string(call.Data))

	result := readFrame(t, conn)
	require.Equal(t, MessageToolResult, result.Type)
	var data toolData
	require.NoError(t, json.Unmarshal(result.Data, &data))
	assert.Equal(t, "cari_siswa", data.Name)
	assert.JSONEq(t, `[{"id":1,"nama":"Budi Santoso"}]`, string(data.Result))
	assert.False(t, data.Failed)

	final := readFrame(t, conn)
	assert.Equal(t, MessageChat, final.Type)
	assert.True(t, final.IsFinal)
	assert.Equal(t, `Ditemukan: [{"id":1,"nama":"Budi Santoso"}]`, final.Content)
}

func TestWSKeepsConversationHistory(t *testing.T) {
	gw := newTestGateway(t, config.GatewayConfig{}, nil)
	conn := dialWS(t, gw, "/ws", nil)
	readFrame(t, conn)

	writeFrame(t, conn, Incoming{Content: "halo"})
	assert.Equal(t, "Jawaban: halo (2 pesan)", readUntil(t, conn, MessageChat).Content)

	writeFrame(t, conn, Incoming{Type: MessageChat, Content: "lagi"})
	assert.Equal(t, "Jawaban: lagi (4 pesan)", readUntil(t, conn, MessageChat).Content)

	// A second connection starts its own conversation.
	other := dialWS(t, gw, "/ws", nil)
	readFrame(t, other)
	writeFrame(t, other, Incoming{Type: MessageChat, Content: "baru"})
	assert.Equal(t, "Jawaban: baru (2 pesan)", readUntil(t, other, MessageChat).Content)
}

func TestWSRejectsBadMessages(t *testing.T) {
	gw := newTestGateway(t, config.GatewayConfig{}, nil)
	conn := dialWS(t, gw, "/ws", nil)
	readFrame(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":`)))
	f := readFrame(t, conn)
	assert.Equal(t, MessageError, f.Type)
	assert.Equal(t, "Format pesan tidak valid", f.Error)

	writeFrame(t, conn, Incoming{Type: MessageChat, Content: "  "})
	assert.Equal(t, "Pesan tidak boleh kosong", readFrame(t, conn).Error)

	writeFrame(t, conn, Incoming{Type: "subscribe"})
	assert.Equal(t, "Tipe pesan tidak dikenal: subscribe", readFrame(t, conn).Error)

	// Typing notifications are accepted silently and the connection stays usable.
	writeFrame(t, conn, Incoming{Type: MessageTyping})
	writeFrame(t, conn, Incoming{Type: MessageChat, Content: "halo"})
	assert.Equal(t, MessageTyping, readFrame(t, conn).Type)
	assert.Equal(t, "Jawaban: halo (2 pesan)", readFrame(t, conn).Content)
}

func TestWSModelFailureIsErrorFrame(t *testing.T) {
	gw := newTestGateway(t, config.GatewayConfig{}, nil)
	conn := dialWS(t, gw, "/ws", nil)
	readFrame(t, conn)

	writeFrame(t, conn, Incoming{Type: MessageChat, Content: "ini pasti gagal"})
	f := readUntil(t, conn, MessageError)
	assert.True(t, strings.HasPrefix(f.Error, "❌"))
	assert.Equal(t, f.Error, f.Content)
}

func TestWSAuth(t *testing.T) {
	auth := NewStaticTokenAuth([]config.TokenConfig{{Name: "dashboard", Token: "rahasia"}})
	gw := newTestGateway(t, config.GatewayConfig{}, auth)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(gw.http.URL, "http") + "/ws"
	_, resp, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn := dialWS(t, gw, "/ws?token=rahasia", nil)
	assert.Equal(t, MessageSystem, readFrame(t, conn).Type)

	header := http.Header{"Authorization": []string{"Bearer rahasia"}}
	conn = dialWS(t, gw, "/ws", header)
	assert.Equal(t, MessageSystem, readFrame(t, conn).Type)
}

func TestWSStopClosesClients(t *testing.T) {
	gw := newTestGateway(t, config.GatewayConfig{}, nil)
	conn := dialWS(t, gw, "/ws", nil)
	readFrame(t, conn)

	stopped := make(chan error, 1)
	go func() { stopped <- gw.srv.Stop(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	require.NoError(t, <-stopped)
}

func TestOriginPatterns(t *testing.T) {
	got := originPatterns([]string{"https://absensi.sekolah.sch.id", "not a url"})
	assert.Contains(t, got, "absensi.sekolah.sch.id")
	assert.Contains(t, got, "localhost:*")
	assert.NotContains(t, got, "not a url")

	assert.Equal(t, []string{"*"}, originPatterns([]string{"https://a.example", "*"}))
}
