package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"absensi-ai/internal/domain"
	"absensi-ai/internal/usecase"
)

// wsHistoryLimit bounds the transcript kept per connection.
const wsHistoryLimit = 40

// clientConn tracks a single websocket connection. history is owned by the
// connection's worker goroutine.
type clientConn struct {
	id        string
	ws        *websocket.Conn
	sendCh    chan Outgoing
	jobs      chan Incoming
	done      chan struct{}
	closeOnce sync.Once
	history   []domain.Message
}

func (c *clientConn) close(reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close(websocket.StatusGoingAway, reason)
	})
}

// send queues a message, giving up only when the connection is closing.
func (c *clientConn) send(out Outgoing) bool {
	select {
	case c.sendCh <- out:
		return true
	case <-c.done:
		return false
	}
}

func (c *clientConn) sendError(msg string) {
	out := newOutgoing(MessageError, msg)
	out.Error = msg
	c.send(out)
}

// originPatterns turns configured CORS origins into host patterns for the
// websocket origin check. Loopback hosts are always allowed.
func originPatterns(origins []string) []string {
	patterns := []string{"localhost", "localhost:*", "127.0.0.1", "127.0.0.1:*", "[::1]", "[::1]:*"}
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return patterns
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("client_id")
	if clientID == "" {
		clientID = usecase.NewID(time.Now())
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.cfg.CORSOrigins),
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	ws.SetReadLimit(maxBodyBytes)

	cc := &clientConn{
		id:     clientID,
		ws:     ws,
		sendCh: make(chan Outgoing, 64),
		jobs:   make(chan Incoming, 4),
		done:   make(chan struct{}),
	}
	connID := s.nextID.Add(1)
	s.clients.Store(connID, cc)
	s.metrics.WSConnections.Add(1)
	s.logger.Info("websocket client connected", "conn_id", connID, "client_id", clientID)

	ctx, cancel := context.WithCancel(r.Context())
	go s.writeLoop(cc)
	go s.worker(ctx, cc)

	welcome := newOutgoing(MessageSystem, "Terhubung ke Asisten Absensi.")
	welcome.Data = map[string]string{"client_id": clientID}
	cc.send(welcome)

	s.readLoop(ctx, cc)

	cancel()
	cc.close("")
	s.clients.Delete(connID)
	s.metrics.WSConnections.Add(-1)
	s.logger.Info("websocket client disconnected", "conn_id", connID, "client_id", clientID)
}

// readLoop decodes client messages and hands questions to the worker. It
// never blocks on the model.
func (s *Server) readLoop(ctx context.Context, cc *clientConn) {
	for {
		_, data, err := cc.ws.Read(ctx)
		if err != nil {
			return
		}

		var in Incoming
		if err := json.Unmarshal(data, &in); err != nil {
			cc.sendError("Format pesan tidak valid")
			continue
		}
		if in.Type == "" {
			in.Type = MessageChat
		}

		switch in.Type {
		case MessageChat:
			if strings.TrimSpace(in.Content) == "" {
				cc.sendError("Pesan tidak boleh kosong")
				continue
			}
			select {
			case cc.jobs <- in:
			default:
				cc.sendError("Masih memproses pertanyaan sebelumnya, mohon tunggu")
			}
		case MessageTyping:
		default:
			cc.sendError("Tipe pesan tidak dikenal: " + string(in.Type))
		}
	}
}

// worker answers queued questions one at a time so the per-connection
// history stays ordered.
func (s *Server) worker(ctx context.Context, cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		case <-ctx.Done():
			return
		case in := <-cc.jobs:
			s.answer(ctx, cc, in)
		}
	}
}

func (s *Server) answer(ctx context.Context, cc *clientConn, in Incoming) {
	s.metrics.ChatRequests.Add(1)
	cc.send(newOutgoing(MessageTyping, ""))

	stream := func(ev usecase.ToolEvent) {
		data := toolData{ID: ev.Call.ID, Name: ev.Call.Name}
		out := newOutgoing(MessageToolCall, ev.Call.Name)
		switch ev.Kind {
		case usecase.ToolEventCall:
			data.Arguments = ev.Call.Arguments
		case usecase.ToolEventResult:
			out.Type = MessageToolResult
			data.Result = jsonOrString(ev.Content)
			data.Failed = ev.Failed
			data.DurationMS = ev.Duration.Milliseconds()
		}
		out.Data = data
		cc.send(out)
	}

	opts := []usecase.RunOption{usecase.WithObserver(s.observer(stream))}
	if in.Model != "" {
		opts = append(opts, usecase.WithModel(in.Model))
	}
	answer := s.deps.Agent.Run(ctx, in.Content, cc.history, opts...)

	cc.history = append(cc.history,
		domain.Message{Role: domain.RoleUser, Content: in.Content},
		domain.Message{Role: domain.RoleAssistant, Content: answer},
	)
	if n := len(cc.history); n > wsHistoryLimit {
		cc.history = cc.history[n-wsHistoryLimit:]
	}

	if strings.HasPrefix(answer, "❌") {
		cc.sendError(answer)
		return
	}
	cc.send(newOutgoing(MessageChat, answer))
}

func (s *Server) writeLoop(cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		case out := <-cc.sendCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := wsjson.Write(ctx, cc.ws, out)
			cancel()
			if err != nil {
				cc.close("write failed")
				return
			}
		}
	}
}

func jsonOrString(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}
