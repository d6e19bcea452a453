package gateway

import (
	"encoding/json"
	"time"
)

// MessageType identifies the kind of websocket message.
type MessageType string

const (
	MessageChat       MessageType = "chat"
	MessageTyping     MessageType = "typing"
	MessageError      MessageType = "error"
	MessageSystem     MessageType = "system"
	MessageToolCall   MessageType = "tool_call"
	MessageToolResult MessageType = "tool_result"
)

// Incoming is a message received from a websocket client.
type Incoming struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
	Model   string      `json:"model,omitempty"`
}

// Outgoing is a message sent to a websocket client.
type Outgoing struct {
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Data      any         `json:"data,omitempty"`
	IsFinal   bool        `json:"is_final"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func newOutgoing(t MessageType, content string) Outgoing {
	return Outgoing{Type: t, Content: content, IsFinal: true, Timestamp: time.Now()}
}

// toolData is the Data payload of tool_call and tool_result messages.
type toolData struct {
	ID         string          `json:"id,omitempty"`
	Name       string          `json:"name"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Failed     bool            `json:"failed,omitempty"`
	DurationMS int64           `json:"duration_ms,omitempty"`
}
