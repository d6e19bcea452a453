package chat

import (
	"time"

	"absensi-ai/internal/usecase"
)

// AnswerMsg carries the agent's reply. Gen identifies the request so a
// reply to a cancelled question is discarded.
type AnswerMsg struct {
	Question string
	Answer   string
	Elapsed  time.Duration
	Gen      uint64
}

// ToolEventMsg forwards an operation call or result while a question is
// being answered.
type ToolEventMsg struct {
	Event usecase.ToolEvent
	Gen   uint64
}

// StreamTickMsg reveals the next chunk of an answer.
type StreamTickMsg struct{}

// QuitMsg asks the program to exit.
type QuitMsg struct{}
