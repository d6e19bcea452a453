package usecase

import (
	"strings"

	"absensi-ai/internal/domain"
)

// DefaultHistoryLimit is how many prior entries are considered per turn.
const DefaultHistoryLimit = 20

// HistoryManager assembles the message list sent to the model for one
// user turn.
type HistoryManager struct {
	systemPrompt string
	limit        int
}

// NewHistoryManager creates a manager. A non-positive limit selects
// DefaultHistoryLimit.
func NewHistoryManager(systemPrompt string, limit int) *HistoryManager {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &HistoryManager{systemPrompt: systemPrompt, limit: limit}
}

// Limit returns the configured window size.
func (h *HistoryManager) Limit() int { return h.limit }

// Build returns the system prompt, then the user and assistant entries
// among the last Limit() entries of history, then the new user message.
// The window is taken before filtering, so skipped entries still count
// against it. Entries with any other role or empty content are dropped.
func (h *HistoryManager) Build(history []domain.Message, userMessage string) []domain.Message {
	window := history
	if len(window) > h.limit {
		window = window[len(window)-h.limit:]
	}

	msgs := make([]domain.Message, 0, len(window)+2)
	msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: h.systemPrompt})
	for _, m := range window {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		msgs = append(msgs, domain.Message{Role: m.Role, Content: m.Content})
	}
	return append(msgs, domain.Message{Role: domain.RoleUser, Content: userMessage})
}
