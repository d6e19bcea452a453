package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"absensi-ai/internal/domain"
)

// DefaultSessionTTL is how long an idle conversation is kept.
const DefaultSessionTTL = 2 * time.Hour

// Session is one conversation held on behalf of a stateless client.
type Session struct {
	mu        sync.RWMutex
	ID        string           `json:"id"`
	Msgs      []domain.Message `json:"messages"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewSession creates an empty session with a generated ULID.
func NewSession() *Session {
	now := time.Now()
	return &Session{
		ID:        NewID(now),
		Msgs:      make([]domain.Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewID returns a ULID string for t.
func NewID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// AddTurn records a completed question and answer.
func (s *Session) AddTurn(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.Msgs = append(s.Msgs,
		domain.Message{Role: domain.RoleUser, Content: question, Timestamp: now},
		domain.Message{Role: domain.RoleAssistant, Content: answer, Timestamp: now},
	)
	s.UpdatedAt = now
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.Msgs)
}

// Truncate keeps only the last maxMessages entries.
func (s *Session) Truncate(maxMessages int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxMessages < 0 || len(s.Msgs) <= maxMessages {
		return
	}
	s.Msgs = slices.Clone(s.Msgs[len(s.Msgs)-maxMessages:])
}

func (s *Session) lastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UpdatedAt
}

// SessionManager keeps conversations for the HTTP gateway, optionally
// persisted as JSON files under dataDir.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	dataDir  string
	ttl      time.Duration
	maxMsgs  int
	logger   *slog.Logger
	turns    *turnLocks
}

// NewSessionManager creates a manager. An empty dataDir keeps sessions in
// memory; maxMsgs bounds each transcript (0 means unbounded).
func NewSessionManager(dataDir string, ttl time.Duration, maxMsgs int, logger *slog.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		dataDir:  dataDir,
		ttl:      ttl,
		maxMsgs:  maxMsgs,
		logger:   logger,
		turns:    newTurnLocks(),
	}
}

// BeginTurn waits until no other turn is running on session id. Call the
// returned function once the turn has been recorded.
func (sm *SessionManager) BeginTurn(ctx context.Context, id string) (func(), error) {
	return sm.turns.acquire(ctx, id)
}

// validateSessionID rejects IDs that are unsafe as file names.
func validateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty session id", domain.ErrInvalidInput)
	}
	if strings.ContainsAny(id, "/\\\x00") || strings.Contains(id, "..") {
		return fmt.Errorf("%w: session id %q", domain.ErrInvalidInput, id)
	}
	if filepath.Clean(id) != id {
		return fmt.Errorf("%w: session id %q", domain.ErrInvalidInput, id)
	}
	return nil
}

// Get returns a live session or ErrSessionNotFound.
func (sm *SessionManager) Get(id string) (*Session, error) {
	if err := validateSessionID(id); err != nil {
		return nil, domain.NewDomainError("SessionManager.Get", err, id)
	}

	sm.mu.RLock()
	s, ok := sm.sessions[id]
	sm.mu.RUnlock()
	if ok {
		if time.Since(s.lastUpdate()) <= sm.ttl {
			return s, nil
		}
		sm.drop(id)
		return nil, domain.NewDomainError("SessionManager.Get", domain.ErrSessionNotFound, id)
	}

	loaded, err := sm.loadFromDisk(id)
	if err != nil || time.Since(loaded.UpdatedAt) > sm.ttl {
		return nil, domain.NewDomainError("SessionManager.Get", domain.ErrSessionNotFound, id)
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if s, ok := sm.sessions[id]; ok {
		return s, nil
	}
	sm.sessions[id] = loaded
	return loaded, nil
}

// GetOrCreate resumes id when it is live and otherwise starts a new
// session with a fresh ID. An empty id always starts a new session.
func (sm *SessionManager) GetOrCreate(id string) *Session {
	if id != "" {
		if s, err := sm.Get(id); err == nil {
			return s
		}
	}

	s := NewSession()
	sm.mu.Lock()
	sm.sessions[s.ID] = s
	sm.mu.Unlock()
	return s
}

// Record appends one turn to the session and persists it when a data
// directory is configured.
func (sm *SessionManager) Record(s *Session, question, answer string) error {
	s.AddTurn(question, answer)
	if sm.maxMsgs > 0 {
		s.Truncate(sm.maxMsgs)
	}
	return sm.Save(s.ID)
}

// Save persists a session to disk as JSON. It is a no-op without a data
// directory.
func (sm *SessionManager) Save(id string) error {
	if sm.dataDir == "" {
		return nil
	}
	if err := validateSessionID(id); err != nil {
		return domain.NewDomainError("SessionManager.Save", err, id)
	}

	sm.mu.RLock()
	s, ok := sm.sessions[id]
	sm.mu.RUnlock()
	if !ok {
		return domain.NewDomainError("SessionManager.Save", domain.ErrSessionNotFound, id)
	}

	if err := os.MkdirAll(sm.dataDir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	s.mu.RLock()
	data, err := json.MarshalIndent(s, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return os.WriteFile(filepath.Join(sm.dataDir, id+".json"), data, 0o600)
}

// Delete removes a session from memory and disk.
func (sm *SessionManager) Delete(id string) error {
	if err := validateSessionID(id); err != nil {
		return domain.NewDomainError("SessionManager.Delete", err, id)
	}

	sm.mu.Lock()
	_, ok := sm.sessions[id]
	delete(sm.sessions, id)
	sm.mu.Unlock()

	removed, err := sm.removeFile(id)
	if err != nil {
		return err
	}
	if !ok && !removed {
		return domain.NewDomainError("SessionManager.Delete", domain.ErrSessionNotFound, id)
	}
	return nil
}

// Len returns the number of sessions held in memory.
func (sm *SessionManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// ReapStaleSessions deletes sessions idle longer than the TTL and returns
// how many were removed.
func (sm *SessionManager) ReapStaleSessions() int {
	cutoff := time.Now().Add(-sm.ttl)

	sm.mu.RLock()
	var stale []string
	for id, s := range sm.sessions {
		if s.lastUpdate().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	sm.mu.RUnlock()

	for _, id := range stale {
		sm.drop(id)
	}
	return len(stale)
}

func (sm *SessionManager) drop(id string) {
	sm.mu.Lock()
	delete(sm.sessions, id)
	sm.mu.Unlock()
	if _, err := sm.removeFile(id); err != nil {
		sm.logger.Warn("remove session file failed", "session_id", id, "error", err)
	}
}

func (sm *SessionManager) removeFile(id string) (bool, error) {
	if sm.dataDir == "" {
		return false, nil
	}
	err := os.Remove(filepath.Join(sm.dataDir, id+".json"))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove session file: %w", err)
	}
	return true, nil
}

func (sm *SessionManager) loadFromDisk(id string) (*Session, error) {
	if sm.dataDir == "" {
		return nil, domain.ErrSessionNotFound
	}
	data, err := os.ReadFile(filepath.Join(sm.dataDir, id+".json"))
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", id, err)
	}
	if s.ID != id {
		return nil, fmt.Errorf("%w: session file %s holds id %q", domain.ErrInvalidInput, id, s.ID)
	}
	return &s, nil
}
