// Package session manages the AI-advisor chat's named conversation
// threads. Unlike the activity chat there is no polling: the flow is
// request/response, one backend round-trip per send, and each session's
// message list is flushed to the backend whenever it changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chatkit/pkg/client"
	"chatkit/pkg/logger"
	"chatkit/pkg/models"
)

// ErrNoSession is returned by operations that need an active session.
var ErrNoSession = errors.New("no active session")

// Backend is the slice of the REST client the session store needs.
type Backend interface {
	ListSessions(ctx context.Context, userID string) ([]models.ChatSession, error)
	CreateSession(ctx context.Context, userID string, s models.ChatSession) error
	UpdateSession(ctx context.Context, s models.ChatSession) error
	DeleteSession(ctx context.Context, sessionID string) error
	Chat(ctx context.Context, history []client.AIMessage) (string, error)
}

// Store holds the user's sessions, newest first, plus the active pointer.
type Store struct {
	api        Backend
	userID     string
	senderName string

	mu       sync.Mutex
	sessions []models.ChatSession
	activeID string
}

// New builds a session store for one user.
func New(api Backend, userID, senderName string) *Store {
	return &Store{api: api, userID: userID, senderName: senderName}
}

// List fetches the persisted sessions and replaces the local list.
func (s *Store) List(ctx context.Context) ([]models.ChatSession, error) {
	sessions, err := s.api.ListSessions(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	s.mu.Lock()
	s.sessions = sessions
	if s.activeID != "" && s.find(s.activeID) < 0 {
		s.activeID = ""
	}
	out := s.copyAll()
	s.mu.Unlock()
	return out, nil
}

// Create persists a new empty session, prepends it locally and makes it
// active.
func (s *Store) Create(ctx context.Context) (models.ChatSession, error) {
	now := time.Now().UTC()
	sess := models.ChatSession{
		ID:        fmt.Sprintf("session-%d", now.UnixNano()),
		Title:     models.DefaultSessionTitle,
		Messages:  []models.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.api.CreateSession(ctx, s.userID, sess); err != nil {
		return models.ChatSession{}, fmt.Errorf("create session: %w", err)
	}
	s.mu.Lock()
	s.sessions = append([]models.ChatSession{sess}, s.sessions...)
	s.activeID = sess.ID
	s.mu.Unlock()
	logger.Info("session_created", "id", sess.ID)
	return sess, nil
}

// SwitchTo flushes the currently active session before moving the pointer.
// Switching first and flushing after would silently lose edits.
func (s *Store) SwitchTo(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.find(id) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("session %s: not found", id)
	}
	cur := s.activeSessionLocked()
	s.mu.Unlock()

	if cur != nil {
		if err := s.flush(ctx, *cur); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.activeID = id
	s.mu.Unlock()
	return nil
}

// Delete removes a session remotely and locally. If the deleted session
// was active, the most recent remaining session becomes active, or none.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.api.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	s.mu.Lock()
	if i := s.find(id); i >= 0 {
		s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
	}
	if s.activeID == id {
		if len(s.sessions) > 0 {
			s.activeID = s.sessions[0].ID
		} else {
			s.activeID = ""
		}
	}
	s.mu.Unlock()
	logger.Info("session_deleted", "id", id)
	return nil
}

// DeleteAll removes every session remotely, one at a time, then clears
// local state. Sequential on purpose: session counts are small and the
// failure semantics stay simple.
func (s *Store) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for _, sess := range s.sessions {
		ids = append(ids, sess.ID)
	}
	s.mu.Unlock()
	for _, id := range ids {
		if err := s.api.DeleteSession(ctx, id); err != nil {
			return fmt.Errorf("delete session %s: %w", id, err)
		}
	}
	s.mu.Lock()
	s.sessions = nil
	s.activeID = ""
	s.mu.Unlock()
	logger.Info("sessions_cleared", "count", len(ids))
	return nil
}

// Send appends the user's text to the active session (creating one when
// none is selected), asks the advisor, appends the reply, and flushes the
// session. Returns the advisor's reply.
func (s *Store) Send(ctx context.Context, content string) (string, error) {
	s.mu.Lock()
	active := s.activeSessionLocked()
	s.mu.Unlock()
	if active == nil {
		if _, err := s.Create(ctx); err != nil {
			return "", err
		}
	}

	now := time.Now().UTC()
	userMsg := models.Message{
		ID:         fmt.Sprintf("local-%d", now.UnixNano()),
		SenderID:   s.userID,
		SenderName: s.senderName,
		Type:       models.TypeText,
		Content:    content,
		CreatedAt:  now,
	}

	s.mu.Lock()
	i := s.find(s.activeID)
	if i < 0 {
		s.mu.Unlock()
		return "", ErrNoSession
	}
	s.sessions[i].Messages = append(s.sessions[i].Messages, userMsg)
	s.sessions[i].Title = s.sessions[i].DeriveTitle(s.userID)
	s.sessions[i].UpdatedAt = now
	history := s.historyLocked(i)
	s.mu.Unlock()

	reply, err := s.api.Chat(ctx, history)
	if err != nil {
		// keep the user's message; the flush records it even though the
		// advisor never answered
		_ = s.flushActive(ctx)
		return "", fmt.Errorf("advisor chat: %w", err)
	}

	replyMsg := models.Message{
		ID:         fmt.Sprintf("local-%d", time.Now().UTC().UnixNano()),
		SenderID:   "assistant",
		SenderName: "Advisor",
		Type:       models.TypeText,
		Content:    reply,
		CreatedAt:  time.Now().UTC(),
	}
	s.mu.Lock()
	if i = s.find(s.activeID); i >= 0 {
		s.sessions[i].Messages = append(s.sessions[i].Messages, replyMsg)
		s.sessions[i].UpdatedAt = replyMsg.CreatedAt
	}
	s.mu.Unlock()

	if err := s.flushActive(ctx); err != nil {
		return reply, err
	}
	return reply, nil
}

// Active returns a copy of the active session.
func (s *Store) Active() (models.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.activeSessionLocked()
	if cur == nil {
		return models.ChatSession{}, false
	}
	return *cur, true
}

// Sessions returns a copy of the local list, newest first.
func (s *Store) Sessions() []models.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyAll()
}

// flushActive persists the active session's current title and messages.
func (s *Store) flushActive(ctx context.Context) error {
	s.mu.Lock()
	cur := s.activeSessionLocked()
	s.mu.Unlock()
	if cur == nil {
		return ErrNoSession
	}
	return s.flush(ctx, *cur)
}

func (s *Store) flush(ctx context.Context, sess models.ChatSession) error {
	if err := s.api.UpdateSession(ctx, sess); err != nil {
		return fmt.Errorf("flush session %s: %w", sess.ID, err)
	}
	return nil
}

// historyLocked maps the session's text messages to advisor roles.
func (s *Store) historyLocked(i int) []client.AIMessage {
	msgs := s.sessions[i].Messages
	out := make([]client.AIMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Type != models.TypeText {
			continue
		}
		role := client.AIRoleAssistant
		if m.SenderID == s.userID {
			role = client.AIRoleUser
		}
		out = append(out, client.AIMessage{Role: role, Content: m.Content})
	}
	return out
}

// activeSessionLocked returns a pointer into sessions; caller holds mu.
func (s *Store) activeSessionLocked() *models.ChatSession {
	if s.activeID == "" {
		return nil
	}
	if i := s.find(s.activeID); i >= 0 {
		return &s.sessions[i]
	}
	return nil
}

func (s *Store) find(id string) int {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) copyAll() []models.ChatSession {
	out := make([]models.ChatSession, len(s.sessions))
	copy(out, s.sessions)
	return out
}
