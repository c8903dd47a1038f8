package store

import (
	"errors"
	"sync"
	"time"

	"chatkit/pkg/logger"
	"chatkit/pkg/models"
)

// Mutation rule violations. The store re-validates every rule itself even
// when the UI layer already gated the action.
var (
	ErrNotFound     = errors.New("message not found")
	ErrNotModerator = errors.New("requester is not a moderator")
	ErrNotSender    = errors.New("requester is not the original sender")
	ErrNotText      = errors.New("only text messages can be edited")
	ErrForbidden    = errors.New("requester may not delete this message")
)

// Role is the requester's standing within one activity.
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
)

// Store is the single source of truth for a chat's message list and all
// mutation rules. All methods are safe for concurrent use; the sync engine
// writes from its poll goroutine while the UI reads snapshots.
type Store struct {
	mu   sync.RWMutex
	msgs []models.Message
}

// New returns an empty message store.
func New() *Store {
	return &Store{}
}

// Append inserts at the end. It does not dedupe; the caller must avoid
// double-append.
func (s *Store) Append(m models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m.Clone())
	logger.Debug("message_appended", "id", m.ID, "client_id", m.ClientID, "type", string(m.Type))
}

// ReplaceAll overwrites the list wholesale with the server's authoritative
// snapshot. Atomic from the reader's perspective.
func (s *Store) ReplaceAll(msgs []models.Message) {
	next := make([]models.Message, 0, len(msgs))
	for i := range msgs {
		next = append(next, msgs[i].Clone())
	}
	s.mu.Lock()
	s.msgs = next
	s.mu.Unlock()
	logger.Debug("messages_replaced", "count", len(next))
}

// Snapshot returns a deep copy of the full list, soft-deleted rows included.
func (s *Store) Snapshot() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, 0, len(s.msgs))
	for i := range s.msgs {
		out = append(out, s.msgs[i].Clone())
	}
	return out
}

// Active returns the messages that are not soft-deleted.
func (s *Store) Active() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, 0, len(s.msgs))
	for i := range s.msgs {
		if s.msgs[i].Deleted() {
			continue
		}
		out = append(out, s.msgs[i].Clone())
	}
	return out
}

// Pinned returns the active messages that are pinned.
func (s *Store) Pinned() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, 0)
	for i := range s.msgs {
		if s.msgs[i].Deleted() || !s.msgs[i].IsPinned {
			continue
		}
		out = append(out, s.msgs[i].Clone())
	}
	return out
}

// Get returns a copy of the message with the given id.
func (s *Store) Get(id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(id); i >= 0 {
		return s.msgs[i].Clone(), true
	}
	return models.Message{}, false
}

// Len reports the total number of rows, soft-deleted included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// React toggles userID's membership in the emoji's reaction set. The toggle
/// is an XOR: applying it twice restores the prior state. An emptied emoji
// key is removed from the map; a missing map is created lazily.
func (s *Store) React(id, emoji, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return ErrNotFound
	}
	m := &s.msgs[i]
	users := m.Reactions[emoji]
	at := -1
	for j, u := range users {
		if u == userID {
			at = j
			break
		}
	}
	if at >= 0 {
		users = append(users[:at], users[at+1:]...)
		if len(users) == 0 {
			delete(m.Reactions, emoji)
		} else {
			m.Reactions[emoji] = users
		}
	} else {
		if m.Reactions == nil {
			m.Reactions = make(map[string][]string)
		}
		m.Reactions[emoji] = append(users, userID)
	}
	logger.Debug("reaction_toggled", "id", id, "emoji", emoji, "user", userID, "added", at < 0)
	return nil
}

// Pin sets or clears the pinned flag. Moderator only.
func (s *Store) Pin(id string, pin bool, requesterRole Role) error {
	if requesterRole != RoleModerator {
		return ErrNotModerator
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return ErrNotFound
	}
	s.msgs[i].IsPinned = pin
	logger.Info("message_pinned", "id", id, "pin", pin)
	return nil
}

// Edit replaces the text content. Original sender only, text messages only.
func (s *Store) Edit(id, newText, requesterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return ErrNotFound
	}
	m := &s.msgs[i]
	if m.SenderID != requesterID {
		return ErrNotSender
	}
	if m.Type != models.TypeText {
		return ErrNotText
	}
	m.Content = newText
	m.IsEdited = true
	logger.Info("message_edited", "id", id)
	return nil
}

// SoftDelete marks the message deleted. Moderator or original sender only.
// The row is retained for audit.
func (s *Store) SoftDelete(id, requesterID string, requesterRole Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return ErrNotFound
	}
	m := &s.msgs[i]
	if requesterRole != RoleModerator && m.SenderID != requesterID {
		return ErrForbidden
	}
	now := time.Now().UTC()
	m.DeletedAt = &now
	logger.Info("message_soft_deleted", "id", id)
	return nil
}

// index returns the position of id, or -1. Caller holds the lock.
func (s *Store) index(id string) int {
	for i := range s.msgs {
		if s.msgs[i].ID == id {
			return i
		}
	}
	return -1
}
