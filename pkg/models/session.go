package models

import (
	"strings"
	"time"
)

// DefaultSessionTitle is used while a session has no user-authored message.
const DefaultSessionTitle = "New Chat"

// titleMaxLen is the number of characters kept from the first user message.
const titleMaxLen = 30

// ChatSession is one named AI-advisor conversation thread. Title is derived,
// not user-set: the first 30 characters of the first user-authored message,
// or "New Chat" when none exists.
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DeriveTitle recomputes the session title from its message list.
func (s *ChatSession) DeriveTitle(selfID string) string {
	for i := range s.Messages {
		m := &s.Messages[i]
		if m.SenderID != selfID || m.Type != TypeText {
			continue
		}
		return TruncateTitle(m.Content)
	}
	return DefaultSessionTitle
}

// TruncateTitle shortens a candidate title to 30 characters plus an
// ellipsis marker. Runes, not bytes, so multibyte input is not split.
func TruncateTitle(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSessionTitle
	}
	r := []rune(s)
	if len(r) <= titleMaxLen {
		return s
	}
	return string(r[:titleMaxLen]) + "..."
}
