package models

import (
	"fmt"
	"time"
)

// MessageType discriminates the message payload. Exactly one payload
// field group is populated per type; Validate enforces this.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypePhoto    MessageType = "photo"
	TypeLocation MessageType = "location"
	TypeFile     MessageType = "file"
	TypeAudio    MessageType = "audio"
	TypeSystem   MessageType = "system"
)

// Location is the payload of a location message.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// ReplyRef is a denormalized snapshot of the message being replied to.
// The original may later be edited or deleted without updating this copy.
type ReplyRef struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	SenderName string `json:"senderName"`
}

// Message is a single chat entry. ID is assigned by the backend; ClientID
// is generated locally for optimistic drafts and echoed back by the server
// so reconciliation can correlate a draft with its persisted row.
type Message struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId,omitempty"`

	SenderID    string `json:"senderId"`
	SenderName  string `json:"senderName"`
	SenderPhoto string `json:"senderPhoto,omitempty"`

	Type MessageType `json:"type"`

	Content  string    `json:"content,omitempty"`
	PhotoURL string    `json:"photoUrl,omitempty"`
	Location *Location `json:"location,omitempty"`
	FileURL  string    `json:"fileUrl,omitempty"`
	FileName string    `json:"fileName,omitempty"`
	AudioURL string    `json:"audioUrl,omitempty"`
	// AudioDuration is whole seconds, best-effort from the recorder.
	AudioDuration int `json:"audioDuration,omitempty"`

	ReplyTo *ReplyRef `json:"replyTo,omitempty"`

	// Reactions maps emoji -> ids of users who reacted. A key is removed
	// entirely when its user set becomes empty.
	Reactions map[string][]string `json:"reactions,omitempty"`

	IsPinned    bool `json:"isPinned,omitempty"`
	IsEdited    bool `json:"isEdited,omitempty"`
	IsModerator bool `json:"isModeratorMessage,omitempty"`

	// DeletedAt marks a soft delete; the row is kept for audit but the
	// message is excluded from every active-view derivation.
	DeletedAt *time.Time `json:"deletedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Deleted reports whether the message is soft-deleted.
func (m *Message) Deleted() bool { return m.DeletedAt != nil }

// HasReaction reports whether userID currently reacts to the message with emoji.
func (m *Message) HasReaction(emoji, userID string) bool {
	for _, u := range m.Reactions[emoji] {
		if u == userID {
			return true
		}
	}
	return false
}

// Validate checks the tagged-union shape: the type must be known and only
// the payload fields belonging to that type may be set.
func (m *Message) Validate() error {
	if m.SenderID == "" {
		return fmt.Errorf("message sender missing")
	}
	var want string
	switch m.Type {
	case TypeText, TypeSystem:
		want = "content"
		if m.Content == "" {
			return fmt.Errorf("%s message requires content", m.Type)
		}
	case TypePhoto:
		want = "photo"
		if m.PhotoURL == "" {
			return fmt.Errorf("photo message requires photoUrl")
		}
	case TypeLocation:
		want = "location"
		if m.Location == nil {
			return fmt.Errorf("location message requires location payload")
		}
	case TypeFile:
		want = "file"
		if m.FileURL == "" || m.FileName == "" {
			return fmt.Errorf("file message requires fileUrl and fileName")
		}
	case TypeAudio:
		want = "audio"
		if m.AudioURL == "" {
			return fmt.Errorf("audio message requires audioUrl")
		}
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	for name, set := range map[string]bool{
		"content":  m.Content != "",
		"photo":    m.PhotoURL != "",
		"location": m.Location != nil,
		"file":     m.FileURL != "" || m.FileName != "",
		"audio":    m.AudioURL != "" || m.AudioDuration != 0,
	} {
		if set && name != want {
			return fmt.Errorf("%s message carries stray %s payload", m.Type, name)
		}
	}
	return nil
}

// Clone returns a deep copy so store snapshots cannot be mutated by callers.
func (m *Message) Clone() Message {
	out := *m
	if m.Location != nil {
		loc := *m.Location
		out.Location = &loc
	}
	if m.ReplyTo != nil {
		rr := *m.ReplyTo
		out.ReplyTo = &rr
	}
	if m.DeletedAt != nil {
		ts := *m.DeletedAt
		out.DeletedAt = &ts
	}
	if m.Reactions != nil {
		out.Reactions = make(map[string][]string, len(m.Reactions))
		for k, v := range m.Reactions {
			out.Reactions[k] = append([]string(nil), v...)
		}
	}
	return out
}
