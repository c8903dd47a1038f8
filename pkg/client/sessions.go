package client

import (
	"context"
	"net/http"

	"chatkit/pkg/models"
)

// AIRole is the advisor chat role attached to each exchanged message.
type AIRole string

const (
	AIRoleUser      AIRole = "user"
	AIRoleAssistant AIRole = "assistant"
)

// AIMessage is one turn in the advisor conversation sent to the model.
type AIMessage struct {
	Role    AIRole `json:"role"`
	Content string `json:"content"`
}

// ListSessions fetches the user's persisted advisor sessions.
func (c *Client) ListSessions(ctx context.Context, userID string) ([]models.ChatSession, error) {
	var out []models.ChatSession
	if err := c.do(ctx, http.MethodGet, "/api/ai/sessions/"+userID, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSession persists a new (usually empty) session.
func (c *Client) CreateSession(ctx context.Context, userID string, s models.ChatSession) error {
	body := struct {
		UserID string `json:"userId"`
		models.ChatSession
	}{UserID: userID, ChatSession: s}
	return c.do(ctx, http.MethodPost, "/api/ai/sessions", body, nil)
}

// UpdateSession flushes a session's current title and message list.
func (c *Client) UpdateSession(ctx context.Context, s models.ChatSession) error {
	return c.do(ctx, http.MethodPut, "/api/ai/sessions/"+s.ID, s, nil)
}

// DeleteSession removes a session remotely.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/ai/sessions/"+sessionID, nil, nil)
}

// Chat sends the conversation so far and returns the advisor's reply.
func (c *Client) Chat(ctx context.Context, history []AIMessage) (string, error) {
	body := struct {
		Messages []AIMessage `json:"messages"`
	}{Messages: history}
	var out struct {
		Response string `json:"response"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/ai/chat", body, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}
