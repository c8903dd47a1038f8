// Package client is the typed REST surface of the chat backend. Every call
// takes a context; callers own timeouts and cancellation. Transport faults
// trip a shared circuit breaker so a flapping backend degrades to fast
// failures instead of piled-up requests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"chatkit/pkg/logger"
	"chatkit/pkg/models"
)

// Client talks to the chat backend.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// New returns a client for the backend at baseURL. timeout bounds each
// request on top of the caller's context.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "chat-backend",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("breaker_state_changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: cb,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	_, err = c.breaker.Execute(func() (any, error) {
		res, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer res.Body.Close()
		if res.StatusCode < 200 || res.StatusCode > 299 {
			b, _ := io.ReadAll(io.LimitReader(res.Body, 512))
			return nil, fmt.Errorf("%s %s: status %d: %s", method, path, res.StatusCode, strings.TrimSpace(string(b)))
		}
		if out != nil {
			if err := json.NewDecoder(res.Body).Decode(out); err != nil {
				return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
			}
		}
		return nil, nil
	})
	return err
}

// ListMessages fetches the authoritative message list for an activity.
func (c *Client) ListMessages(ctx context.Context, activityID string) ([]models.Message, error) {
	var out []models.Message
	if err := c.do(ctx, http.MethodGet, "/api/activities/"+activityID+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PostMessage persists a draft and returns the server's copy (with its id).
func (c *Client) PostMessage(ctx context.Context, activityID string, draft models.Message) (models.Message, error) {
	var out models.Message
	if err := c.do(ctx, http.MethodPost, "/api/activities/"+activityID+"/messages", draft, &out); err != nil {
		return models.Message{}, err
	}
	return out, nil
}

// PinMessage sets or clears the pinned flag server-side.
func (c *Client) PinMessage(ctx context.Context, activityID, msgID, userID string, pin bool) error {
	body := map[string]any{"userId": userID, "pin": pin}
	return c.do(ctx, http.MethodPatch, "/api/activities/"+activityID+"/messages/"+msgID+"/pin", body, nil)
}

// EditMessage replaces the text content server-side.
func (c *Client) EditMessage(ctx context.Context, activityID, msgID, content string) error {
	body := map[string]string{"content": content}
	return c.do(ctx, http.MethodPut, "/api/activities/"+activityID+"/messages/"+msgID, body, nil)
}

// DeleteMessage soft-deletes server-side.
func (c *Client) DeleteMessage(ctx context.Context, activityID, msgID, userID string) error {
	body := map[string]string{"userId": userID}
	return c.do(ctx, http.MethodDelete, "/api/activities/"+activityID+"/messages/"+msgID, body, nil)
}

// React toggles a reaction server-side and returns the updated message.
func (c *Client) React(ctx context.Context, activityID, msgID, userID, emoji string) (models.Message, error) {
	body := map[string]string{"userId": userID, "emoji": emoji}
	var out models.Message
	if err := c.do(ctx, http.MethodPost, "/api/activities/"+activityID+"/messages/"+msgID+"/react", body, &out); err != nil {
		return models.Message{}, err
	}
	return out, nil
}

// ListModerators fetches the activity's role assignments.
func (c *Client) ListModerators(ctx context.Context, activityID string) ([]models.Moderator, error) {
	var out []models.Moderator
	if err := c.do(ctx, http.MethodGet, "/api/activities/"+activityID+"/moderators", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
