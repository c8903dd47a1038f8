package devserver

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chatkit/pkg/client"
	"chatkit/pkg/config"
	"chatkit/pkg/logger"
	"chatkit/pkg/models"
)

func init() {
	logger.Init()
}

func newTestServer(t *testing.T) (*Server, *httptest.Server, *client.Client) {
	t.Helper()
	cfg := config.DevServeConfig{DBPath: filepath.Join(t.TempDir(), "db"), RateRPS: 1000, RateBurst: 1000}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("devserver.New: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts, client.New(ts.URL, 5*time.Second)
}

func TestMessageFullFlow(t *testing.T) {
	_, _, api := newTestServer(t)
	ctx := context.Background()

	// empty list first
	msgs, err := api.ListMessages(ctx, "act-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected empty activity, got %+v", msgs)
	}

	created, err := api.PostMessage(ctx, "act-1", models.Message{
		ClientID:   "c-1",
		SenderID:   "u1",
		SenderName: "Uma",
		Type:       models.TypeText,
		Content:    "hello",
	})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("server must assign an id")
	}
	if created.ClientID != "c-1" {
		t.Fatalf("server must echo the client id, got %q", created.ClientID)
	}

	msgs, err = api.ListMessages(ctx, "act-1")
	if err != nil {
		t.Fatalf("list after post: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != created.ID {
		t.Fatalf("posted message missing from list: %+v", msgs)
	}

	// other activities stay isolated
	other, _ := api.ListMessages(ctx, "act-2")
	if len(other) != 0 {
		t.Fatalf("activity isolation broken: %+v", other)
	}

	// invalid draft is rejected
	if _, err := api.PostMessage(ctx, "act-1", models.Message{SenderID: "u1", Type: models.TypeText}); err == nil {
		t.Fatalf("empty text message must be rejected")
	}
}

func TestPinRequiresModeratorRole(t *testing.T) {
	srv, _, api := newTestServer(t)
	ctx := context.Background()

	created, err := api.PostMessage(ctx, "act-1", models.Message{
		SenderID: "u1", SenderName: "Uma", Type: models.TypeText, Content: "pin me",
	})
	if err != nil {
		t.Fatalf("post: %v", err)
	}

	if err := api.PinMessage(ctx, "act-1", created.ID, "member", true); err == nil {
		t.Fatalf("non-moderator pin must be rejected")
	}

	if err := srv.store.saveModerators("act-1", []models.Moderator{{UserID: "mod1", IsHost: false}}); err != nil {
		t.Fatalf("seed moderators: %v", err)
	}
	if err := api.PinMessage(ctx, "act-1", created.ID, "mod1", true); err != nil {
		t.Fatalf("moderator pin: %v", err)
	}

	msgs, _ := api.ListMessages(ctx, "act-1")
	if len(msgs) != 1 || !msgs[0].IsPinned {
		t.Fatalf("pin not persisted: %+v", msgs)
	}

	mods, err := api.ListModerators(ctx, "act-1")
	if err != nil {
		t.Fatalf("list moderators: %v", err)
	}
	if len(mods) != 1 || mods[0].UserID != "mod1" {
		t.Fatalf("unexpected moderator list: %+v", mods)
	}
}

func TestEditReactDelete(t *testing.T) {
	_, _, api := newTestServer(t)
	ctx := context.Background()

	created, err := api.PostMessage(ctx, "act-1", models.Message{
		SenderID: "u1", SenderName: "Uma", Type: models.TypeText, Content: "tpyo",
	})
	if err != nil {
		t.Fatalf("post: %v", err)
	}

	if err := api.EditMessage(ctx, "act-1", created.ID, "typo fixed"); err != nil {
		t.Fatalf("edit: %v", err)
	}

	m, err := api.React(ctx, "act-1", created.ID, "u2", "👍")
	if err != nil {
		t.Fatalf("react: %v", err)
	}
	if !m.HasReaction("👍", "u2") {
		t.Fatalf("reaction missing: %+v", m.Reactions)
	}
	m, err = api.React(ctx, "act-1", created.ID, "u2", "👍")
	if err != nil {
		t.Fatalf("react toggle: %v", err)
	}
	if len(m.Reactions) != 0 {
		t.Fatalf("toggle must remove the reaction: %+v", m.Reactions)
	}

	if err := api.DeleteMessage(ctx, "act-1", created.ID, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	msgs, _ := api.ListMessages(ctx, "act-1")
	if len(msgs) != 1 || msgs[0].DeletedAt == nil {
		t.Fatalf("delete must be soft: %+v", msgs)
	}
	if msgs[0].Content != "typo fixed" || !msgs[0].IsEdited {
		t.Fatalf("edit lost: %+v", msgs[0])
	}
}

func TestPhotoEditRejected(t *testing.T) {
	_, _, api := newTestServer(t)
	ctx := context.Background()

	created, err := api.PostMessage(ctx, "act-1", models.Message{
		SenderID: "u1", SenderName: "Uma", Type: models.TypePhoto, PhotoURL: "http://cdn/p.jpg",
	})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if err := api.EditMessage(ctx, "act-1", created.ID, "caption"); err == nil {
		t.Fatalf("editing a photo message must fail")
	}
}

func TestSessionFlow(t *testing.T) {
	_, _, api := newTestServer(t)
	ctx := context.Background()

	sess := models.ChatSession{
		ID:    "session-1",
		Title: models.DefaultSessionTitle,
	}
	if err := api.CreateSession(ctx, "u1", sess); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := api.ListSessions(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "session-1" {
		t.Fatalf("unexpected sessions: %+v", list)
	}

	// other users see nothing
	otherList, _ := api.ListSessions(ctx, "u2")
	if len(otherList) != 0 {
		t.Fatalf("sessions leaked across users: %+v", otherList)
	}

	sess.Title = "Battery sizing"
	sess.Messages = []models.Message{{SenderID: "u1", SenderName: "Uma", Type: models.TypeText, Content: "help"}}
	if err := api.UpdateSession(ctx, sess); err != nil {
		t.Fatalf("update: %v", err)
	}
	list, _ = api.ListSessions(ctx, "u1")
	if list[0].Title != "Battery sizing" || len(list[0].Messages) != 1 {
		t.Fatalf("update lost: %+v", list[0])
	}

	if err := api.DeleteSession(ctx, "session-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ = api.ListSessions(ctx, "u1")
	if len(list) != 0 {
		t.Fatalf("session not deleted: %+v", list)
	}
}

func TestAIChatStubEchoesQuestion(t *testing.T) {
	_, _, api := newTestServer(t)
	reply, err := api.Chat(context.Background(), []client.AIMessage{
		{Role: client.AIRoleUser, Content: "what panel fits a van?"},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.Contains(reply, "what panel fits a van?") {
		t.Fatalf("stub should echo the question, got %q", reply)
	}
}

func TestRetentionPurgesOldDeletes(t *testing.T) {
	srv, _, api := newTestServer(t)
	ctx := context.Background()

	created, err := api.PostMessage(ctx, "act-1", models.Message{
		SenderID: "u1", SenderName: "Uma", Type: models.TypeText, Content: "old",
	})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if err := api.DeleteMessage(ctx, "act-1", created.ID, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	keep, err := api.PostMessage(ctx, "act-1", models.Message{
		SenderID: "u1", SenderName: "Uma", Type: models.TypeText, Content: "fresh",
	})
	if err != nil {
		t.Fatalf("post fresh: %v", err)
	}

	n, err := srv.store.purgeDeleted(time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one purged row, got %d", n)
	}

	msgs, _ := api.ListMessages(ctx, "act-1")
	if len(msgs) != 1 || msgs[0].ID != keep.ID {
		t.Fatalf("purge removed the wrong rows: %+v", msgs)
	}
}
