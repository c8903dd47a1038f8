package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chatkit/pkg/logger"
	"chatkit/pkg/models"
	"chatkit/pkg/store"
)

func init() {
	logger.Init()
}

// fakeBackend is an in-memory server. It can be told to echo client ids
// (the normal case) or to strip them, and to fail sends.
type fakeBackend struct {
	mu          sync.Mutex
	msgs        []models.Message
	echoClient  bool
	failPost    bool
	listErr     error
	postedCount int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{echoClient: true}
}

func (f *fakeBackend) ListMessages(ctx context.Context, activityID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Message, len(f.msgs))
	copy(out, f.msgs)
	return out, nil
}

func (f *fakeBackend) PostMessage(ctx context.Context, activityID string, draft models.Message) (models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postedCount++
	if f.failPost {
		return models.Message{}, errors.New("backend down")
	}
	draft.ID = "srv-" + draft.ClientID
	if !f.echoClient {
		draft.ClientID = ""
	}
	f.msgs = append(f.msgs, draft)
	return draft, nil
}

func textDraft(content string) models.Message {
	return models.Message{SenderID: "u1", SenderName: "Uma", Type: models.TypeText, Content: content}
}

func TestSendIsOptimistic(t *testing.T) {
	be := newFakeBackend()
	st := store.New()
	eng := New(be, st, nil, Options{ActivityID: "act"})

	clientID, err := eng.Send(context.Background(), textDraft("hello"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	snap := st.Snapshot()
	if len(snap) != 1 || snap[0].ClientID != clientID {
		t.Fatalf("draft not appended optimistically: %+v", snap)
	}
	if state, ok := eng.State(clientID); !ok || state != SendPending {
		t.Fatalf("expected pending state, got %v %v", state, ok)
	}
}

func TestPollConfirmsEchoedSend(t *testing.T) {
	be := newFakeBackend()
	st := store.New()
	eng := New(be, st, nil, Options{ActivityID: "act"})

	clientID, err := eng.Send(context.Background(), textDraft("hello"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	eng.PollOnce(context.Background())

	if _, ok := eng.State(clientID); ok {
		t.Fatalf("echoed draft should leave the pending set")
	}
	snap := st.Snapshot()
	if len(snap) != 1 || snap[0].ID != "srv-"+clientID {
		t.Fatalf("poll should install the server copy: %+v", snap)
	}
}

func TestPollConfirmsByServerID(t *testing.T) {
	be := newFakeBackend()
	be.echoClient = false
	st := store.New()
	eng := New(be, st, nil, Options{ActivityID: "act"})

	clientID, err := eng.Send(context.Background(), textDraft("hello"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	eng.PollOnce(context.Background())

	if _, ok := eng.State(clientID); ok {
		t.Fatalf("draft with a known server id should be confirmed without a client id echo")
	}
}

func TestUnconfirmedSendFlipsToFailedAndStaysVisible(t *testing.T) {
	be := newFakeBackend()
	st := store.New()
	eng := New(be, st, nil, Options{ActivityID: "act", FailAfterPolls: 2})

	clientID, err := eng.Send(context.Background(), textDraft("lost"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	// drop the message server-side so polls never echo it
	be.mu.Lock()
	be.msgs = nil
	be.mu.Unlock()

	eng.PollOnce(context.Background())
	if state, _ := eng.State(clientID); state != SendPending {
		t.Fatalf("one silent poll must not fail the draft, got %v", state)
	}
	eng.PollOnce(context.Background())
	if state, _ := eng.State(clientID); state != SendFailed {
		t.Fatalf("expected failed after two silent polls, got %v", state)
	}

	snap := st.Snapshot()
	if len(snap) != 1 || snap[0].ClientID != clientID {
		t.Fatalf("failed draft must stay visible after ReplaceAll: %+v", snap)
	}
	failed := eng.FailedSends()
	if len(failed) != 1 || failed[0].ClientID != clientID {
		t.Fatalf("FailedSends should report the draft: %+v", failed)
	}
}

func TestPostErrorMarksFailedImmediately(t *testing.T) {
	be := newFakeBackend()
	be.failPost = true
	st := store.New()
	eng := New(be, st, nil, Options{ActivityID: "act"})

	clientID, err := eng.Send(context.Background(), textDraft("doomed"))
	if err == nil {
		t.Fatalf("expected send error")
	}
	if state, ok := eng.State(clientID); !ok || state != SendFailed {
		t.Fatalf("expected immediate failed state, got %v %v", state, ok)
	}
	if len(st.Snapshot()) != 1 {
		t.Fatalf("failed draft must remain in the store")
	}
}

func TestRetryRecoversFailedSend(t *testing.T) {
	be := newFakeBackend()
	be.failPost = true
	st := store.New()
	eng := New(be, st, nil, Options{ActivityID: "act"})

	clientID, _ := eng.Send(context.Background(), textDraft("retry me"))

	be.mu.Lock()
	be.failPost = false
	be.mu.Unlock()
	if err := eng.Retry(context.Background(), clientID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	eng.PollOnce(context.Background())
	if _, ok := eng.State(clientID); ok {
		t.Fatalf("retried draft should be confirmed by the next poll")
	}
}

func TestRetryUnknownDraft(t *testing.T) {
	be := newFakeBackend()
	eng := New(be, store.New(), nil, Options{ActivityID: "act"})
	if err := eng.Retry(context.Background(), "no-such-id"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSendRejectsInvalidDraft(t *testing.T) {
	be := newFakeBackend()
	eng := New(be, store.New(), nil, Options{ActivityID: "act"})
	if _, err := eng.Send(context.Background(), models.Message{SenderID: "u1", Type: models.TypeText}); err == nil {
		t.Fatalf("expected validation error")
	}
	if be.postedCount != 0 {
		t.Fatalf("invalid draft must not reach the backend")
	}
}

func TestPollInstallsRemoteSoftDelete(t *testing.T) {
	be := newFakeBackend()
	be.mu.Lock()
	be.msgs = []models.Message{
		{ID: "m1", SenderID: "u2", SenderName: "V", Type: models.TypeText, Content: "keep"},
		{ID: "m2", SenderID: "u2", SenderName: "V", Type: models.TypeText, Content: "remove"},
	}
	be.mu.Unlock()

	st := store.New()
	eng := New(be, st, nil, Options{ActivityID: "act"})
	eng.PollOnce(context.Background())
	if len(st.Active()) != 2 {
		t.Fatalf("expected both messages active after first poll")
	}

	now := time.Now()
	be.mu.Lock()
	be.msgs[1].DeletedAt = &now
	be.mu.Unlock()

	eng.PollOnce(context.Background())
	active := st.Active()
	if len(active) != 1 || active[0].ID != "m1" {
		t.Fatalf("remotely deleted message should leave the active view: %+v", active)
	}
	if st.Len() != 2 {
		t.Fatalf("soft delete must keep the row in the snapshot")
	}
}

func TestPollFailureKeepsLocalState(t *testing.T) {
	be := newFakeBackend()
	st := store.New()
	eng := New(be, st, nil, Options{ActivityID: "act"})

	if _, err := eng.Send(context.Background(), textDraft("kept")); err != nil {
		t.Fatalf("send: %v", err)
	}
	be.mu.Lock()
	be.listErr = errors.New("network")
	be.mu.Unlock()

	eng.PollOnce(context.Background())
	if len(st.Snapshot()) != 1 {
		t.Fatalf("a failed poll must not wipe the store")
	}
}

func TestStartPollsImmediatelyAndOnTicks(t *testing.T) {
	be := newFakeBackend()
	be.mu.Lock()
	be.msgs = []models.Message{{ID: "m1", SenderID: "u2", SenderName: "V", Type: models.TypeText, Content: "hi"}}
	be.mu.Unlock()

	st := store.New()
	eng := New(be, st, nil, Options{ActivityID: "act", Interval: 20 * time.Millisecond})

	cancel := eng.Start(context.Background())
	defer cancel()

	deadline := time.Now().Add(2 * time.Second)
	for st.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("immediate poll never landed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	be.mu.Lock()
	be.msgs = append(be.msgs, models.Message{ID: "m2", SenderID: "u2", SenderName: "V", Type: models.TypeText, Content: "again"})
	be.mu.Unlock()

	for st.Len() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("ticker poll never picked up the new message")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPrimeLoadsCachedSnapshot(t *testing.T) {
	dir := t.TempDir()
	cache, err := store.OpenCache(dir + "/cache")
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	defer cache.Close()
	seed := []models.Message{{ID: "m1", SenderID: "u1", SenderName: "Uma", Type: models.TypeText, Content: "cached"}}
	if err := cache.SaveSnapshot("act", seed); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	st := store.New()
	eng := New(newFakeBackend(), st, cache, Options{ActivityID: "act"})
	eng.Prime()

	snap := st.Snapshot()
	if len(snap) != 1 || snap[0].ID != "m1" {
		t.Fatalf("prime should install the cached list: %+v", snap)
	}
}
