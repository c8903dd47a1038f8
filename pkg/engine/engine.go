// Package engine keeps a message store eventually consistent with the backend
// without a push channel: an immediate fetch on start, then a fixed-interval
// poll whose result replaces the local list wholesale.
//
// Sends are optimistic. A draft gets a client correlation id, lands in the
// store immediately, and is confirmed when a later poll echoes that id back.
// Drafts the server never echoes are marked failed and kept visible instead
// of silently vanishing under the next ReplaceAll.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"chatkit/pkg/logger"
	"chatkit/pkg/models"
	"chatkit/pkg/store"
)

// SendState is the client-side delivery state of an optimistic draft.
type SendState string

const (
	SendPending SendState = "pending"
	SendFailed  SendState = "failed"
)

// Backend is the slice of the REST client the engine needs.
type Backend interface {
	ListMessages(ctx context.Context, activityID string) ([]models.Message, error)
	PostMessage(ctx context.Context, activityID string, draft models.Message) (models.Message, error)
}

// Options tune one engine instance.
type Options struct {
	ActivityID string
	// Interval between polls. Zero disables the ticker (request/response
	// chats fetch once per send instead).
	Interval time.Duration
	// RequestTimeout bounds each fetch and each POST.
	RequestTimeout time.Duration
	// FailAfterPolls marks a pending draft failed once this many polls
	// complete without the server echoing its client id.
	FailAfterPolls int
	// SendRPS/SendBurst bound the optimistic send path; zero means 5/10.
	SendRPS   float64
	SendBurst int
}

type pendingDraft struct {
	msg      models.Message
	state    SendState
	polls    int
	serverID string
}

// Engine drives the poll/send loop for one activity chat.
type Engine struct {
	api     Backend
	store   *store.Store
	cache   *store.Cache // optional
	opts    Options
	limiter *rate.Limiter

	mu      sync.Mutex
	pending map[string]*pendingDraft // keyed by client id
}

// New wires an engine to its backend and store. cache may be nil.
func New(api Backend, st *store.Store, cache *store.Cache, opts Options) *Engine {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.FailAfterPolls <= 0 {
		opts.FailAfterPolls = 2
	}
	rps := opts.SendRPS
	if rps <= 0 {
		rps = 5
	}
	burst := opts.SendBurst
	if burst <= 0 {
		burst = 10
	}
	return &Engine{
		api:     api,
		store:   st,
		cache:   cache,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		pending: make(map[string]*pendingDraft),
	}
}

// Prime loads the cached snapshot into the store, so the chat renders its
// last known list before the first poll lands. Best-effort.
func (e *Engine) Prime() {
	if e.cache == nil || !e.cache.Ready() {
		return
	}
	msgs, err := e.cache.LoadSnapshot(e.opts.ActivityID)
	if err != nil {
		logger.Warn("cache_prime_failed", "activity", e.opts.ActivityID, "error", err)
		return
	}
	if len(msgs) > 0 {
		e.store.ReplaceAll(msgs)
		logger.Info("cache_primed", "activity", e.opts.ActivityID, "count", len(msgs))
	}
}

// Start launches the poll loop: one immediate fetch, then a tick every
// Interval. The returned cancel func stops the ticker and aborts any
// in-flight fetch. With a zero Interval only the immediate fetch runs.
func (e *Engine) Start(ctx context.Context) context.CancelFunc {
	ctx2, cancel := context.WithCancel(ctx)
	go func() {
		e.PollOnce(ctx2)
		if e.opts.Interval <= 0 {
			return
		}
		t := time.NewTicker(e.opts.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx2.Done():
				return
			case <-t.C:
				e.PollOnce(ctx2)
			}
		}
	}()
	return cancel
}

// PollOnce fetches the authoritative list and reconciles it into the store.
// Failures are logged only; the next scheduled poll is the retry.
func (e *Engine) PollOnce(ctx context.Context) {
	ctx2, cancel := context.WithTimeout(ctx, e.opts.RequestTimeout)
	defer cancel()
	start := time.Now()
	msgs, err := e.api.ListMessages(ctx2, e.opts.ActivityID)
	pollLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		pollsFailed.Inc()
		logger.Warn("poll_failed", "activity", e.opts.ActivityID, "error", err)
		return
	}
	pollsTotal.Inc()
	merged := e.reconcile(msgs)
	e.store.ReplaceAll(merged)
	if e.cache != nil && e.cache.Ready() {
		if err := e.cache.SaveSnapshot(e.opts.ActivityID, merged); err != nil {
			logger.Warn("cache_save_failed", "activity", e.opts.ActivityID, "error", err)
		}
	}
}

// reconcile trusts the server list wholesale, then re-appends local drafts
// the server has not echoed yet. Drafts unseen for FailAfterPolls cycles
// flip to failed but stay visible.
func (e *Engine) reconcile(server []models.Message) []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	echoed := make(map[string]struct{}, len(server))
	ids := make(map[string]struct{}, len(server))
	for i := range server {
		if cid := server[i].ClientID; cid != "" {
			echoed[cid] = struct{}{}
		}
		ids[server[i].ID] = struct{}{}
	}

	merged := server
	for cid, d := range e.pending {
		if _, ok := echoed[cid]; ok {
			delete(e.pending, cid)
			continue
		}
		// POST response already told us the server id; the poll may have
		// caught up through it even without a client id echo.
		if d.serverID != "" {
			if _, ok := ids[d.serverID]; ok {
				delete(e.pending, cid)
				continue
			}
		}
		if d.state == SendPending {
			d.polls++
			if d.polls >= e.opts.FailAfterPolls {
				d.state = SendFailed
				sendsFailed.Inc()
				logger.Warn("send_unconfirmed", "client_id", cid, "polls", d.polls)
			}
		}
		merged = append(merged, d.msg)
	}
	return merged
}

// Send optimistically appends the draft and POSTs it. The poll loop, not
// the POST response, is what confirms delivery. A POST error marks the
// draft failed immediately; it is logged, never alerted.
func (e *Engine) Send(ctx context.Context, draft models.Message) (string, error) {
	if err := draft.Validate(); err != nil {
		return "", err
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}
	draft.ClientID = uuid.NewString()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now().UTC()
	}
	sendsTotal.Inc()

	e.store.Append(draft)
	e.mu.Lock()
	e.pending[draft.ClientID] = &pendingDraft{msg: draft, state: SendPending}
	e.mu.Unlock()

	ctx2, cancel := context.WithTimeout(ctx, e.opts.RequestTimeout)
	defer cancel()
	created, err := e.api.PostMessage(ctx2, e.opts.ActivityID, draft)
	if err != nil {
		e.mu.Lock()
		if d, ok := e.pending[draft.ClientID]; ok {
			d.state = SendFailed
		}
		e.mu.Unlock()
		sendsFailed.Inc()
		logger.Warn("send_failed", "client_id", draft.ClientID, "error", err)
		return draft.ClientID, err
	}
	e.mu.Lock()
	if d, ok := e.pending[draft.ClientID]; ok {
		d.serverID = created.ID
	}
	e.mu.Unlock()
	logger.Debug("send_posted", "client_id", draft.ClientID, "id", created.ID)
	return draft.ClientID, nil
}

// State reports the delivery state of a draft by client id. The second
// return is false once the draft has been confirmed (or was never ours).
func (e *Engine) State(clientID string) (SendState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.pending[clientID]
	if !ok {
		return "", false
	}
	return d.state, true
}

// FailedSends returns the drafts currently marked failed, oldest first.
func (e *Engine) FailedSends() []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []models.Message
	for _, d := range e.pending {
		if d.state == SendFailed {
			out = append(out, d.msg)
		}
	}
	return out
}

// Retry re-posts a failed draft under the same client id.
func (e *Engine) Retry(ctx context.Context, clientID string) error {
	e.mu.Lock()
	d, ok := e.pending[clientID]
	if !ok || d.state != SendFailed {
		e.mu.Unlock()
		return store.ErrNotFound
	}
	d.state = SendPending
	d.polls = 0
	msg := d.msg
	e.mu.Unlock()

	ctx2, cancel := context.WithTimeout(ctx, e.opts.RequestTimeout)
	defer cancel()
	created, err := e.api.PostMessage(ctx2, e.opts.ActivityID, msg)
	if err != nil {
		e.mu.Lock()
		if d2, ok := e.pending[clientID]; ok {
			d2.state = SendFailed
		}
		e.mu.Unlock()
		return err
	}
	e.mu.Lock()
	if d2, ok := e.pending[clientID]; ok {
		d2.serverID = created.ID
	}
	e.mu.Unlock()
	return nil
}
