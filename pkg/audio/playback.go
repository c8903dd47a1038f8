package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chatkit/pkg/logger"
	"chatkit/pkg/models"
)

// PlaybackState is the player state machine position for the active slot.
type PlaybackState string

const (
	PlaybackStopped PlaybackState = "stopped"
	PlaybackLoading PlaybackState = "loading"
	PlaybackPlaying PlaybackState = "playing"
	PlaybackPaused  PlaybackState = "paused"
)

// PlaybackController owns the single live player. Requesting the active id
// toggles pause/resume; requesting a different id releases the current
// player before a new one is created. Progress is poll-published, not
// event-pushed.
type PlaybackController struct {
	device   PlayerDevice
	interval time.Duration
	endSlack time.Duration
	publish  func(models.AudioProgress)

	mu       sync.Mutex
	state    PlaybackState
	activeID string
	player   slot[Player]
	stopPoll context.CancelFunc
}

// NewPlaybackController wires the playback flow. publish receives every
// progress sample and the final stopped sample; it must not block.
func NewPlaybackController(dev PlayerDevice, interval, endSlack time.Duration,
	publish func(models.AudioProgress)) *PlaybackController {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	if endSlack <= 0 {
		endSlack = 150 * time.Millisecond
	}
	if publish == nil {
		publish = func(models.AudioProgress) {}
	}
	return &PlaybackController{
		device:   dev,
		interval: interval,
		endSlack: endSlack,
		publish:  publish,
		state:    PlaybackStopped,
	}
}

// State returns the current machine position.
func (p *PlaybackController) State() PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// ActiveID returns the id of the currently tracked audio message, if any.
func (p *PlaybackController) ActiveID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeID
}

// Play starts playback of id/uri. If id is already active this toggles:
// pause while playing, resume while paused. Switching ids always releases
// the previous player first; two live players never coexist.
func (p *PlaybackController) Play(ctx context.Context, id, uri string) error {
	p.mu.Lock()
	if id == p.activeID {
		if pl, ok := p.player.get(); ok {
			st := p.state
			p.mu.Unlock()
			return p.toggle(ctx, pl, st)
		}
	}
	p.mu.Unlock()

	// different id: tear the old slot down before creating the new player
	p.Stop()

	p.mu.Lock()
	p.state = PlaybackLoading
	p.activeID = id
	p.mu.Unlock()

	pl, err := p.device.NewPlayer(ctx, uri)
	if err != nil {
		p.mu.Lock()
		p.state = PlaybackStopped
		p.activeID = ""
		p.mu.Unlock()
		return fmt.Errorf("load player for %s: %w", id, err)
	}
	if !p.player.acquire(pl) {
		pl.Release()
		return fmt.Errorf("player slot occupied for %s", id)
	}
	if err := pl.Play(ctx); err != nil {
		p.releaseSlot()
		return fmt.Errorf("start playback of %s: %w", id, err)
	}
	p.mu.Lock()
	p.state = PlaybackPlaying
	p.mu.Unlock()

	pollCtx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.stopPoll = cancel
	p.mu.Unlock()
	go p.pollProgress(pollCtx, id, pl)
	logger.Debug("playback_started", "id", id)
	return nil
}

func (p *PlaybackController) toggle(ctx context.Context, pl Player, st PlaybackState) error {
	switch st {
	case PlaybackPlaying:
		if err := pl.Pause(ctx); err != nil {
			return fmt.Errorf("pause: %w", err)
		}
		p.mu.Lock()
		p.state = PlaybackPaused
		p.mu.Unlock()
	case PlaybackPaused:
		if err := pl.Play(ctx); err != nil {
			return fmt.Errorf("resume: %w", err)
		}
		p.mu.Lock()
		p.state = PlaybackPlaying
		p.mu.Unlock()
	}
	return nil
}

// Seek jumps to duration*fraction. Only valid for the active id; anything
// else is a no-op. fraction is clamped to [0, 1].
func (p *PlaybackController) Seek(ctx context.Context, id string, fraction float64) error {
	p.mu.Lock()
	if id != p.activeID {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	pl, ok := p.player.get()
	if !ok {
		return nil
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	st := pl.Status()
	target := time.Duration(float64(st.Duration) * fraction)
	if err := pl.SeekTo(ctx, target); err != nil {
		return fmt.Errorf("seek %s: %w", id, err)
	}
	return nil
}

// Stop clears the progress poll and releases the live player, if any.
// Safe to call on teardown regardless of state.
func (p *PlaybackController) Stop() {
	p.mu.Lock()
	if p.stopPoll != nil {
		p.stopPoll()
		p.stopPoll = nil
	}
	p.mu.Unlock()
	p.releaseSlot()
}

func (p *PlaybackController) releaseSlot() {
	if pl, ok := p.player.release(); ok {
		pl.Release()
	}
	p.mu.Lock()
	p.state = PlaybackStopped
	p.activeID = ""
	p.mu.Unlock()
}

// pollProgress samples the player on a fixed interval and publishes
// AudioProgress. Auto-stop fires when the sample shows the track finished:
// position within endSlack of the end and the player no longer playing.
func (p *PlaybackController) pollProgress(ctx context.Context, id string, pl Player) {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := pl.Status()
			p.publish(models.AudioProgress{
				ID:        id,
				Position:  st.Position.Seconds(),
				Duration:  st.Duration.Seconds(),
				IsPlaying: st.IsPlaying,
			})
			if st.Duration > 0 && !st.IsPlaying && st.Position >= st.Duration-p.endSlack {
				logger.Debug("playback_finished", "id", id)
				p.mu.Lock()
				if p.stopPoll != nil {
					p.stopPoll()
					p.stopPoll = nil
				}
				p.mu.Unlock()
				p.releaseSlot()
				p.publish(models.AudioProgress{ID: id, Position: 0, Duration: st.Duration.Seconds(), IsPlaying: false})
				return
			}
		}
	}
}
