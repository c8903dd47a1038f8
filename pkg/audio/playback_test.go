package audio

import (
	"context"
	"sync"
	"testing"
	"time"

	"chatkit/pkg/models"
)

type fakePlayer struct {
	mu       sync.Mutex
	status   PlayerStatus
	released bool
	seeks    []time.Duration
}

func (f *fakePlayer) Play(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status.IsPlaying = true
	return nil
}

func (f *fakePlayer) Pause(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status.IsPlaying = false
	return nil
}

func (f *fakePlayer) SeekTo(ctx context.Context, pos time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, pos)
	f.status.Position = pos
	return nil
}

func (f *fakePlayer) Status() PlayerStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakePlayer) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
}

func (f *fakePlayer) setStatus(st PlayerStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = st
}

func (f *fakePlayer) isReleased() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

type fakePlayerDevice struct {
	mu      sync.Mutex
	players []*fakePlayer
	seed    PlayerStatus
}

func (f *fakePlayerDevice) NewPlayer(ctx context.Context, uri string) (Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &fakePlayer{status: f.seed}
	f.players = append(f.players, p)
	return p, nil
}

func (f *fakePlayerDevice) player(i int) *fakePlayer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.players[i]
}

func (f *fakePlayerDevice) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.players)
}

func TestPlayToggle(t *testing.T) {
	dev := &fakePlayerDevice{seed: PlayerStatus{Duration: 5 * time.Second}}
	p := NewPlaybackController(dev, time.Hour, 0, nil)
	defer p.Stop()
	ctx := context.Background()

	if err := p.Play(ctx, "m1", "http://cdn/a.m4a"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if p.State() != PlaybackPlaying || p.ActiveID() != "m1" {
		t.Fatalf("expected playing m1, got %s %s", p.State(), p.ActiveID())
	}

	if err := p.Play(ctx, "m1", "http://cdn/a.m4a"); err != nil {
		t.Fatalf("pause toggle: %v", err)
	}
	if p.State() != PlaybackPaused {
		t.Fatalf("expected paused, got %s", p.State())
	}

	if err := p.Play(ctx, "m1", "http://cdn/a.m4a"); err != nil {
		t.Fatalf("resume toggle: %v", err)
	}
	if p.State() != PlaybackPlaying {
		t.Fatalf("expected playing after resume, got %s", p.State())
	}
	if dev.count() != 1 {
		t.Fatalf("toggling must reuse the live player, allocated %d", dev.count())
	}
}

func TestPlayDifferentIDReleasesPrevious(t *testing.T) {
	dev := &fakePlayerDevice{seed: PlayerStatus{Duration: 5 * time.Second}}
	p := NewPlaybackController(dev, time.Hour, 0, nil)
	defer p.Stop()
	ctx := context.Background()

	if err := p.Play(ctx, "m1", "http://cdn/a.m4a"); err != nil {
		t.Fatalf("play m1: %v", err)
	}
	if err := p.Play(ctx, "m2", "http://cdn/b.m4a"); err != nil {
		t.Fatalf("play m2: %v", err)
	}
	if dev.count() != 2 {
		t.Fatalf("expected a second player, got %d", dev.count())
	}
	if !dev.player(0).isReleased() {
		t.Fatalf("previous player must be released before the new one starts")
	}
	if dev.player(1).isReleased() {
		t.Fatalf("active player must stay live")
	}
	if p.ActiveID() != "m2" {
		t.Fatalf("expected m2 active, got %s", p.ActiveID())
	}
}

func TestSeekOnlyActiveID(t *testing.T) {
	dev := &fakePlayerDevice{seed: PlayerStatus{Duration: 10 * time.Second}}
	p := NewPlaybackController(dev, time.Hour, 0, nil)
	defer p.Stop()
	ctx := context.Background()

	if err := p.Play(ctx, "m1", "http://cdn/a.m4a"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := p.Seek(ctx, "other", 0.5); err != nil {
		t.Fatalf("seek on inactive id must be a no-op: %v", err)
	}
	pl := dev.player(0)
	pl.mu.Lock()
	n := len(pl.seeks)
	pl.mu.Unlock()
	if n != 0 {
		t.Fatalf("inactive seek reached the player")
	}

	if err := p.Seek(ctx, "m1", 0.5); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if err := p.Seek(ctx, "m1", 1.7); err != nil {
		t.Fatalf("clamped seek: %v", err)
	}
	pl.mu.Lock()
	seeks := append([]time.Duration(nil), pl.seeks...)
	pl.mu.Unlock()
	if len(seeks) != 2 || seeks[0] != 5*time.Second || seeks[1] != 10*time.Second {
		t.Fatalf("unexpected seek targets: %v", seeks)
	}
}

func TestAutoStopAtTrackEnd(t *testing.T) {
	dev := &fakePlayerDevice{seed: PlayerStatus{Duration: 2 * time.Second}}
	var mu sync.Mutex
	var samples []models.AudioProgress
	p := NewPlaybackController(dev, 5*time.Millisecond, 150*time.Millisecond, func(ap models.AudioProgress) {
		mu.Lock()
		samples = append(samples, ap)
		mu.Unlock()
	})
	ctx := context.Background()

	if err := p.Play(ctx, "m1", "http://cdn/a.m4a"); err != nil {
		t.Fatalf("play: %v", err)
	}
	// simulate the native player reaching the end of the track
	dev.player(0).setStatus(PlayerStatus{Position: 1950 * time.Millisecond, Duration: 2 * time.Second, IsPlaying: false})

	deadline := time.Now().Add(2 * time.Second)
	for p.State() != PlaybackStopped {
		if time.Now().After(deadline) {
			t.Fatalf("auto-stop never fired, state %s", p.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !dev.player(0).isReleased() {
		t.Fatalf("finished player must be released")
	}
	if p.ActiveID() != "" {
		t.Fatalf("active id must clear on auto-stop")
	}

	mu.Lock()
	last := samples[len(samples)-1]
	mu.Unlock()
	if last.Position != 0 || last.IsPlaying {
		t.Fatalf("final sample must report a reset position: %+v", last)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	dev := &fakePlayerDevice{seed: PlayerStatus{Duration: time.Second}}
	p := NewPlaybackController(dev, time.Hour, 0, nil)
	p.Stop()
	if err := p.Play(context.Background(), "m1", "http://cdn/a.m4a"); err != nil {
		t.Fatalf("play after stop: %v", err)
	}
	p.Stop()
	p.Stop()
	if p.State() != PlaybackStopped || p.ActiveID() != "" {
		t.Fatalf("stop must clear state, got %s %q", p.State(), p.ActiveID())
	}
}
