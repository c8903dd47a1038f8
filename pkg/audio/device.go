// Package audio drives the single-slot voice recorder and player. Exactly
// one recorder and one player handle may be live at any time; the slot
// owner enforces that instead of scattered nil checks on a shared ref.
package audio

import (
	"context"
	"time"
)

// Recording is the result of a successful stop.
type Recording struct {
	// URI is the device-local file the recorder produced.
	URI string
	// Duration as reported by the native recorder.
	Duration time.Duration
}

// Recorder is one native recorder instance. Prepare configures the audio
// session; Stop finalizes the file and reports the measured duration.
type Recorder interface {
	Prepare(ctx context.Context) error
	Record(ctx context.Context) error
	Stop(ctx context.Context) (Recording, error)
	Release()
}

// RecorderDevice allocates recorder instances.
type RecorderDevice interface {
	NewRecorder(ctx context.Context) (Recorder, error)
}

// PlayerStatus is a point-in-time read of the native player.
type PlayerStatus struct {
	Position  time.Duration
	Duration  time.Duration
	IsPlaying bool
}

// Player is one native player instance bound to a single source URI.
type Player interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	SeekTo(ctx context.Context, pos time.Duration) error
	Status() PlayerStatus
	Release()
}

// PlayerDevice allocates player instances already loaded with uri.
type PlayerDevice interface {
	NewPlayer(ctx context.Context, uri string) (Player, error)
}
