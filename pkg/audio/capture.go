package audio

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"chatkit/pkg/attach"
	"chatkit/pkg/logger"
)

// CaptureState is the recorder state machine position.
type CaptureState string

const (
	CaptureIdle      CaptureState = "idle"
	CapturePreparing CaptureState = "preparing"
	CaptureRecording CaptureState = "recording"
	CaptureStopping  CaptureState = "stopping"
)

// benignStopSubstring marks the native recorder's empty-recording error,
// which is discarded silently rather than surfaced.
const benignStopSubstring = "no valid audio data"

// CaptureController runs the record flow: permission, prepare, record,
// stop, then discard-or-upload. One recorder instance may be live at a
// time; a start while one is pending is dropped, not queued.
type CaptureController struct {
	device  RecorderDevice
	perms   attach.Permissions
	alerter attach.Alerter
	pipe    *attach.Pipeline

	// minDuration filters accidental taps; shorter recordings produce no
	// upload and no message.
	minDuration time.Duration

	// onRecorded composes and sends the audio message once the file is
	// uploaded. seconds is the recorder duration rounded to whole seconds.
	onRecorded func(ctx context.Context, url string, seconds int) error

	mu    sync.Mutex
	state CaptureState
	rec   slot[Recorder]
}

// NewCaptureController wires the capture flow.
func NewCaptureController(dev RecorderDevice, perms attach.Permissions, al attach.Alerter,
	pipe *attach.Pipeline, minDuration time.Duration,
	onRecorded func(ctx context.Context, url string, seconds int) error) *CaptureController {
	if minDuration <= 0 {
		minDuration = 300 * time.Millisecond
	}
	return &CaptureController{
		device:      dev,
		perms:       perms,
		alerter:     al,
		pipe:        pipe,
		minDuration: minDuration,
		onRecorded:  onRecorded,
		state:       CaptureIdle,
	}
}

// State returns the current machine position.
func (c *CaptureController) State() CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start requests the microphone, allocates one recorder and begins
// recording. A start while already recording, or while a recorder handle
// exists, is a no-op; rapid re-entrant gestures must not stack recorders.
func (c *CaptureController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == CaptureRecording || c.state == CapturePreparing || c.rec.occupied() {
		c.mu.Unlock()
		return nil
	}
	c.state = CapturePreparing
	c.mu.Unlock()

	ok, err := c.perms.Request(ctx, attach.PermMicrophone)
	if err != nil || !ok {
		c.setState(CaptureIdle)
		c.alerter.Alert("Microphone permission required to record")
		if err != nil {
			return fmt.Errorf("request microphone permission: %w", err)
		}
		return attach.ErrPermissionDenied
	}

	rec, err := c.device.NewRecorder(ctx)
	if err != nil {
		c.setState(CaptureIdle)
		c.alerter.Alert("Could not start recording")
		return fmt.Errorf("allocate recorder: %w", err)
	}
	if err := rec.Prepare(ctx); err != nil {
		rec.Release()
		c.setState(CaptureIdle)
		c.alerter.Alert("Could not start recording")
		return fmt.Errorf("prepare recorder: %w", err)
	}
	if err := rec.Record(ctx); err != nil {
		rec.Release()
		c.setState(CaptureIdle)
		c.alerter.Alert("Could not start recording")
		return fmt.Errorf("start recorder: %w", err)
	}
	if !c.rec.acquire(rec) {
		// lost the race to another start; ours is the duplicate
		rec.Release()
		return nil
	}
	c.setState(CaptureRecording)
	logger.Debug("recording_started")
	return nil
}

// Stop finalizes the recording and, when it is long enough, uploads the
// file and hands the URL to the composer. A stop with no live recorder
// resets to idle with no side effect.
func (c *CaptureController) Stop(ctx context.Context) error {
	rec, ok := c.rec.release()
	if !ok {
		c.setState(CaptureIdle)
		return nil
	}
	c.setState(CaptureStopping)
	defer c.setState(CaptureIdle)
	defer rec.Release()

	res, err := rec.Stop(ctx)
	if err != nil {
		if strings.Contains(err.Error(), benignStopSubstring) {
			// empty recording; nothing to upload, nothing to tell the user
			logger.Debug("recording_empty_discarded")
			return nil
		}
		c.alerter.Alert("Recording failed")
		logger.Error("recording_stop_failed", "error", err)
		return fmt.Errorf("stop recorder: %w", err)
	}

	if res.Duration < c.minDuration {
		logger.Debug("recording_too_short_discarded", "duration_ms", res.Duration.Milliseconds())
		return nil
	}

	url, err := c.pipe.UploadAudio(ctx, res.URI, "voice-message.m4a")
	if err != nil {
		return err
	}
	seconds := int((res.Duration + 500*time.Millisecond) / time.Second)
	if err := c.onRecorded(ctx, url, seconds); err != nil {
		return fmt.Errorf("compose audio message: %w", err)
	}
	logger.Info("voice_message_recorded", "seconds", seconds)
	return nil
}

func (c *CaptureController) setState(s CaptureState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
