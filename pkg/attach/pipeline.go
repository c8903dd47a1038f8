// Package attach turns device-local resources into remotely addressable
// URLs before a message is composed, and back again for downloads. Upload
// failure aborts composition; the draft is never appended on a failed
// upload.
package attach

import (
	"context"
	"errors"
	"fmt"

	"chatkit/pkg/logger"
)

// Permission identifies a device capability the OS gates behind a prompt.
type Permission string

const (
	PermCamera     Permission = "camera"
	PermLibrary    Permission = "media_library"
	PermMicrophone Permission = "microphone"
)

var (
	// ErrPermissionDenied aborts the operation before any side effect.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTooLarge means the payload exceeds the configured upload limit.
	ErrTooLarge = errors.New("attachment exceeds upload limit")
)

// Permissions is the OS permission prompt collaborator.
type Permissions interface {
	Request(ctx context.Context, p Permission) (bool, error)
}

// Uploader is the opaque upload collaborator. Each call is a single
// best-effort network request returning a public URL.
type Uploader interface {
	UploadPhoto(ctx context.Context, uri string) (string, error)
	UploadFile(ctx context.Context, uri, name string) (string, error)
	UploadAudio(ctx context.Context, uri, name string) (string, error)
}

// Saver is the inverse path: persist a remote URL locally.
type Saver interface {
	SaveImageToGallery(ctx context.Context, url string) error
	SaveFileToDevice(ctx context.Context, url, name string) error
}

// Alerter surfaces user-visible failure and confirmation messages. The UI
// supplies the implementation.
type Alerter interface {
	Alert(msg string)
	Confirm(msg string)
}

// Pipeline wires the collaborators together and applies the permission and
// failure rules.
type Pipeline struct {
	perms    Permissions
	uploader Uploader
	saver    Saver
	alerter  Alerter
}

// NewPipeline builds a pipeline. All collaborators are required.
func NewPipeline(perms Permissions, up Uploader, sv Saver, al Alerter) *Pipeline {
	return &Pipeline{perms: perms, uploader: up, saver: sv, alerter: al}
}

// checkPermission prompts for p and aborts with a user-visible message on
// denial. Denial mutates nothing.
func (p *Pipeline) checkPermission(ctx context.Context, perm Permission) error {
	ok, err := p.perms.Request(ctx, perm)
	if err != nil {
		p.alerter.Alert("Could not request " + string(perm) + " permission")
		return fmt.Errorf("request %s permission: %w", perm, err)
	}
	if !ok {
		p.alerter.Alert("Permission required: " + string(perm))
		return ErrPermissionDenied
	}
	return nil
}

// UploadPhoto checks the library permission, uploads, and returns the URL.
func (p *Pipeline) UploadPhoto(ctx context.Context, uri string) (string, error) {
	if err := p.checkPermission(ctx, PermLibrary); err != nil {
		return "", err
	}
	url, err := p.uploader.UploadPhoto(ctx, uri)
	if err != nil {
		p.alerter.Alert("Photo upload failed")
		logger.Warn("photo_upload_failed", "uri", uri, "error", err)
		return "", fmt.Errorf("upload photo: %w", err)
	}
	return url, nil
}

// UploadFile uploads a picked document and returns the URL.
func (p *Pipeline) UploadFile(ctx context.Context, uri, name string) (string, error) {
	url, err := p.uploader.UploadFile(ctx, uri, name)
	if err != nil {
		p.alerter.Alert("File upload failed")
		logger.Warn("file_upload_failed", "uri", uri, "name", name, "error", err)
		return "", fmt.Errorf("upload file: %w", err)
	}
	return url, nil
}

// UploadAudio uploads a finished recording and returns the URL. The
// microphone permission was already granted when recording started.
func (p *Pipeline) UploadAudio(ctx context.Context, uri, name string) (string, error) {
	url, err := p.uploader.UploadAudio(ctx, uri, name)
	if err != nil {
		p.alerter.Alert("Voice message upload failed")
		logger.Warn("audio_upload_failed", "uri", uri, "error", err)
		return "", fmt.Errorf("upload audio: %w", err)
	}
	return url, nil
}

// SaveImageToGallery persists a remote image locally and confirms.
func (p *Pipeline) SaveImageToGallery(ctx context.Context, url string) error {
	if err := p.checkPermission(ctx, PermLibrary); err != nil {
		return err
	}
	if err := p.saver.SaveImageToGallery(ctx, url); err != nil {
		p.alerter.Alert("Could not save image")
		return fmt.Errorf("save image: %w", err)
	}
	p.alerter.Confirm("Image saved to gallery")
	return nil
}

// SaveFileToDevice persists a remote file locally and confirms.
func (p *Pipeline) SaveFileToDevice(ctx context.Context, url, name string) error {
	if err := p.saver.SaveFileToDevice(ctx, url, name); err != nil {
		p.alerter.Alert("Could not save file")
		return fmt.Errorf("save file: %w", err)
	}
	p.alerter.Confirm("File saved")
	return nil
}
