package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct for the chat engine and the
// bundled dev backend.
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Chat     ChatConfig     `yaml:"chat"`
	Audio    AudioConfig    `yaml:"audio"`
	Uploads  UploadConfig   `yaml:"uploads"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
	DevServe DevServeConfig `yaml:"devserver"`
}

// BackendConfig points the engine at the REST backend.
type BackendConfig struct {
	BaseURL        string   `yaml:"base_url"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

// ChatConfig holds sync-engine tunables.
type ChatConfig struct {
	ActivityID   string   `yaml:"activity_id"`
	PollInterval Duration `yaml:"poll_interval"`
	// SendRPS/SendBurst bound optimistic sends; zero means defaults.
	SendRPS   float64 `yaml:"send_rps"`
	SendBurst int     `yaml:"send_burst"`
	// FailAfterPolls marks a pending draft as failed once this many polls
	// complete without the server echoing its client id.
	FailAfterPolls int `yaml:"fail_after_polls"`
}

// AudioConfig holds recorder and player tunables.
type AudioConfig struct {
	MinRecording     Duration `yaml:"min_recording"`
	ProgressInterval Duration `yaml:"progress_interval"`
	// EndSlack is how close to the end counts as finished.
	EndSlack Duration `yaml:"end_slack"`
}

// UploadConfig bounds the attachment pipeline.
type UploadConfig struct {
	Endpoint string    `yaml:"endpoint"`
	MaxSize  SizeBytes `yaml:"max_size"`
}

// CacheConfig configures the local pebble snapshot cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DevServeConfig configures the bundled stub backend.
type DevServeConfig struct {
	Address   string  `yaml:"address"`
	DBPath    string  `yaml:"db_path"`
	RateRPS   float64 `yaml:"rate_rps"`
	RateBurst int     `yaml:"rate_burst"`
	Retention struct {
		Enabled bool     `yaml:"enabled"`
		Cron    string   `yaml:"cron"`
		Period  Duration `yaml:"period"`
	} `yaml:"retention"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly
// strings like "16MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// Duration wraps time.Duration and parses YAML strings like "250ms" or
// plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
