package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither file, env, nor flags provide a value. The
// activity chat polls every 5s; the player publishes progress every 250ms;
// recordings shorter than 300ms are treated as accidental taps.
const (
	DefaultPollInterval     = 5 * time.Second
	DefaultRequestTimeout   = 10 * time.Second
	DefaultProgressInterval = 250 * time.Millisecond
	DefaultMinRecording     = 300 * time.Millisecond
	DefaultEndSlack         = 150 * time.Millisecond
	DefaultFailAfterPolls   = 2
)

// Load reads the YAML config at path. A missing file is not an error; the
// zero Config with defaults applied is returned instead.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyDefaults(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// LoadEffective merges file values with CHATKIT_* env overrides. Env wins
// over file; callers layer explicit flags on top.
func LoadEffective(path string) (Config, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, false, err
	}
	envUsed := applyEnv(&cfg)
	return cfg, envUsed, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Backend.RequestTimeout.Duration() == 0 {
		cfg.Backend.RequestTimeout = Duration(DefaultRequestTimeout)
	}
	if cfg.Chat.PollInterval.Duration() == 0 {
		cfg.Chat.PollInterval = Duration(DefaultPollInterval)
	}
	if cfg.Chat.FailAfterPolls == 0 {
		cfg.Chat.FailAfterPolls = DefaultFailAfterPolls
	}
	if cfg.Audio.MinRecording.Duration() == 0 {
		cfg.Audio.MinRecording = Duration(DefaultMinRecording)
	}
	if cfg.Audio.ProgressInterval.Duration() == 0 {
		cfg.Audio.ProgressInterval = Duration(DefaultProgressInterval)
	}
	if cfg.Audio.EndSlack.Duration() == 0 {
		cfg.Audio.EndSlack = Duration(DefaultEndSlack)
	}
	if cfg.DevServe.Address == "" {
		cfg.DevServe.Address = ":8970"
	}
	if cfg.DevServe.DBPath == "" {
		cfg.DevServe.DBPath = "./devserver-db"
	}
}

func applyEnv(cfg *Config) bool {
	used := false
	if v := os.Getenv("CHATKIT_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
		used = true
	}
	if v := os.Getenv("CHATKIT_ACTIVITY_ID"); v != "" {
		cfg.Chat.ActivityID = v
		used = true
	}
	if v := os.Getenv("CHATKIT_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Chat.PollInterval = Duration(d)
			used = true
		}
	}
	if v := os.Getenv("CHATKIT_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
		cfg.Cache.Enabled = true
		used = true
	}
	if v := os.Getenv("CHATKIT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
		used = true
	}
	if v := os.Getenv("CHATKIT_DEVSERVER_ADDR"); v != "" {
		cfg.DevServe.Address = v
		used = true
	}
	if v := os.Getenv("CHATKIT_DEVSERVER_DB"); v != "" {
		cfg.DevServe.DBPath = v
		used = true
	}
	if v := os.Getenv("CHATKIT_UPLOAD_MAX"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Uploads.MaxSize = SizeBytes(i)
			used = true
		}
	}
	return used
}
