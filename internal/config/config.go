package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"melody-quiz-service/internal/domain"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Catalog struct {
		Path string `yaml:"path"`
		TTL  string `yaml:"ttl"`
	} `yaml:"catalog"`
	Media struct {
		FFmpeg         string  `yaml:"ffmpeg"`
		FFprobe        string  `yaml:"ffprobe"`
		WorkDir        string  `yaml:"workDir"`
		ExtractTimeout string  `yaml:"extractTimeout"`
		Tolerance      float64 `yaml:"tolerance"`
		OpusBitrate    string  `yaml:"opusBitrate"`
		MP3Bitrate     string  `yaml:"mp3Bitrate"`
	} `yaml:"media"`
	Round struct {
		Deadline            string  `yaml:"deadline"`
		ClipSeconds         float64 `yaml:"clipSeconds"`
		Format              string  `yaml:"format"`
		MaxPoints           int     `yaml:"maxPoints"`
		FloorPoints         int     `yaml:"floorPoints"`
		Decay               string  `yaml:"decay"`
		Steps               int     `yaml:"steps"`
		FastestBonus        int     `yaml:"fastestBonus"`
		Normalization       string  `yaml:"normalization"`
		CloseOnFirstCorrect bool    `yaml:"closeOnFirstCorrect"`
	} `yaml:"round"`
}

// Default returns a configuration that runs with the bundled catalog and no
// external stores.
func Default() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	cfg.Redis.TTL = "10m"
	cfg.Catalog.Path = "config/catalog.yaml"
	cfg.Catalog.TTL = "10m"
	cfg.Media.FFmpeg = "ffmpeg"
	cfg.Media.FFprobe = "ffprobe"
	cfg.Media.ExtractTimeout = "45s"
	cfg.Media.Tolerance = 0.5
	cfg.Media.OpusBitrate = "32k"
	cfg.Media.MP3Bitrate = "128k"

	defaults := domain.DefaultRoundConfig()
	cfg.Round.Deadline = defaults.Deadline.String()
	cfg.Round.ClipSeconds = defaults.ClipSeconds
	cfg.Round.Format = defaults.Format
	cfg.Round.MaxPoints = defaults.MaxPoints
	cfg.Round.FloorPoints = defaults.FloorPoints
	cfg.Round.Decay = string(defaults.Decay)
	cfg.Round.Steps = defaults.Steps
	cfg.Round.Normalization = string(defaults.Normalization)
	return cfg
}

// Load reads YAML config from path on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem found rather than the first one.
func (c Config) Validate() error {
	var errs []error
	for name, raw := range map[string]string{
		"redis.ttl":            c.Redis.TTL,
		"catalog.ttl":          c.Catalog.TTL,
		"media.extractTimeout": c.Media.ExtractTimeout,
		"round.deadline":       c.Round.Deadline,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Media.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("media.tolerance must not be negative"))
	}
	if strings.TrimSpace(c.Media.FFmpeg) == "" {
		errs = append(errs, fmt.Errorf("media.ffmpeg is required"))
	}
	if err := c.RoundConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("round: %w", err))
	}
	return errors.Join(errs...)
}

// RoundConfig converts the round section into engine defaults.
func (c Config) RoundConfig() domain.RoundConfig {
	return domain.RoundConfig{
		Deadline:            TTLDuration(c.Round.Deadline, domain.DefaultRoundConfig().Deadline),
		ClipSeconds:         c.Round.ClipSeconds,
		Format:              c.Round.Format,
		MaxPoints:           c.Round.MaxPoints,
		FloorPoints:         c.Round.FloorPoints,
		Decay:               domain.DecayMode(c.Round.Decay),
		Steps:               c.Round.Steps,
		FastestBonus:        c.Round.FastestBonus,
		Normalization:       domain.Normalization(c.Round.Normalization),
		CloseOnFirstCorrect: c.Round.CloseOnFirstCorrect,
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
