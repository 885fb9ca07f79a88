package domain

import (
	"fmt"
	"time"
)

// DecayMode selects how points shrink with answer latency.
type DecayMode string

const (
	DecayNone    DecayMode = "none"
	DecayLinear  DecayMode = "linear"
	DecayStepped DecayMode = "stepped"
)

// Normalization selects how answers are compared with canonical answers.
type Normalization string

const (
	NormalizeExact           Normalization = "exact"
	NormalizeCaseInsensitive Normalization = "caseInsensitive"
	NormalizeFuzzy           Normalization = "fuzzy"
)

// RoundConfig carries per-round parameters. Zero fields inherit defaults.
type RoundConfig struct {
	Deadline            time.Duration `json:"deadline,omitempty"`
	ClipSeconds         float64       `json:"clipSeconds,omitempty"`
	Format              string        `json:"format,omitempty"`
	MaxPoints           int           `json:"maxPoints,omitempty"`
	FloorPoints         int           `json:"floorPoints,omitempty"`
	Decay               DecayMode     `json:"decay,omitempty"`
	Steps               int           `json:"steps,omitempty"`
	FastestBonus        int           `json:"fastestBonus,omitempty"`
	Normalization       Normalization `json:"normalization,omitempty"`
	CloseOnFirstCorrect bool          `json:"closeOnFirstCorrect,omitempty"`
}

// DefaultRoundConfig mirrors the classic "guess the melody" round: a 15s clip
// and a 30s answer window.
func DefaultRoundConfig() RoundConfig {
	return RoundConfig{
		Deadline:      30 * time.Second,
		ClipSeconds:   15,
		Format:        FormatOggOpus,
		MaxPoints:     100,
		FloorPoints:   0,
		Decay:         DecayLinear,
		Steps:         3,
		Normalization: NormalizeFuzzy,
	}
}

// RoundOverride carries per-round settings. A nil field keeps the configured
// default; a non-nil field replaces it, zero values included.
type RoundOverride struct {
	Deadline            *time.Duration
	ClipSeconds         *float64
	Format              *string
	MaxPoints           *int
	FloorPoints         *int
	Decay               *DecayMode
	Steps               *int
	FastestBonus        *int
	Normalization       *Normalization
	CloseOnFirstCorrect *bool
}

// Ptr returns a pointer to v, for building overrides inline.
func Ptr[T any](v T) *T { return &v }

// Apply overlays the set fields of o onto c.
func (c RoundConfig) Apply(o RoundOverride) RoundConfig {
	out := c
	set(&out.Deadline, o.Deadline)
	set(&out.ClipSeconds, o.ClipSeconds)
	set(&out.Format, o.Format)
	set(&out.MaxPoints, o.MaxPoints)
	set(&out.FloorPoints, o.FloorPoints)
	set(&out.Decay, o.Decay)
	set(&out.Steps, o.Steps)
	set(&out.FastestBonus, o.FastestBonus)
	set(&out.Normalization, o.Normalization)
	set(&out.CloseOnFirstCorrect, o.CloseOnFirstCorrect)
	return out
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Validate rejects configurations the engine cannot run.
func (c RoundConfig) Validate() error {
	if c.Deadline <= 0 {
		return fmt.Errorf("round deadline must be positive, got %s", c.Deadline)
	}
	if c.ClipSeconds <= 0 {
		return fmt.Errorf("clip seconds must be positive, got %v", c.ClipSeconds)
	}
	if c.MaxPoints <= 0 {
		return fmt.Errorf("max points must be positive, got %d", c.MaxPoints)
	}
	if c.FloorPoints < 0 || c.FloorPoints > c.MaxPoints {
		return fmt.Errorf("floor points must be within [0, %d], got %d", c.MaxPoints, c.FloorPoints)
	}
	switch c.Decay {
	case DecayNone, DecayLinear:
	case DecayStepped:
		if c.Steps <= 0 {
			return fmt.Errorf("stepped decay needs a positive step count, got %d", c.Steps)
		}
	default:
		return fmt.Errorf("unknown decay mode %q", c.Decay)
	}
	switch c.Normalization {
	case NormalizeExact, NormalizeCaseInsensitive, NormalizeFuzzy:
	default:
		return fmt.Errorf("unknown answer normalization %q", c.Normalization)
	}
	switch c.Format {
	case FormatOggOpus, FormatMP3:
	default:
		return fmt.Errorf("unknown clip format %q", c.Format)
	}
	if c.FastestBonus < 0 {
		return fmt.Errorf("fastest bonus must not be negative, got %d", c.FastestBonus)
	}
	return nil
}
