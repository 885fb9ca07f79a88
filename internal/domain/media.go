package domain

import "fmt"

// Clip formats understood by the extractor.
const (
	FormatOggOpus = "ogg"
	FormatMP3     = "mp3"
)

// MediaReference locates a playable source and records its duration.
type MediaReference struct {
	Locator         string  `json:"locator"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// ClipSpec is a time window inside a media source.
type ClipSpec struct {
	Media              MediaReference
	StartOffsetSeconds float64
	DurationSeconds    float64
	Format             string
}

// Validate checks that the window is non-empty and fits inside the media.
func (s ClipSpec) Validate() error {
	if s.Media.Locator == "" {
		return Wrap(ErrInvalidSpec, "clip", "validate", "media locator is empty", nil)
	}
	if s.StartOffsetSeconds < 0 {
		return Wrap(ErrInvalidSpec, "clip", "validate", fmt.Sprintf("start offset %.3fs is negative", s.StartOffsetSeconds), nil)
	}
	if s.DurationSeconds <= 0 {
		return Wrap(ErrInvalidSpec, "clip", "validate", fmt.Sprintf("duration %.3fs must be positive", s.DurationSeconds), nil)
	}
	if end := s.StartOffsetSeconds + s.DurationSeconds; end > s.Media.DurationSeconds {
		return Wrap(ErrInvalidSpec, "clip", "validate",
			fmt.Sprintf("window ends at %.3fs past media duration %.3fs", end, s.Media.DurationSeconds), nil)
	}
	return nil
}

// Clip is an encoded audio excerpt ready for delivery.
type Clip struct {
	Data            []byte  `json:"data"`
	Format          string  `json:"format"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// Question is a quiz item backed by a piece of media.
type Question struct {
	ID              string   `json:"id" yaml:"id"`
	MediaURI        string   `json:"mediaUri" yaml:"media"`
	DurationSeconds float64  `json:"durationSeconds,omitempty" yaml:"duration,omitempty"`
	ClipStart       *float64 `json:"clipStart,omitempty" yaml:"clipStart,omitempty"`
	Artist          string   `json:"artist,omitempty" yaml:"artist,omitempty"`
	Title           string   `json:"title,omitempty" yaml:"title,omitempty"`
	Answers         []string `json:"answers,omitempty" yaml:"answers,omitempty"`
}

// CanonicalAnswers lists every accepted answer: the explicit list plus artist and title.
func (q Question) CanonicalAnswers() []string {
	out := make([]string, 0, len(q.Answers)+2)
	out = append(out, q.Answers...)
	if q.Artist != "" {
		out = append(out, q.Artist)
	}
	if q.Title != "" {
		out = append(out, q.Title)
	}
	return out
}

// Reveal is the human-readable answer shown when a round ends.
func (q Question) Reveal() string {
	switch {
	case q.Artist != "" && q.Title != "":
		return q.Artist + " - " + q.Title
	case q.Title != "":
		return q.Title
	case q.Artist != "":
		return q.Artist
	case len(q.Answers) > 0:
		return q.Answers[0]
	}
	return ""
}
