// Package clip cuts bounded audio excerpts out of media sources with ffmpeg.
package clip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"melody-quiz-service/internal/domain"
	"melody-quiz-service/internal/logging"
	"melody-quiz-service/internal/media/ffprobe"
)

const (
	defaultTimeout   = 45 * time.Second
	defaultTolerance = 0.5
)

// DurationProber measures the duration of an encoded file.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Options configures the ffmpeg invocation.
type Options struct {
	FFmpegBinary string
	WorkDir      string
	Timeout      time.Duration
	Tolerance    float64
	OpusBitrate  string
	MP3Bitrate   string
}

// Extractor produces delivery-ready clips by shelling out to ffmpeg.
type Extractor struct {
	opts   Options
	probe  DurationProber
	run    ffprobe.Runner
	logger *slog.Logger
}

// NewExtractor builds an extractor. A nil runner uses ffprobe.ExecRunner.
func NewExtractor(opts Options, probe DurationProber, run ffprobe.Runner, logger *slog.Logger) *Extractor {
	if strings.TrimSpace(opts.FFmpegBinary) == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = defaultTolerance
	}
	if opts.OpusBitrate == "" {
		opts.OpusBitrate = "32k"
	}
	if opts.MP3Bitrate == "" {
		opts.MP3Bitrate = "128k"
	}
	if run == nil {
		run = ffprobe.ExecRunner
	}
	return &Extractor{
		opts:   opts,
		probe:  probe,
		run:    run,
		logger: logging.NewComponentLogger(logger, "clip"),
	}
}

// Extract encodes the window described by spec. The spec is validated before
// ffmpeg runs, and the produced clip must match the requested duration within
// the configured tolerance. Transcode and verification share one time bound.
func (e *Extractor) Extract(ctx context.Context, spec domain.ClipSpec) (domain.Clip, error) {
	if err := spec.Validate(); err != nil {
		return domain.Clip{}, err
	}
	format := spec.Format
	if format == "" {
		format = domain.FormatOggOpus
	}
	codecArgs, err := e.codecArgs(format)
	if err != nil {
		return domain.Clip{}, err
	}

	if err := os.MkdirAll(e.opts.WorkDir, 0o755); err != nil {
		return domain.Clip{}, domain.Wrap(domain.ErrExtractionFailed, "clip", "ensure workdir", "failed to create work directory", err)
	}
	tmp, err := os.CreateTemp(e.opts.WorkDir, "quiz_*."+format)
	if err != nil {
		return domain.Clip{}, domain.Wrap(domain.ErrExtractionFailed, "clip", "create output", "failed to create output file", err)
	}
	outPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(outPath)

	runCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	args := make([]string, 0, 24)
	args = append(args,
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", spec.StartOffsetSeconds),
		"-t", fmt.Sprintf("%.3f", spec.DurationSeconds),
		"-i", spec.Media.Locator,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
	)
	args = append(args, codecArgs...)
	args = append(args, outPath)

	started := time.Now()
	output, runErr := e.run(runCtx, e.opts.FFmpegBinary, args...)
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return domain.Clip{}, e.timeout("ffmpeg", runCtx.Err())
	}
	if runErr != nil {
		return domain.Clip{}, domain.Wrap(domain.ErrExtractionFailed, "clip", "ffmpeg",
			strings.TrimSpace(string(output)), runErr)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return domain.Clip{}, domain.Wrap(domain.ErrExtractionFailed, "clip", "read output", "failed to read encoded clip", err)
	}
	if len(data) == 0 {
		return domain.Clip{}, domain.Wrap(domain.ErrExtractionFailed, "clip", "read output", "ffmpeg produced empty output", nil)
	}

	actual := spec.DurationSeconds
	if e.probe != nil {
		actual, err = e.probe.Duration(runCtx, outPath)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return domain.Clip{}, e.timeout("verify duration", runCtx.Err())
		}
		if err != nil {
			return domain.Clip{}, domain.Wrap(domain.ErrExtractionFailed, "clip", "verify duration", "failed to probe encoded clip", err)
		}
		if math.Abs(actual-spec.DurationSeconds) > e.opts.Tolerance {
			return domain.Clip{}, domain.Wrap(domain.ErrExtractionFailed, "clip", "verify duration",
				fmt.Sprintf("clip lasts %.3fs, requested %.3fs (tolerance %.2fs)", actual, spec.DurationSeconds, e.opts.Tolerance), nil)
		}
	}

	e.logger.Debug("clip extracted",
		logging.String("source", spec.Media.Locator),
		logging.Float64("start_seconds", spec.StartOffsetSeconds),
		logging.Float64("duration_seconds", actual),
		logging.Int("bytes", len(data)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return domain.Clip{Data: data, Format: format, DurationSeconds: actual}, nil
}

func (e *Extractor) timeout(operation string, cause error) error {
	return domain.Wrap(domain.ErrTimeout, "clip", operation,
		fmt.Sprintf("extraction exceeded %s", e.opts.Timeout), cause)
}

// codecArgs follows the voice-note profile for Opus: mono, 48kHz, VBR.
func (e *Extractor) codecArgs(format string) ([]string, error) {
	switch format {
	case domain.FormatOggOpus:
		return []string{
			"-c:a", "libopus",
			"-b:a", e.opts.OpusBitrate,
			"-ac", "1",
			"-ar", "48000",
			"-vbr", "on",
			"-compression_level", "10",
			"-f", "ogg",
		}, nil
	case domain.FormatMP3:
		return []string{
			"-c:a", "libmp3lame",
			"-b:a", e.opts.MP3Bitrate,
			"-ar", "44100",
			"-f", "mp3",
		}, nil
	default:
		return nil, domain.Wrap(domain.ErrInvalidSpec, "clip", "select codec", fmt.Sprintf("unsupported format %q", format), nil)
	}
}
