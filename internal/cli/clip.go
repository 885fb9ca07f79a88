package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"melody-quiz-service/internal/domain"
	"melody-quiz-service/internal/logging"
)

// NewClipCmd extracts a single clip to disk with the same pipeline rounds use.
func NewClipCmd(configPath *string) *cobra.Command {
	var (
		start    float64
		duration float64
		format   string
		out      string
	)
	cmd := &cobra.Command{
		Use:   "clip <media>",
		Short: "Extract a quiz clip from a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			source := args[0]

			prober := newProber(cfg)
			total, err := prober.Duration(ctx, source)
			if err != nil {
				return fmt.Errorf("probe %s: %w", source, err)
			}

			q := domain.Question{ID: filepath.Base(source), MediaURI: source}
			if cmd.Flags().Changed("start") {
				q.ClipStart = &start
			}
			if duration <= 0 {
				duration = cfg.RoundConfig().ClipSeconds
			}
			if format == "" {
				format = cfg.RoundConfig().Format
			}
			spec := domain.PlanClip(q, domain.MediaReference{Locator: source, DurationSeconds: total}, duration, format)

			result, err := newExtractor(cfg, prober, logger).Extract(ctx, spec)
			if err != nil {
				return err
			}
			if out == "" {
				base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
				out = fmt.Sprintf("%s_clip.%s", base, result.Format)
			}
			if err := os.WriteFile(out, result.Data, 0o644); err != nil {
				return fmt.Errorf("write clip: %w", err)
			}
			logger.Info("clip written",
				logging.String("path", out),
				logging.Float64("start_seconds", spec.StartOffsetSeconds),
				logging.Float64("duration_seconds", result.DurationSeconds),
				logging.Int("bytes", len(result.Data)))
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.2fs from %.2fs\n", out, result.DurationSeconds, spec.StartOffsetSeconds)
			return nil
		},
	}
	cmd.Flags().Float64Var(&start, "start", 0, "clip start in seconds (defaults to shortly before the midpoint)")
	cmd.Flags().Float64Var(&duration, "duration", 0, "clip length in seconds (defaults to round.clipSeconds)")
	cmd.Flags().StringVar(&format, "format", "", "output format: ogg or mp3 (defaults to round.format)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	return cmd
}
