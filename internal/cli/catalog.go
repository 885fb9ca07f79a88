package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"melody-quiz-service/internal/config"
	"melody-quiz-service/internal/domain"
	"melody-quiz-service/internal/infra/memory"
	pgstore "melody-quiz-service/internal/infra/postgres"
	"melody-quiz-service/internal/logging"
)

// NewCatalogCmd inspects and seeds the question catalog.
func NewCatalogCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect or import quiz questions",
	}
	cmd.AddCommand(newCatalogListCmd(configPath), newCatalogImportCmd(configPath))
	return cmd
}

func newCatalogListCmd(configPath *string) *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List questions from Postgres or the catalog file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			questions, err := listQuestions(ctx, cfg)
			if err != nil {
				return err
			}
			if probe {
				prober := newProber(cfg)
				for i := range questions {
					if questions[i].DurationSeconds > 0 || questions[i].MediaURI == "" {
						continue
					}
					if d, err := prober.Duration(ctx, questions[i].MediaURI); err == nil {
						questions[i].DurationSeconds = d
					}
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderQuestions(questions))
			return nil
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "probe media files with ffprobe to fill missing durations")
	return cmd
}

func newCatalogImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <catalog.yaml>",
		Short: "Upsert a YAML catalog into Postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
				return err
			}
			catalog, err := memory.LoadCatalogFile(args[0])
			if err != nil {
				return err
			}
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			loader := pgstore.NewQuestionLoader(pool)
			questions := catalog.List()
			for _, q := range questions {
				if err := loader.UpsertQuestion(ctx, q); err != nil {
					return err
				}
			}
			logger.Info("catalog imported", logging.Int("questions", len(questions)))
			return nil
		},
	}
}

func listQuestions(ctx context.Context, cfg config.Config) ([]domain.Question, error) {
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		return pgstore.NewQuestionLoader(pool).ListQuestions(ctx)
	}
	catalog, err := memory.LoadCatalogFile(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	return catalog.List(), nil
}

func renderQuestions(questions []domain.Question) string {
	rows := make([][]string, 0, len(questions))
	for _, q := range questions {
		duration := "-"
		if q.DurationSeconds > 0 {
			duration = strconv.FormatFloat(q.DurationSeconds, 'f', 1, 64)
		}
		rows = append(rows, []string{q.ID, q.Artist, q.Title, duration, strings.Join(q.Answers, ", "), q.MediaURI})
	}
	return renderTable(
		[]string{"ID", "Artist", "Title", "Duration", "Aliases", "Media"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}
