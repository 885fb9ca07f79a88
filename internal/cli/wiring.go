package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"melody-quiz-service/internal/app"
	"melody-quiz-service/internal/config"
	"melody-quiz-service/internal/infra/memory"
	pgstore "melody-quiz-service/internal/infra/postgres"
	redisstore "melody-quiz-service/internal/infra/redis"
	"melody-quiz-service/internal/logging"
	"melody-quiz-service/internal/media"
	"melody-quiz-service/internal/media/clip"
	"melody-quiz-service/internal/media/ffprobe"
	transport "melody-quiz-service/internal/transport/http"
)

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	return logging.New(logging.Options{Level: level, Format: cfg.Log.Format, Output: os.Stderr})
}

func newProber(cfg config.Config) *ffprobe.Prober {
	return ffprobe.New(cfg.Media.FFprobe, nil)
}

func newExtractor(cfg config.Config, prober *ffprobe.Prober, logger *slog.Logger) *clip.Extractor {
	return clip.NewExtractor(clip.Options{
		FFmpegBinary: cfg.Media.FFmpeg,
		WorkDir:      cfg.Media.WorkDir,
		Timeout:      config.TTLDuration(cfg.Media.ExtractTimeout, 45*time.Second),
		Tolerance:    cfg.Media.Tolerance,
		OpusBitrate:  cfg.Media.OpusBitrate,
		MP3Bitrate:   cfg.Media.MP3Bitrate,
	}, prober, nil, logger)
}

// services holds the long-lived collaborators built from config.
type services struct {
	redis    *redis.Client
	pool     *pgxpool.Pool
	loader   memory.QuestionLoader
	catalog  *memory.StaticQuestionLoader
	registry *app.Registry
	hub      *transport.Hub
	archive  *redisstore.ScoreArchive
}

// catalogOf exposes the loader's listing for random question draws. Both the
// Postgres and file loaders list their questions.
func catalogOf(loader memory.QuestionLoader) app.QuestionCatalog {
	if c, ok := loader.(app.QuestionCatalog); ok {
		return c
	}
	return nil
}

func (s *services) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// openQuestionLoader prefers Postgres and falls back to the YAML catalog.
func openQuestionLoader(ctx context.Context, cfg config.Config, s *services) error {
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		s.pool = pool
		s.loader = pgstore.NewQuestionLoader(pool)
		return nil
	}
	catalog, err := memory.LoadCatalogFile(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	s.catalog = catalog
	s.loader = catalog
	return nil
}

func buildServices(ctx context.Context, cfg config.Config, logger *slog.Logger) (*services, error) {
	s := &services{hub: transport.NewHub()}
	if err := openQuestionLoader(ctx, cfg, s); err != nil {
		return nil, err
	}

	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)

	var questions app.QuestionRepository
	var store app.SessionStore
	notifier := app.MultiNotifier{s.hub}
	if s.redis != nil {
		questions = redisstore.NewQuestionRepository(s.redis, s.loader, catalogTTL)
		store = redisstore.NewSessionStore(s.redis, redisTTL)
		s.archive = redisstore.NewScoreArchive(s.redis, 24*time.Hour, logger)
		notifier = append(notifier, s.archive)
	} else {
		questions = memory.NewQuestionRepository(s.loader, catalogTTL)
		store = memory.NewSessionStore()
	}

	prober := newProber(cfg)
	locator := media.NewLocator(questions, prober, catalogTTL, logger,
		media.WithLookupTimeout(config.TTLDuration(cfg.Media.ExtractTimeout, 45*time.Second)))
	extractor := newExtractor(cfg, prober, logger)

	s.registry = app.NewRegistry(store, questions, locator, extractor, app.NewLedger(),
		app.WithDefaults(cfg.RoundConfig()),
		app.WithCatalog(catalogOf(s.loader)),
		app.WithNotifier(notifier),
		app.WithLogger(logger),
	)
	return s, nil
}
