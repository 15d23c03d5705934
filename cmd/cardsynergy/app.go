package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/ramonehamilton/cardsynergy/internal/cache"
	"github.com/ramonehamilton/cardsynergy/internal/config"
	"github.com/ramonehamilton/cardsynergy/internal/engine"
	"github.com/ramonehamilton/cardsynergy/internal/feedback"
	"github.com/ramonehamilton/cardsynergy/internal/llm"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards"
	"github.com/ramonehamilton/cardsynergy/internal/mtga/cards/scryfall"
	"github.com/ramonehamilton/cardsynergy/internal/storage"
	"github.com/ramonehamilton/cardsynergy/internal/storage/repository"
	"github.com/ramonehamilton/cardsynergy/internal/themes"
)

// app is the wired service graph shared by the commands.
type app struct {
	db       *storage.DB
	dbPath   string
	cache    cache.Store
	catalog  repository.CardRepository
	scryfall *scryfall.Client
	cards    *cards.Service
	themes   *themes.Service
	engine   *engine.Engine

	closers []io.Closer
}

// newApp opens storage and builds every service from cfg.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}

	dbConfig := storage.DefaultConfig(dbPath)
	dbConfig.AutoMigrate = cfg.Database.AutoMigrate
	db, err := storage.Open(dbConfig)
	if err != nil {
		return nil, err
	}

	a := &app{db: db, dbPath: dbPath}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	conn := db.Conn()
	a.catalog = repository.NewCardRepository(conn)

	a.cache, err = openCache(ctx, cfg, conn)
	if err != nil {
		return nil, err
	}
	if c, ok := a.cache.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	a.scryfall = scryfall.NewClient()
	a.cards = cards.NewService(a.catalog, a.cache, a.scryfall, &cards.ServiceConfig{
		CacheTTL:      cfg.CardTTL(),
		FallbackToAPI: cfg.Recommendations.FallbackToAPI,
	})

	generator, err := a.openGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	themeRepo := repository.NewThemeRepository(conn)
	recRepo := repository.NewRecommendationRepository(conn)
	a.themes = themes.NewService(themeRepo, themes.NewClassifier(generator, cfg.LLMTimeout()), a.cards, themesConfig(cfg))

	a.engine = engine.New(engine.Deps{
		Cards:           a.cards,
		Catalog:         a.catalog,
		Cache:           a.cache,
		Recommendations: recRepo,
		Themes:          a.themes,
		Votes:           feedback.NewService(db, repository.NewVoteRepository(conn), themeRepo, recRepo),
	}, engineConfig(cfg))

	return a, nil
}

func openCache(ctx context.Context, cfg *config.Config, conn *sql.DB) (cache.Store, error) {
	if cfg.Cache.Backend == "redis" {
		store, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:   cfg.Cache.RedisAddr,
			DB:     cfg.Cache.RedisDB,
			Prefix: cfg.Cache.Prefix,
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Using Redis cache")
		return store, nil
	}
	return cache.NewSQLiteStore(repository.NewCacheRepository(conn)), nil
}

// openGenerator builds the theme classification backend behind a rate
// limiter and circuit breaker.
func (a *app) openGenerator(ctx context.Context, cfg *config.Config) (llm.Generator, error) {
	var next llm.Generator

	switch cfg.LLM.Provider {
	case "ollama":
		ollama := llm.DefaultOllamaConfig()
		if cfg.LLM.Model != "" {
			ollama.Model = cfg.LLM.Model
		}
		if cfg.LLM.OllamaURL != "" {
			ollama.BaseURL = cfg.LLM.OllamaURL
		}
		ollama.Temperature = cfg.LLM.Temperature
		ollama.InferenceTimeout = cfg.LLMTimeout()
		ollama.AutoPullModel = cfg.LLM.AutoPullModel
		next = llm.NewOllamaClient(ollama)

	case "gemini":
		gemini, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:      cfg.LLM.GeminiAPIKey,
			Model:       cfg.LLM.Model,
			Temperature: float32(cfg.LLM.Temperature),
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gemini)
		next = gemini

	default:
		log.Info().Msg("Theme classification disabled")
		return llm.Failing(), nil
	}

	return llm.NewGuard(next, llm.GuardConfig{
		Provider:          cfg.LLM.Provider,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		FailureThreshold:  cfg.LLM.FailureThreshold,
		OpenTimeout:       cfg.BreakerTimeout(),
	}), nil
}

func engineConfig(cfg *config.Config) *engine.Config {
	return &engine.Config{
		PoolSize:       cfg.Recommendations.PoolSize,
		DefaultLimit:   cfg.Recommendations.DefaultLimit,
		SearchPageSize: cfg.Recommendations.SearchPageSize,
		MaxPageSize:    cfg.Recommendations.MaxPageSize,
		SearchTTL:      cfg.SearchTTL(),
		Workers:        cfg.Recommendations.Workers,
	}
}

func themesConfig(cfg *config.Config) *themes.ServiceConfig {
	return &themes.ServiceConfig{
		MinConfidence: cfg.Themes.MinConfidence,
		CardLimit:     cfg.Themes.CardLimit,
	}
}

// purgeCache drops expired cache entries.
func (a *app) purgeCache(ctx context.Context) error {
	n, err := a.cache.Purge(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge cache: %w", err)
	}
	if n > 0 {
		log.Info().Int64("removed", n).Msg("Purged expired cache entries")
	}
	return nil
}

// Close releases every resource opened by newApp.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close resource")
		}
	}
	if err := a.db.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close database")
	}
}

// withApp runs fn against a freshly wired app and closes it afterwards.
func (c *cli) withApp(ctx context.Context, fn func(*app) error) error {
	a, err := newApp(ctx, c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()
	return fn(a)
}
