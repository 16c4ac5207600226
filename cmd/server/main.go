package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gomoku/backend/internal/analytics"
	"gomoku/backend/internal/cache"
	"gomoku/backend/internal/config"
	"gomoku/backend/internal/game"
	"gomoku/backend/internal/server"
	"gomoku/backend/internal/storage"
)

func main() {
	cfg := config.Load()
	zerolog.SetGlobalLevel(cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)
	logger := log.Logger

	weights := game.DefaultWeights()
	weights.Defense = cfg.Defense
	if err := weights.Validate(); err != nil {
		log.Fatal().Err(err).Msg("bad evaluator weights")
	}
	engine := game.NewEngine(cfg.Depth, game.NewEvaluator(weights), logger.With().Str("component", "engine").Logger())

	var searcher game.Searcher = engine
	if cfg.RedisURL != "" {
		client, err := cache.InitRedis(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis disabled")
		} else {
			defer client.Close()
			ns := fmt.Sprintf("d%d-x%g", engine.Depth, weights.Defense)
			searcher = cache.NewMoveCache(engine, client, ns, cfg.MoveCacheTTL, logger)
		}
	}

	var store storage.Store
	if cfg.PostgresURL != "" {
		pg, err := storage.NewPostgresStore(context.Background(), cfg.PostgresURL)
		if err != nil {
			log.Warn().Err(err).Msg("postgres disabled")
		} else {
			defer pg.Close()
			if err := pg.EnsureTables(context.Background()); err != nil {
				log.Warn().Err(err).Msg("postgres ensure tables failed")
			}
			store = pg
		}
	}

	producer := analytics.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	defer producer.Close()

	srv := server.New(server.Config{
		BoardSize:   cfg.BoardSize,
		IdleTimeout: cfg.IdleTimeout,
		Bot:         game.NewBot(game.SideB, searcher),
		Store:       store,
		Analytics:   producer,
		Log:         logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("addr", cfg.Addr).Int("depth", engine.Depth).Int("size", cfg.BoardSize).Msg("server listening")
	if err := srv.Run(ctx, cfg.Addr); err != nil {
		log.Error().Err(err).Msg("server exited")
	}
}
