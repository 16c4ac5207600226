package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"gomoku/backend/internal/analytics"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getenv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	broker := getenv("KAFKA_BROKER", "localhost:9092")
	topic := getenv("KAFKA_TOPIC", "game-events")

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{broker},
		Topic:   topic,
		GroupID: "analytics-consumer",
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("broker", broker).Str("topic", topic).Msg("analytics consumer listening")

	tally := analytics.NewTally()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				printSummary(tally.Summary())
			}
		}
	}()

	for {
		msg, err := reader.ReadMessage(ctx)
		if errors.Is(err, context.Canceled) {
			printSummary(tally.Summary())
			return
		}
		if err != nil {
			log.Fatal().Err(err).Msg("read error")
		}
		e, err := analytics.Decode(msg.Value)
		if err != nil {
			log.Warn().Err(err).Msg("failed to unmarshal event")
			continue
		}
		tally.Record(e)
		log.Debug().Str("event", e.Event).Interface("match", e.Payload["matchId"]).Msg("event")
	}
}

func printSummary(s analytics.Summary) {
	log.Info().
		Int("games", s.Games).
		Int("moves", s.Moves).
		Interface("by_mode", s.ByMode).
		Interface("by_outcome", s.ByOutcome).
		Str("top_player", s.TopPlayer).
		Msg("analytics summary")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
