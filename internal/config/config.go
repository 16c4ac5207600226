package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	Addr      string
	LogLevel  zerolog.Level
	BoardSize int

	// Depth (SEARCH_DEPTH) counts plies with the engine's own move included,
	// so 2 looks at one reply. Set 3 to also search the engine's follow-up.
	Depth   int
	Defense float64

	IdleTimeout  time.Duration
	PostgresURL  string
	KafkaBrokers []string
	KafkaTopic   string
	RedisURL     string
	MoveCacheTTL time.Duration
}

// Load reads .env if present and then the process environment. Malformed
// values fall back to their defaults.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() Config {
	// PORT wins over ADDR for hosts that inject it.
	addr := getEnv("ADDR", ":8080")
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return Config{
		Addr:         addr,
		LogLevel:     level,
		BoardSize:    intEnv("BOARD_SIZE", 15),
		Depth:        intEnv("SEARCH_DEPTH", 2),
		Defense:      floatEnv("DEFENSE_MULTIPLIER", 2),
		IdleTimeout:  durationEnv("IDLE_TIMEOUT", 300*time.Second),
		PostgresURL:  os.Getenv("POSTGRES_URL"),
		KafkaBrokers: listEnv("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "game-events"),
		RedisURL:     os.Getenv("REDIS_URL"),
		MoveCacheTTL: durationEnv("MOVE_CACHE_TTL", time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// durationEnv reads a whole number of seconds.
func durationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return time.Duration(parsed) * time.Second
		}
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func floatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func listEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
