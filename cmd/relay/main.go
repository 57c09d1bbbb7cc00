package main

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"sobre/internal/relayserver"
)

func main() {
	_ = godotenv.Load()

	level, err := zerolog.ParseLevel(envOr("SOBRE_LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	addr := envOr("SOBRE_RELAY_ADDR", ":8080")
	srv := relayserver.New(os.Getenv("SOBRE_RELAY_TOKEN"), log)

	log.Info().Str("addr", addr).Msg("relay listening")
	if err := http.ListenAndServe(addr, srv.Router()); err != nil {
		log.Fatal().Err(err).Msg("relay stopped")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
