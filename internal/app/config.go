package app

import (
	"net/http"

	"github.com/rs/zerolog"

	"sobre/internal/domain"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home       string          // config directory, e.g. $HOME/.sobre
	Self       domain.Identity // authenticated identity from the provider
	Passphrase string          // protects the key pair at rest
	BackendURL string          // directory/storage base URL
	RelayWSURL string          // relay websocket URL, e.g. ws://127.0.0.1:8080/ws
	Token      string          // bearer credential from the identity provider

	// AllowSelfKeyFallback enables the degraded self-key encryption path on
	// directory misses. Development setups only.
	AllowSelfKeyFallback bool

	HTTP   *http.Client // optional; defaults to http.DefaultClient
	Logger zerolog.Logger
}
