package app

import (
	"sobre/internal/conversation"
	"sobre/internal/directory"
	"sobre/internal/domain"
	"sobre/internal/keyring"
	"sobre/internal/realtime"
	"sobre/internal/store"
)

// Wire bundles the stores, services and clients for the CLI.
type Wire struct {
	Keys         *keyring.Service
	Directory    *directory.Client
	Transport    domain.Transport
	Conversation *conversation.Store
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) *Wire {
	keyStore := store.NewFileStore(cfg.Home)
	keys := keyring.New(keyStore, cfg.Self, cfg.Passphrase, cfg.Logger)

	dir := directory.New(cfg.BackendURL, cfg.Token, cfg.HTTP)
	transport := realtime.New(cfg.RelayWSURL, cfg.Logger)

	conv := conversation.New(
		cfg.Self,
		keys,
		dir,
		dir,
		transport,
		cfg.AllowSelfKeyFallback,
		cfg.Logger,
	)

	return &Wire{
		Keys:         keys,
		Directory:    dir,
		Transport:    transport,
		Conversation: conv,
	}
}
