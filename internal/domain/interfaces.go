package domain

import (
	"context"
	"crypto/rsa"
)

// KeyStore persists the local key pair, scoped per owner identity. The
// contract is "survives process restart"; implementations may use a file, an
// OS keychain or an embedded database.
type KeyStore interface {
	SaveKeyPair(owner Identity, passphrase string, pair KeyPair) error
	// LoadKeyPair returns ErrKeyNotFound when nothing is stored for owner and
	// an error wrapping ErrKeyFormat when the blob cannot be decoded.
	LoadKeyPair(owner Identity, passphrase string) (KeyPair, error)
	DeleteKeyPair(owner Identity) error
}

// KeyManager drives the key pair lifecycle. EnsureKeyPair must complete
// before anything downstream touches the directory or the relay.
type KeyManager interface {
	// Load returns the persisted pair, or false on absence or any parse or
	// decrypt failure. It never surfaces an error.
	Load(ctx context.Context) (KeyPair, bool)
	Generate(ctx context.Context) (KeyPair, error)
	Persist(ctx context.Context, pair KeyPair) error
	// EnsureKeyPair is Load-else-Generate-then-Persist. generated reports
	// whether a fresh pair was created.
	EnsureKeyPair(ctx context.Context) (pair KeyPair, generated bool, err error)

	ExportPublic(pub *rsa.PublicKey) (string, error)
	ImportPublic(exported string) (*rsa.PublicKey, error)
}

// KeyDirectory maps identities to their currently registered public key.
type KeyDirectory interface {
	// RegisterPublicKey is an idempotent upsert.
	RegisterPublicKey(ctx context.Context, identity Identity, exported string) error
	// FetchPublicKey returns ErrKeyNotFound on a miss.
	FetchPublicKey(ctx context.Context, identity Identity) (string, error)
}

// HistoryClient reads persisted conversation data from the backend.
type HistoryClient interface {
	Contacts(ctx context.Context, identity Identity) ([]Identity, error)
	Messages(ctx context.Context, identity, other Identity) ([]Message, error)
}

// Transport is the realtime relay session. Deliveries arrive on Messages in
// transport order; the core adds no sequencing, reordering or deduplication.
type Transport interface {
	// Connect dials, subscribes to the inbound queue for self and announces
	// presence. The session counts as connected only after the subscription
	// is acknowledged.
	Connect(ctx context.Context, self Identity) error
	// Send is fire-and-forget; ErrNotConnected while down.
	Send(ctx context.Context, msg Message) error
	// Messages yields inbound deliveries. The channel is closed when the
	// session ends.
	Messages() <-chan Message
	State() ConnState
	// Close is safe to call even if Connect never ran or failed.
	Close() error
}
