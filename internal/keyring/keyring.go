package keyring

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"github.com/rs/zerolog"

	"sobre/internal/crypto"
	"sobre/internal/domain"
)

// rsaBits is the modulus size for generated pairs. 2048 matches the key
// material already registered by existing peers.
const rsaBits = 2048

// Service is a domain.KeyManager over a KeyStore, bound to one identity.
type Service struct {
	store      domain.KeyStore
	owner      domain.Identity
	passphrase string
	log        zerolog.Logger
}

func New(store domain.KeyStore, owner domain.Identity, passphrase string, log zerolog.Logger) *Service {
	return &Service{store: store, owner: owner, passphrase: passphrase, log: log}
}

// Load returns the persisted pair, or false when nothing usable is stored.
// Malformed or undecryptable blobs are reported as absence, never as an
// error; the caller's recovery is regeneration either way.
func (s *Service) Load(ctx context.Context) (domain.KeyPair, bool) {
	if err := ctx.Err(); err != nil {
		return domain.KeyPair{}, false
	}
	pair, err := s.store.LoadKeyPair(s.owner, s.passphrase)
	if err != nil {
		s.log.Debug().Err(err).Str("identity", string(s.owner)).Msg("no usable stored key pair")
		return domain.KeyPair{}, false
	}
	return pair, true
}

// Generate creates a fresh pair for the hybrid scheme. The pair only needs
// encrypt/decrypt capability; nothing here signs.
func (s *Service) Generate(ctx context.Context) (domain.KeyPair, error) {
	if err := ctx.Err(); err != nil {
		return domain.KeyPair{}, err
	}
	priv, err := rsa.GenerateKey(rand.Reader, rsaBits)
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("generate key pair: %w", err)
	}
	return domain.KeyPair{Public: &priv.PublicKey, Private: priv}, nil
}

func (s *Service) Persist(ctx context.Context, pair domain.KeyPair) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.store.SaveKeyPair(s.owner, s.passphrase, pair)
}

// EnsureKeyPair returns the stored pair or generates and persists a new one.
func (s *Service) EnsureKeyPair(ctx context.Context) (domain.KeyPair, bool, error) {
	if pair, ok := s.Load(ctx); ok {
		return pair, false, nil
	}
	pair, err := s.Generate(ctx)
	if err != nil {
		return domain.KeyPair{}, false, err
	}
	if err := s.Persist(ctx, pair); err != nil {
		return domain.KeyPair{}, false, fmt.Errorf("persist key pair: %w", err)
	}
	s.log.Info().Str("identity", string(s.owner)).
		Str("fingerprint", s.Fingerprint(pair.Public)).
		Msg("generated new key pair")
	return pair, true, nil
}

// ExportPublic produces the directory-safe serialization: base64 over PKIX DER.
func (s *Service) ExportPublic(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	return crypto.B64(der), nil
}

// ImportPublic is the inverse of ExportPublic.
func (s *Service) ImportPublic(exported string) (*rsa.PublicKey, error) {
	der, err := crypto.UnB64(exported)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", domain.ErrKeyFormat)
	}
	anyPub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", domain.ErrKeyFormat)
	}
	pub, ok := anyPub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T: %w", anyPub, domain.ErrKeyFormat)
	}
	return pub, nil
}

// Fingerprint returns a short display fingerprint of pub.
func (s *Service) Fingerprint(pub *rsa.PublicKey) string {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return ""
	}
	return crypto.Fingerprint(der)
}

var _ domain.KeyManager = (*Service)(nil)
