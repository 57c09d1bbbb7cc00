package store

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"sobre/internal/domain"
)

// keyPairDoc is the plaintext structure sealed inside the blob.
type keyPairDoc struct {
	Private []byte `json:"private"` // PKCS#8 DER
	Public  []byte `json:"public"`  // PKIX DER
}

// FileStore keeps one encrypted key blob per owner identity under dir.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) *FileStore { return &FileStore{dir: dir} }

// keyPath derives a filesystem-safe per-identity file name. Identities are
// arbitrary strings (emails), so the name is a digest, not the identity.
func (s *FileStore) keyPath(owner domain.Identity) string {
	sum := sha256.Sum256([]byte(owner))
	return filepath.Join(s.dir, "key-"+hex.EncodeToString(sum[:8])+".enc")
}

func (s *FileStore) SaveKeyPair(owner domain.Identity, passphrase string, pair domain.KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pair.Private == nil || pair.Public == nil {
		return fmt.Errorf("save key pair: %w", domain.ErrKeyFormat)
	}
	priv, err := x509.MarshalPKCS8PrivateKey(pair.Private)
	if err != nil {
		return err
	}
	pub, err := x509.MarshalPKIXPublicKey(pair.Public)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(keyPairDoc{Private: priv, Public: pub})
	if err != nil {
		return err
	}
	sealed, err := seal(passphrase, raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	return writeFileAtomic(s.keyPath(owner), sealed, 0o600)
}

func (s *FileStore) LoadKeyPair(owner domain.Identity, passphrase string) (domain.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := os.ReadFile(s.keyPath(owner))
	if errors.Is(err, os.ErrNotExist) {
		return domain.KeyPair{}, domain.ErrKeyNotFound
	}
	if err != nil {
		return domain.KeyPair{}, err
	}
	raw, err := open(passphrase, sealed)
	if err != nil {
		return domain.KeyPair{}, err
	}
	var doc keyPairDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.KeyPair{}, fmt.Errorf("decode key pair: %w", domain.ErrKeyFormat)
	}

	anyPriv, err := x509.ParsePKCS8PrivateKey(doc.Private)
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("parse private key: %w", domain.ErrKeyFormat)
	}
	priv, ok := anyPriv.(*rsa.PrivateKey)
	if !ok {
		return domain.KeyPair{}, fmt.Errorf("private key is %T: %w", anyPriv, domain.ErrKeyFormat)
	}
	anyPub, err := x509.ParsePKIXPublicKey(doc.Public)
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("parse public key: %w", domain.ErrKeyFormat)
	}
	pub, ok := anyPub.(*rsa.PublicKey)
	if !ok {
		return domain.KeyPair{}, fmt.Errorf("public key is %T: %w", anyPub, domain.ErrKeyFormat)
	}
	return domain.KeyPair{Public: pub, Private: priv}, nil
}

func (s *FileStore) DeleteKeyPair(owner domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.keyPath(owner))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// writeFileAtomic writes via a temp file then rename.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

var _ domain.KeyStore = (*FileStore)(nil)
