package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"

	"sobre/internal/domain"
)

const (
	// MessageKeyBytes is the AES-256 key size for the symmetric layer.
	MessageKeyBytes = 32
	// NonceBytes is the GCM nonce size carried in the envelope IV field.
	NonceBytes = 12
)

// Encrypt seals plaintext into a self-contained envelope for pub.
//
// A fresh symmetric key and nonce are drawn for this call only; the two
// copies of one chat message (sender and receiver) therefore never share
// either.
func Encrypt(plaintext string, pub *rsa.PublicKey) (domain.Envelope, error) {
	key := make([]byte, MessageKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return domain.Envelope{}, err
	}
	defer Wipe(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return domain.Envelope{}, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return domain.Envelope{}, err
	}

	nonce := make([]byte, NonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return domain.Envelope{}, err
	}
	ct := aead.Seal(nil, nonce, []byte(plaintext), nil)

	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("wrap message key: %w", err)
	}

	return domain.Envelope{
		EncryptedMessage: B64(ct),
		EncryptedKey:     B64(wrapped),
		IV:               B64(nonce),
	}, nil
}

// Decrypt opens env with priv and returns the plaintext.
//
// A failure to unwrap the message key yields domain.ErrKeyMismatch; any
// failure past that point yields domain.ErrTamperedCiphertext. Decryption
// never returns corrupted plaintext.
func Decrypt(env domain.Envelope, priv *rsa.PrivateKey) (string, error) {
	ct, err := UnB64(env.EncryptedMessage)
	if err != nil {
		return "", fmt.Errorf("decode payload: %w", domain.ErrTamperedCiphertext)
	}
	wrapped, err := UnB64(env.EncryptedKey)
	if err != nil {
		return "", fmt.Errorf("decode wrapped key: %w", domain.ErrTamperedCiphertext)
	}
	nonce, err := UnB64(env.IV)
	if err != nil || len(nonce) != NonceBytes {
		return "", fmt.Errorf("decode nonce: %w", domain.ErrTamperedCiphertext)
	}

	key, err := rsa.DecryptOAEP(sha256.New(), nil, priv, wrapped, nil)
	if err != nil {
		return "", fmt.Errorf("unwrap message key: %w", domain.ErrKeyMismatch)
	}
	defer Wipe(key)
	if len(key) != MessageKeyBytes {
		return "", fmt.Errorf("unwrapped key size %d: %w", len(key), domain.ErrTamperedCiphertext)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("open payload: %w", domain.ErrTamperedCiphertext)
	}
	return string(pt), nil
}
