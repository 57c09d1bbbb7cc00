package domain

import "errors"

var (
	// ErrKeyFormat reports malformed stored or imported key material. Recovery
	// is to treat the key as absent and regenerate, at the cost of access to
	// prior history.
	ErrKeyFormat = errors.New("malformed key material")

	// ErrKeyMismatch reports that an envelope's wrapped key could not be
	// opened with the given private key. The envelope was produced for a
	// different key pair: the wrong copy, or keys rotated since encryption.
	ErrKeyMismatch = errors.New("private key does not match envelope")

	// ErrTamperedCiphertext reports a failed authentication check on the
	// symmetric payload. The envelope was modified in transit or at rest.
	ErrTamperedCiphertext = errors.New("ciphertext failed authentication")

	// ErrKeyNotFound is the defined directory miss: the peer has no registered
	// public key.
	ErrKeyNotFound = errors.New("no public key registered for identity")

	// ErrDirectoryUnavailable reports a transport or server failure talking to
	// the key directory or backend.
	ErrDirectoryUnavailable = errors.New("directory unavailable")

	// ErrAuthExpired reports a rejected bearer credential. The caller must
	// discard the credential and re-authenticate through the identity
	// provider.
	ErrAuthExpired = errors.New("credential rejected")

	// ErrNotConnected reports a send attempted while the realtime session is
	// not connected and subscribed.
	ErrNotConnected = errors.New("realtime session not connected")

	// ErrRecipientKeyUnavailable reports a refused send: the peer's public key
	// could not be fetched and self-key fallback is disabled.
	ErrRecipientKeyUnavailable = errors.New("recipient public key unavailable")
)
