// Package crypto implements the hybrid scheme used for message content.
//
// Contents
//
//   - Per-message hybrid encryption: a fresh AES-256-GCM key and 12-byte
//     nonce per call, the raw key wrapped with RSA-OAEP/SHA-256 under the
//     recipient's public key (Encrypt, Decrypt)
//   - Base64 transport encoding helpers (B64, UnB64)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//
// # Notes
//
// RSA is never applied to bulk payloads; it only wraps the symmetric key.
// Decrypt distinguishes a wrong private key (domain.ErrKeyMismatch) from a
// modified payload (domain.ErrTamperedCiphertext) so callers can render the
// right degraded state per message.
package crypto
