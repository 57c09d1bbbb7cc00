// Package store persists the local key pair on disk.
//
// Each owner identity gets its own blob file so that switching the
// authenticated identity on one device never reuses another identity's key
// pair. The blob is JSON carrying scrypt parameters, a salt, a nonce and a
// chacha20poly1305 ciphertext over the PKCS#8/PKIX encoded pair; writes go
// through a temp file and rename.
package store
