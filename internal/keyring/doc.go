// Package keyring manages the local asymmetric key pair lifecycle.
//
// The pair is created once per identity per installation and reused for its
// lifetime; regenerating it silently orphans every envelope produced under
// the old pair. EnsureKeyPair is the readiness gate the rest of the pipeline
// waits on before registering with the directory or opening the relay
// session.
package keyring
