// Package conversation orchestrates the messaging pipeline: key readiness,
// directory registration, relay session, contact and history loading, the
// decryption pipeline and the send path.
//
// One Store is one user session. Cryptographic and per-message failures are
// recovered locally and rendered as placeholder content; directory and
// transport failures surface as state the caller reacts to; credential
// failures are escalated to the authentication layer.
package conversation
