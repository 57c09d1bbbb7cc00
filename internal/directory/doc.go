// Package directory provides the HTTP implementations of the
// domain.KeyDirectory and domain.HistoryClient interfaces.
//
// The backend is a plain request/response service: public-key registration
// and lookup for the directory, plus contact-list and message-history reads.
// Every request carries the bearer credential supplied by the external
// identity provider; a 401 anywhere surfaces as domain.ErrAuthExpired so the
// caller can discard the credential and re-authenticate. Server and
// transport failures surface as domain.ErrDirectoryUnavailable.
package directory
