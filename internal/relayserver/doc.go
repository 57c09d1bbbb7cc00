// Package relayserver is the development directory + relay backend.
//
// It serves the REST directory surface (key registration/lookup, contacts,
// message history) and the websocket relay that routes published messages to
// the receiver's inbound queue. Storage is in-memory; the server exists so
// the client stack can run end to end in development and in tests, not to be
// a production backend. The relay never sees plaintext: message content
// arrives and leaves as opaque envelopes.
package relayserver
