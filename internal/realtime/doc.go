// Package realtime implements domain.Transport over a websocket relay.
//
// The relay is treated as an unordered-but-reliable-enough delivery channel:
// the session subscribes to a per-identity inbound queue, announces presence
// once, and then publishes and receives JSON frames. Inbound deliveries are
// exposed as a channel with a single reader loop behind it, one message per
// delivery in arrival order; no reordering, deduplication or reconnect
// happens here.
package realtime
