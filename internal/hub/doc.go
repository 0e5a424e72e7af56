// ABOUTME: Package documentation for the websocket hub
// ABOUTME: Describes the push-only socket transport and its wire events

// Package hub provides the websocket transport for real-time push.
//
// # Architecture
//
// The hub upgrades HTTP requests on /ws to websocket connections. Each
// connection is wrapped in a Client that runs a read pump and a write
// pump goroutine. Clients are push-only: all sends go through the HTTP
// API, and inbound socket frames are discarded.
//
// # Identification
//
// The connecting user is identified by the user_id query parameter on
// the upgrade request. A connection without a usable identifier (absent,
// blank, or the literal string "undefined" that lazy frontends send) is
// still accepted but excluded from presence tracking: it never appears
// in the online set, yet still receives every presence broadcast.
//
// # Wire Events
//
// Two JSON event types flow to the client:
//
//   - "presence" carries the full set of online user IDs, sent on every
//     presence change (never a delta).
//   - "message" carries a persisted message pushed to its recipient.
//
// # Backpressure
//
// Each client has a bounded send buffer. A push to a client whose buffer
// is full is dropped rather than blocking the caller; a slow socket can
// never stall message persistence or presence bookkeeping.
package hub
