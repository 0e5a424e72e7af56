// ABOUTME: Package documentation for the gateway orchestrator
// ABOUTME: Describes component wiring, HTTP surface, and lifecycle

// Package gateway assembles the chat server from its components and
// manages their lifecycle.
//
// # Composition
//
// New builds the full stack from configuration: the SQLite store, the
// presence registry, the delivery dispatcher, the conversation service,
// and the websocket hub, then mounts the HTTP surface on a single
// ServeMux.
//
// # HTTP Surface
//
//	POST /api/chats/send    send a message to another user
//	GET  /api/chats         list the caller's conversations
//	GET  /api/chats/{user}  message history with one user
//	GET  /ws                websocket upgrade for real-time push
//	GET  /health            liveness
//	GET  /health/ready      readiness (store reachable)
//
// API routes require authentication; health endpoints and the websocket
// upgrade do not.
//
// # Lifecycle
//
// Run blocks until the context is canceled or a server fails, then
// performs a bounded graceful shutdown: HTTP server first, then the
// dispatcher (draining queued deliveries), then the store.
package gateway
