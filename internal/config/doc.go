// ABOUTME: Package documentation for configuration
// ABOUTME: Describes the YAML format and environment variable expansion

// Package config loads and validates the gateway's YAML configuration.
//
// # Format
//
// Configuration lives in a single YAML file with sections for the
// server, database, auth, chat pipeline, and logging. ${VAR_NAME}
// patterns anywhere in the file are expanded from the environment
// before parsing, so secrets can stay out of the file:
//
//	server:
//	  http_addr: ":8080"
//	  shutdown_timeout: 10s
//	database:
//	  path: /var/lib/chat-gateway/gateway.db
//	auth:
//	  jwt_secret: ${CHAT_JWT_SECRET}
//	chat:
//	  dispatch_workers: 4
//	  dispatch_queue: 256
//	logging:
//	  level: info
//	  format: text
//
// Durations are human-readable strings ("10s", "1m30s") parsed at load
// time. Load validates required fields and fails fast on anything
// malformed.
package config
