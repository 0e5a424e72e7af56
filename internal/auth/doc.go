// ABOUTME: Package documentation for authentication
// ABOUTME: Describes JWT verification and identity propagation

// Package auth authenticates HTTP API requests and propagates the
// caller's identity through request contexts.
//
// # Tokens
//
// Production deployments issue HS256-signed JWTs whose "sub" claim
// names the user. The middleware verifies the bearer token, confirms
// the user exists in the directory, and attaches an AuthContext to the
// request context for handlers to read via FromContext.
//
// # Development Mode
//
// When no JWT secret is configured the middleware instead trusts the
// X-User-ID header. This keeps local frontends and curl sessions simple
// without weakening a configured deployment: the fallback is only
// active when the verifier is absent.
package auth
