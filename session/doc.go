// Package session defines the server-side session contract used by the
// authentication engine and provides a Redis-backed implementation plus an
// in-process implementation for tests and single-node deployments.
//
// A Store instance is scoped to one request. Every code path that calls
// Start must pair it with Close (keep the session) or Destroy (discard it)
// before returning control; the engine enforces this discipline on every
// exit path, including failures.
package session
