package session

// Store is the session contract the engine depends on. Values are opaque
// strings; the engine owns their encoding. Mutations are buffered between
// Start and Close; Destroy discards the session and its server-side state
// unconditionally.
type Store interface {
	// Start opens the session for this request, loading any server-side
	// state. Calling Start on an already-started store is a no-op.
	Start() error

	// Clear drops all values from the started session.
	Clear()

	// Set stores a value under key in the started session.
	Set(key, value string)

	// Get returns the value under key, if present.
	Get(key string) (string, bool)

	// Has reports whether key is present.
	Has(key string) bool

	// Remove deletes the value under key.
	Remove(key string)

	// RenewID re-keys the session under a fresh identifier, invalidating
	// the previous one. Session-fixation mitigation.
	RenewID() error

	// Close persists buffered state and releases the session.
	Close() error

	// Destroy deletes the session and all server-side state. Safe to call
	// whether or not the session was started.
	Destroy() error
}
