// Package cookie defines the cookie transport contract consumed by the
// authentication engine and two implementations: an HTTP-backed jar for
// production requests and a map-backed jar for tests and non-HTTP callers.
package cookie

import (
	"sort"
	"sync"
	"time"
)

// Jar is the narrow cookie transport interface the engine depends on.
// A zero expiry time means a session cookie.
type Jar interface {
	Set(name, value string, expires time.Time) error
	Get(name string) (string, bool)
	Has(name string) bool
	Delete(name string)
}

// Memory is an in-process Jar. It backs tests and contexts with no HTTP
// round-trip; writes are visible to subsequent reads immediately.
type Memory struct {
	mu      sync.Mutex
	values  map[string]string
	expires map[string]time.Time

	// SetErr, when non-nil, is returned by every Set call. Tests use it to
	// exercise cookie-write failure paths.
	SetErr error
}

// NewMemory returns an empty in-process jar.
func NewMemory() *Memory {
	return &Memory{
		values:  make(map[string]string),
		expires: make(map[string]time.Time),
	}
}

// Set stores the cookie value, replacing any previous value under name.
func (m *Memory) Set(name, value string, expires time.Time) error {
	if m.SetErr != nil {
		return m.SetErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
	m.expires[name] = expires
	return nil
}

// Get describes the get operation and its observable behavior.
func (m *Memory) Get(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[name]
	return value, ok
}

// Has describes the has operation and its observable behavior.
func (m *Memory) Has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[name]
	return ok
}

// Delete removes the cookie. Deleting an absent cookie is a no-op.
func (m *Memory) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, name)
	delete(m.expires, name)
}

// Expiry returns the expiry recorded for name, if any. Test helper.
func (m *Memory) Expiry(name string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expires, ok := m.expires[name]
	return expires, ok
}

// Names returns the stored cookie names in sorted order. Test helper.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.values))
	for name := range m.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
