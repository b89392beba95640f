package session

// Memory is an in-process Store. The zero value is usable. Unlike the Redis
// store, server-side state lives in the instance itself, so reusing one
// Memory across successive Start/Close cycles models one browser session
// across requests; tests rely on that.
type Memory struct {
	values  map[string]string
	id      int
	started bool

	// Failure injection for tests. Each error, when non-nil, is returned
	// by the corresponding operation.
	StartErr   error
	RenewErr   error
	CloseErr   error
	DestroyErr error

	// Destroyed counts Destroy calls. Test helper.
	Destroyed int
	// Renewed counts RenewID calls. Test helper.
	Renewed int
}

// NewMemory returns an empty in-process session store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Start describes the start operation and its observable behavior.
func (m *Memory) Start() error {
	if m.StartErr != nil {
		return m.StartErr
	}
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.started = true
	return nil
}

// Clear describes the clear operation and its observable behavior.
func (m *Memory) Clear() {
	if !m.started {
		return
	}
	m.values = make(map[string]string)
}

// Set describes the set operation and its observable behavior.
func (m *Memory) Set(key, value string) {
	if !m.started {
		return
	}
	m.values[key] = value
}

// Get describes the get operation and its observable behavior. Unlike the
// mutating operations it works on a closed session too: Close retains the
// server-side state, and tests inspect it after a request completes.
func (m *Memory) Get(key string) (string, bool) {
	value, ok := m.values[key]
	return value, ok
}

// Has describes the has operation and its observable behavior.
func (m *Memory) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Remove describes the remove operation and its observable behavior.
func (m *Memory) Remove(key string) {
	if !m.started {
		return
	}
	delete(m.values, key)
}

// RenewID describes the renewid operation and its observable behavior.
func (m *Memory) RenewID() error {
	if m.RenewErr != nil {
		return m.RenewErr
	}
	m.id++
	m.Renewed++
	return nil
}

// Close describes the close operation and its observable behavior.
func (m *Memory) Close() error {
	if m.CloseErr != nil {
		return m.CloseErr
	}
	m.started = false
	return nil
}

// Destroy describes the destroy operation and its observable behavior.
func (m *Memory) Destroy() error {
	m.Destroyed++
	if m.DestroyErr != nil {
		return m.DestroyErr
	}
	m.values = make(map[string]string)
	m.started = false
	return nil
}
