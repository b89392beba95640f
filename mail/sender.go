// Package mail delivers the transactional emails the engine produces:
// account activation links and password reset links.
package mail

import (
	"context"
	"sync"
)

// Message is one transactional email. ActionURL carries the link the
// recipient must follow; Intro is the template-specific lead-in text.
type Message struct {
	To          string
	DisplayName string
	Subject     string
	Intro       string
	ActionURL   string
}

// Sender delivers a Message. Implementations report delivery failure via
// the returned error; the engine decides whether that aborts the flow.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Memory is a Sender that records messages instead of delivering them.
type Memory struct {
	mu       sync.Mutex
	messages []Message

	// SendErr, when non-nil, is returned by every Send call.
	SendErr error
}

// NewMemory returns an empty recording sender.
func NewMemory() *Memory {
	return &Memory{}
}

// Send records the message.
func (m *Memory) Send(ctx context.Context, msg Message) error {
	if m.SendErr != nil {
		return m.SendErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a copy of everything sent so far.
func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Reset discards everything recorded so far.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

// Last returns the most recent message, if any.
func (m *Memory) Last() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return Message{}, false
	}
	return m.messages[len(m.messages)-1], true
}
