package notify

import (
	"context"
	"sync"
)

// MockAdapter implements Adapter for testing. It records sent messages and
// fails every send with Err when set.
type MockAdapter struct {
	mu   sync.Mutex
	name string
	sent []OutboundMessage
	Err  error
}

// NewMockAdapter creates a MockAdapter reporting name.
func NewMockAdapter(name string) *MockAdapter {
	return &MockAdapter{name: name}
}

// Name returns the configured name.
func (m *MockAdapter) Name() string { return m.name }

// Send records the outbound message.
func (m *MockAdapter) Send(ctx context.Context, msg OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// SentCount returns the number of messages sent.
func (m *MockAdapter) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// LastSent returns the most recently sent message.
func (m *MockAdapter) LastSent() (OutboundMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return OutboundMessage{}, false
	}
	return m.sent[len(m.sent)-1], true
}
