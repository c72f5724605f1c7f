// Package testutil provides test doubles for the transport layer.
package testutil

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// MockConn implements the services.Conn surface in memory, recording every
// frame written to it.
type MockConn struct {
	mu          sync.RWMutex
	messages    [][]byte
	closed      bool
	closeStatus websocket.StatusCode
	closeReason string
	writeErr    error
	readErr     error
}

func NewMockConn() *MockConn {
	return &MockConn{
		messages: make([][]byte, 0),
	}
}

// Write records a message being sent
func (m *MockConn) Write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return net.ErrClosed
	}
	if m.writeErr != nil {
		return m.writeErr
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	m.messages = append(m.messages, dataCopy)
	return nil
}

// Read blocks until the context expires or an injected error fires; mock
// connections never produce inbound frames, tests drive the router directly.
func (m *MockConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	m.mu.RLock()
	closed, readErr := m.closed, m.readErr
	m.mu.RUnlock()

	if closed {
		return 0, nil, net.ErrClosed
	}
	if readErr != nil {
		return 0, nil, readErr
	}

	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case <-time.After(100 * time.Millisecond):
		return 0, nil, context.DeadlineExceeded
	}
}

// Close marks the connection as closed
func (m *MockConn) Close(status websocket.StatusCode, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.closeStatus = status
	m.closeReason = reason
	return nil
}

// Ping sends a ping message
func (m *MockConn) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return net.ErrClosed
	}
	return nil
}

// Messages returns copies of all frames written through this connection.
func (m *MockConn) Messages() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([][]byte, len(m.messages))
	for i, msg := range m.messages {
		msgCopy := make([]byte, len(msg))
		copy(msgCopy, msg)
		result[i] = msgCopy
	}
	return result
}

// IsClosed returns whether the connection is closed
func (m *MockConn) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// SetWriteErr sets an error to be returned on Write calls
func (m *MockConn) SetWriteErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// SetReadErr sets an error to be returned on Read calls
func (m *MockConn) SetReadErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// ClearMessages clears all recorded frames.
func (m *MockConn) ClearMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = m.messages[:0]
}
