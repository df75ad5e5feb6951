package hid

import (
	"errors"
	"sync"
	"time"
)

// ErrMockClosed is returned from MockDevice.Read once the device is closed.
var ErrMockClosed = errors.New("hid: mock device closed")

// MockDevice is an in-memory Device for tests. Input reports are scripted
// with Emit, output reports are recorded for inspection.
type MockDevice struct {
	reports chan []byte
	errs    chan error

	// WriteDelay widens the race window in concurrency tests.
	WriteDelay time.Duration

	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	closed   bool
	done     chan struct{}
}

func NewMockDevice() *MockDevice {
	return &MockDevice{
		reports: make(chan []byte),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
}

// Emit delivers one input report to a blocked Read call.
func (m *MockDevice) Emit(report []byte) {
	select {
	case m.reports <- report:
	case <-m.done:
	}
}

// FailRead makes the next Read call return err.
func (m *MockDevice) FailRead(err error) {
	select {
	case m.errs <- err:
	case <-m.done:
	}
}

// FailWrites makes all subsequent Write calls return err.
func (m *MockDevice) FailWrites(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

func (m *MockDevice) Read(p []byte) (int, error) {
	select {
	case r := <-m.reports:
		return copy(p, r), nil
	case err := <-m.errs:
		return 0, err
	case <-m.done:
		return 0, ErrMockClosed
	}
}

func (m *MockDevice) Write(p []byte) (int, error) {
	if m.WriteDelay > 0 {
		time.Sleep(m.WriteDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrMockClosed
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	m.writes = append(m.writes, buf)
	return len(p), nil
}

// Writes returns a copy of every report written so far, in order.
func (m *MockDevice) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}
