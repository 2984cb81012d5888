package planstream

import (
	"fmt"
	"sync"
)

// Status is the lifecycle state of a Session.
type Status int

const (
	// StatusIdle is the initial state, before Start or after Close.
	StatusIdle Status = iota
	// StatusConnecting means Start is dialing the transport.
	StatusConnecting
	// StatusRunning means the stream is live.
	StatusRunning
	// StatusCompleted means the stream ended as an expected completion.
	StatusCompleted
	// StatusError means the stream ended in failure.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether the status is an end state for a stream.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// statusManager guards the session status. Transitions out of idle are
// only valid through beginConnect, so a stale goroutine cannot revive a
// closed session.
type statusManager struct {
	mu     sync.RWMutex
	status Status
}

func newStatusManager() *statusManager {
	return &statusManager{status: StatusIdle}
}

func (m *statusManager) current() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// beginConnect moves idle or terminal states into connecting.
func (m *statusManager) beginConnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusConnecting || m.status == StatusRunning {
		return fmt.Errorf("%w: cannot connect while %s", ErrInvalidState, m.status)
	}
	m.status = StatusConnecting
	return nil
}

func (m *statusManager) set(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = s
}

// setIfNotTerminal applies the transition unless a terminal state was
// already reached. Completed and error are mutually exclusive and
// stable; only Start resets them.
func (m *statusManager) setIfNotTerminal(next Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.Terminal() {
		return false
	}
	m.status = next
	return true
}

// compareAndSet transitions from one of the given states to next and
// reports whether it did.
func (m *statusManager) compareAndSet(next Status, from ...Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range from {
		if m.status == f {
			m.status = next
			return true
		}
	}
	return false
}
