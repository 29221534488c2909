package testutil

import (
	"context"
	"sync"

	"github.com/gschex1112/songflow/pkg/types"
)

// MemLock is an in-process runlock.Locker.
type MemLock struct {
	mu   sync.Mutex
	held bool
}

// Acquire takes the lock if free.
func (l *MemLock) Acquire(_ context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

// Release frees the lock.
func (l *MemLock) Release(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	return nil
}

// Held reports the lock state.
func (l *MemLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// RecordingSink is a notify.Sink that captures alerts.
type RecordingSink struct {
	mu     sync.Mutex
	alerts []types.Alert
}

// Name returns the sink identifier.
func (s *RecordingSink) Name() string { return "recording" }

// Send records the alert.
func (s *RecordingSink) Send(_ context.Context, alert types.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

// Alerts returns the captured alerts.
func (s *RecordingSink) Alerts() []types.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// TestPolicy is a retry policy that keeps tests fast: one attempt, no
// backoff worth waiting for.
func TestPolicy() types.RetryPolicy {
	return types.RetryPolicy{
		MaxAttempts:           1,
		BackoffSeconds:        1,
		BackoffMultiplier:     1.0,
		AttemptTimeoutSeconds: 5,
	}
}
