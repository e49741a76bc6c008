// Package browser owns the mapping from logical conversation identities to
// live automation sessions. Each session is backed by a persistent Chromium
// profile directory so portal login cookies survive process restarts.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"saintagent/internal/logging"
)

// Sentinel errors for session lifecycle failures.
var (
	// ErrSessionLaunchFailed wraps a driver-level failure to start the
	// automation context. The session stays unstarted and can be retried.
	ErrSessionLaunchFailed = errors.New("session launch failed")

	// ErrSessionClosed is returned when an operation needs an active page
	// but the session has been closed.
	ErrSessionClosed = errors.New("session closed")
)

// State is the session lifecycle state.
type State int

const (
	StateUnstarted State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// BrowserContext is the live automation context attached to a session.
// The rod implementation wraps a persistent-profile browser; tests use fakes.
type BrowserContext interface {
	// ActivePage returns the context's single working page.
	ActivePage() (*rod.Page, error)
	// Close tears the context down. Must be safe to call twice.
	Close() error
}

// Driver launches automation contexts. Injected so the store's bookkeeping
// can be exercised without a real Chromium.
type Driver interface {
	Launch(ctx context.Context, profileDir string) (BrowserContext, error)
}

// Session is one isolated automation context bound to a persistent profile.
// At most one active page exists per session key at any time.
type Session struct {
	mu sync.Mutex

	key        string
	profileDir string
	state      State
	bctx       BrowserContext
	page       *rod.Page
	lastActive time.Time
}

// Key returns the session key.
func (s *Session) Key() string { return s.key }

// ProfileDir returns the persistent profile directory for this session.
func (s *Session) ProfileDir() string { return s.profileDir }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Page returns the active page, or an error if the session is not active.
func (s *Session) Page() (*rod.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive || s.page == nil {
		return nil, fmt.Errorf("%w: session %s is %s", ErrSessionClosed, s.key, s.state)
	}
	return s.page, nil
}

// LastActive returns the last-activity timestamp.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// touch records current time as last activity.
func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

// start attaches a browser context and page. Idempotent: a second start on
// an active session is a no-op. Launch failure leaves the session unstarted.
func (s *Session) start(ctx context.Context, driver Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateActive {
		logging.SessionDebug("start: session %s already active", s.key)
		return nil
	}

	if err := os.MkdirAll(s.profileDir, 0755); err != nil {
		return fmt.Errorf("%w: create profile dir: %v", ErrSessionLaunchFailed, err)
	}

	bctx, err := driver.Launch(ctx, s.profileDir)
	if err != nil {
		// Bookkeeping untouched: still unstarted, retryable.
		return fmt.Errorf("%w: %v", ErrSessionLaunchFailed, err)
	}

	page, err := bctx.ActivePage()
	if err != nil {
		_ = bctx.Close()
		return fmt.Errorf("%w: attach page: %v", ErrSessionLaunchFailed, err)
	}

	s.bctx = bctx
	s.page = page
	s.state = StateActive
	s.lastActive = time.Now()
	logging.Session("session %s started (profile=%s)", s.key, s.profileDir)
	return nil
}

// close tears down the browser context. Safe to call twice.
func (s *Session) close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	bctx := s.bctx
	s.bctx = nil
	s.page = nil
	s.state = StateClosed
	s.mu.Unlock()

	if bctx == nil {
		return nil
	}
	return bctx.Close()
}

// SchedulerKey derives the scheduler-owned session key for a user. Scheduler
// sessions live in a distinct namespace so unattended runs never extend a
// live user's inactivity window.
func SchedulerKey(userID int64) string {
	return fmt.Sprintf("sched:%d", userID)
}

// UserKey derives the chat session key for a conversation.
func UserKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// profilePath flattens a session key into a filesystem-safe directory name.
func profilePath(root, key string) string {
	safe := make([]rune, 0, len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			safe = append(safe, r)
		default:
			safe = append(safe, '_')
		}
	}
	return filepath.Join(root, string(safe))
}
