package browser

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"saintagent/internal/logging"
)

// StoreConfig holds session store configuration.
type StoreConfig struct {
	// ProfilesRoot is the directory holding one persistent profile per key.
	ProfilesRoot string

	// SessionTimeout is the inactivity window before eviction.
	SessionTimeout time.Duration

	// CloseTimeout bounds each individual close during a sweep so one hung
	// browser context cannot stall the whole sweep.
	CloseTimeout time.Duration
}

// DefaultStoreConfig returns sensible defaults.
func DefaultStoreConfig(profilesRoot string) StoreConfig {
	return StoreConfig{
		ProfilesRoot:   profilesRoot,
		SessionTimeout: 30 * time.Minute,
		CloseTimeout:   10 * time.Second,
	}
}

// Store owns the key -> Session map. It is the only piece of mutable shared
// state between the request path, the scheduler and the eviction sweep;
// map mutations are atomic under the store mutex.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	cfg    StoreConfig
	driver Driver
}

// NewStore creates a session store backed by the given driver.
func NewStore(cfg StoreConfig, driver Driver) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		driver:   driver,
	}
}

// GetOrCreate returns the existing session for key or constructs a new,
// unstarted one. Never performs I/O; safe for concurrent use across keys.
func (st *Store) GetOrCreate(key string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[key]; ok {
		return s
	}

	s := &Session{
		key:        key,
		profileDir: profilePath(st.cfg.ProfilesRoot, key),
		state:      StateUnstarted,
		lastActive: time.Now(),
	}
	st.sessions[key] = s
	logging.SessionDebug("created session %s", key)
	return s
}

// Start launches the session's automation context. Idempotent; a launch
// failure leaves the session unstarted and retryable.
func (st *Store) Start(ctx context.Context, s *Session) error {
	return s.start(ctx, st.driver)
}

// Touch records current time as the session's last activity. Called on every
// successful automation call and inbound user message. Scheduler-driven
// calls use scheduler-keyed sessions, so they never extend a user window.
func (st *Store) Touch(s *Session) {
	s.touch(time.Now())
}

// Close tears down the session and removes it from the store. Safe to call
// twice; the second call is a no-op.
func (st *Store) Close(s *Session) error {
	st.mu.Lock()
	delete(st.sessions, s.key)
	st.mu.Unlock()
	return s.close()
}

// Len returns the number of tracked sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Get returns the session for key if one is tracked.
func (st *Store) Get(key string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[key]
	return s, ok
}

// Sweep evicts every session idle longer than the configured timeout.
// Closes run concurrently, each bounded by CloseTimeout; a session is
// removed from the store regardless of whether its close succeeded, timed
// out or panicked - eviction is unconditionally progress-making. Activity is
// re-checked immediately before each close so a session touched during the
// sweep survives it.
func (st *Store) Sweep(ctx context.Context) int {
	st.mu.Lock()
	if len(st.sessions) == 0 {
		st.mu.Unlock()
		return 0
	}
	now := time.Now()
	expired := make([]*Session, 0)
	for _, s := range st.sessions {
		if now.Sub(s.LastActive()) > st.cfg.SessionTimeout {
			expired = append(expired, s)
		}
	}
	st.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}

	var evicted int
	var evictedMu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	for _, s := range expired {
		s := s
		g.Go(func() error {
			// Re-check: a touch since selection rescues the session.
			if time.Since(s.LastActive()) <= st.cfg.SessionTimeout {
				return nil
			}

			st.mu.Lock()
			delete(st.sessions, s.key)
			st.mu.Unlock()

			if err := closeBounded(s, st.cfg.CloseTimeout); err != nil {
				logging.Get(logging.CategorySession).Warn("evict %s: close failed: %v", s.key, err)
			} else {
				logging.Session("evicted idle session %s", s.key)
			}
			evictedMu.Lock()
			evicted++
			evictedMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return evicted
}

// closeBounded runs the session close under its own deadline, containing
// panics from a wedged browser context.
func closeBounded(s *Session, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- errClosePanic{r}
			}
		}()
		done <- s.close()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}

type errClosePanic struct{ v any }

func (e errClosePanic) Error() string { return "close panicked" }

// RunSweeper periodically sweeps until ctx is cancelled.
func (st *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(ctx); n > 0 {
				logging.Session("sweep evicted %d session(s)", n)
			}
		}
	}
}

// Shutdown closes every session, each bounded by CloseTimeout.
func (st *Store) Shutdown(ctx context.Context) {
	st.mu.Lock()
	all := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		all = append(all, s)
	}
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, s := range all {
		s := s
		g.Go(func() error {
			if err := closeBounded(s, st.cfg.CloseTimeout); err != nil {
				logging.Get(logging.CategorySession).Warn("shutdown %s: %v", s.key, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
