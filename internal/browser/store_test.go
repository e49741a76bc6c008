package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeContext implements BrowserContext without a real browser.
type fakeContext struct {
	mu         sync.Mutex
	closed     int
	blockClose chan struct{} // when set, Close blocks until the channel closes
}

func (f *fakeContext) ActivePage() (*rod.Page, error) { return &rod.Page{}, nil }

func (f *fakeContext) Close() error {
	if f.blockClose != nil {
		<-f.blockClose
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeContext) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeDriver counts launches and can be made to fail.
type fakeDriver struct {
	mu       sync.Mutex
	launches int
	failNext bool
	next     *fakeContext
}

func (d *fakeDriver) Launch(ctx context.Context, profileDir string) (BrowserContext, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.launches++
	if d.failNext {
		d.failNext = false
		return nil, errors.New("chromium exploded")
	}
	if d.next != nil {
		c := d.next
		d.next = nil
		return c, nil
	}
	return &fakeContext{}, nil
}

func (d *fakeDriver) launchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.launches
}

func newTestStore(t *testing.T, driver Driver, timeout time.Duration) *Store {
	t.Helper()
	cfg := StoreConfig{
		ProfilesRoot:   t.TempDir(),
		SessionTimeout: timeout,
		CloseTimeout:   200 * time.Millisecond,
	}
	return NewStore(cfg, driver)
}

func TestGetOrCreateReturnsSameSession(t *testing.T) {
	st := newTestStore(t, &fakeDriver{}, time.Minute)

	a := st.GetOrCreate("user:1")
	b := st.GetOrCreate("user:1")
	assert.Same(t, a, b)
	assert.Equal(t, StateUnstarted, a.State())

	c := st.GetOrCreate("user:2")
	assert.NotSame(t, a, c)
	assert.NotEqual(t, a.ProfileDir(), c.ProfileDir())
}

func TestStartIsIdempotent(t *testing.T) {
	driver := &fakeDriver{}
	st := newTestStore(t, driver, time.Minute)
	s := st.GetOrCreate("user:1")

	require.NoError(t, st.Start(context.Background(), s))
	require.NoError(t, st.Start(context.Background(), s))

	// One launch, one active page.
	assert.Equal(t, 1, driver.launchCount())
	assert.Equal(t, StateActive, s.State())
	page, err := s.Page()
	require.NoError(t, err)
	assert.NotNil(t, page)
}

func TestStartFailureLeavesSessionRetryable(t *testing.T) {
	driver := &fakeDriver{failNext: true}
	st := newTestStore(t, driver, time.Minute)
	s := st.GetOrCreate("user:1")

	err := st.Start(context.Background(), s)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionLaunchFailed)
	assert.Equal(t, StateUnstarted, s.State())

	// Retry succeeds after the transient failure.
	require.NoError(t, st.Start(context.Background(), s))
	assert.Equal(t, StateActive, s.State())
}

func TestCloseIsSafeTwice(t *testing.T) {
	fc := &fakeContext{}
	driver := &fakeDriver{next: fc}
	st := newTestStore(t, driver, time.Minute)
	s := st.GetOrCreate("user:1")
	require.NoError(t, st.Start(context.Background(), s))

	require.NoError(t, st.Close(s))
	require.NoError(t, st.Close(s))
	assert.Equal(t, 1, fc.closeCount())
	assert.Equal(t, StateClosed, s.State())

	_, err := s.Page()
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestCloseThenGetOrCreateYieldsFreshSession(t *testing.T) {
	st := newTestStore(t, &fakeDriver{}, time.Minute)
	s := st.GetOrCreate("user:1")
	require.NoError(t, st.Start(context.Background(), s))
	require.NoError(t, st.Close(s))

	fresh := st.GetOrCreate("user:1")
	assert.NotSame(t, s, fresh)
	assert.Equal(t, StateUnstarted, fresh.State())
	// Same key, same profile dir: portal login state may survive.
	assert.Equal(t, s.ProfileDir(), fresh.ProfileDir())
}

func TestSweepEvictsOnlyExpired(t *testing.T) {
	driver := &fakeDriver{}
	st := newTestStore(t, driver, time.Minute)

	stale := st.GetOrCreate("user:stale")
	require.NoError(t, st.Start(context.Background(), stale))
	stale.touch(time.Now().Add(-5 * time.Minute))

	fresh := st.GetOrCreate("user:fresh")
	require.NoError(t, st.Start(context.Background(), fresh))
	st.Touch(fresh)

	n := st.Sweep(context.Background())
	assert.Equal(t, 1, n)

	_, staleTracked := st.Get("user:stale")
	assert.False(t, staleTracked)
	_, freshTracked := st.Get("user:fresh")
	assert.True(t, freshTracked)
	assert.Equal(t, StateClosed, stale.State())
	assert.Equal(t, StateActive, fresh.State())
}

func TestSweepEmptyStoreIsFastNoop(t *testing.T) {
	st := newTestStore(t, &fakeDriver{}, time.Minute)

	start := time.Now()
	n := st.Sweep(context.Background())
	assert.Zero(t, n)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestSweepHungCloseDoesNotBlockOthers(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	hungCtx := &fakeContext{blockClose: block}
	driver := &fakeDriver{next: hungCtx}
	st := newTestStore(t, driver, time.Minute)

	hung := st.GetOrCreate("user:hung")
	require.NoError(t, st.Start(context.Background(), hung))
	hung.touch(time.Now().Add(-time.Hour))

	other := st.GetOrCreate("user:other")
	require.NoError(t, st.Start(context.Background(), other))
	other.touch(time.Now().Add(-time.Hour))

	start := time.Now()
	n := st.Sweep(context.Background())
	elapsed := time.Since(start)

	// Both removed from the store even though one close timed out.
	assert.Equal(t, 2, n)
	assert.Zero(t, st.Len())
	// Bounded by the per-close timeout, not the hang.
	assert.Less(t, elapsed, 2*time.Second)
}

func TestSweepSparesSessionTouchedDuringSweep(t *testing.T) {
	st := newTestStore(t, &fakeDriver{}, time.Minute)
	s := st.GetOrCreate("user:1")
	require.NoError(t, st.Start(context.Background(), s))
	s.touch(time.Now().Add(-5 * time.Minute))

	// Simulate a touch racing the sweep by touching before the re-check.
	st.Touch(s)
	n := st.Sweep(context.Background())
	assert.Zero(t, n)
	assert.Equal(t, StateActive, s.State())
}

func TestConcurrentGetOrCreateDistinctKeys(t *testing.T) {
	st := newTestStore(t, &fakeDriver{}, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st.GetOrCreate(UserKey(int64(i)))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 32, st.Len())
}

func TestSchedulerKeyNamespaceIsDistinct(t *testing.T) {
	assert.NotEqual(t, UserKey(7), SchedulerKey(7))
}
