package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saintagent/internal/store"
)

type recordingNotifier struct {
	mu     sync.Mutex
	sent   []string
	failOn string
}

func (r *recordingNotifier) Notify(_ context.Context, userID int64, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != "" && body == r.failOn {
		return errors.New("delivery refused")
	}
	r.sent = append(r.sent, body)
	return nil
}

func newOutboxStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "notify.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestDrainDeliversAndMarksDispatched(t *testing.T) {
	st := newOutboxStore(t)
	id, err := st.CreateSchedule(store.Schedule{UserID: 7, TaskType: "grade_check", CronExpr: "0 9 * * *", Enabled: true})
	require.NoError(t, err)
	require.NoError(t, st.CommitChange(id, 7, "3.92", "GPA changed to 3.92", time.Now()))

	n := &recordingNotifier{}
	d := NewDispatcher(st, n)

	sent, err := d.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"GPA changed to 3.92"}, n.sent)

	// Nothing left.
	sent, err = d.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestDrainKeepsFailedDeliveriesQueued(t *testing.T) {
	st := newOutboxStore(t)
	id, err := st.CreateSchedule(store.Schedule{UserID: 7, TaskType: "grade_check", CronExpr: "0 9 * * *", Enabled: true})
	require.NoError(t, err)
	require.NoError(t, st.CommitChange(id, 7, "a", "first", time.Now()))
	require.NoError(t, st.CommitChange(id, 7, "b", "second", time.Now()))

	n := &recordingNotifier{failOn: "first"}
	d := NewDispatcher(st, n)

	sent, err := d.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"second"}, n.sent)

	// The failed one is retried on the next drain.
	n.failOn = ""
	sent, err = d.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"second", "first"}, n.sent)
}

func TestHTTPNotifierPostsJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL, time.Second)
	require.NoError(t, n.Notify(context.Background(), 7, "hello"))
	assert.Equal(t, float64(7), got["user_id"])
	assert.Equal(t, "hello", got["message"])
}

func TestHTTPNotifierRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL, time.Second)
	assert.Error(t, n.Notify(context.Background(), 7, "hello"))
}
