package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"saintagent/internal/agent"
	"saintagent/internal/store"
	"saintagent/internal/tools"
)

type fixedModel struct{ reply string }

func (m fixedModel) Generate(ctx context.Context, turns []store.Turn, decls []*genai.FunctionDeclaration) (store.Turn, error) {
	return store.Turn{Role: store.RoleModel, Content: m.reply}, nil
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	a := agent.New(agent.DefaultConfig(), fixedModel{reply: "Your GPA is 3.92."}, st)
	factory := func(userID int64) (*tools.Registry, error) {
		return tools.NewRegistry(), nil
	}
	return NewServer(a, st, factory), st
}

func TestChatStreamsNDJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]any{"user_id": 7, "message": "gpa?"})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var events []map[string]string
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		var ev map[string]string
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, "agent_message", last["type"])
	assert.Equal(t, "Your GPA is 3.92.", last["text"])
}

func TestChatValidatesRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"user_id": 0, "message": ""}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("not json"))
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleCreateAndList(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"user_id":   7,
		"task_type": "grade_check",
		"cron":      "*/30 * * * *",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/schedules", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Positive(t, created["id"])

	req = httptest.NewRequest(http.MethodGet, "/v1/schedules", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "grade_check", rows[0]["task_type"])
	assert.Equal(t, "*/30 * * * *", rows[0]["cron"])
	assert.Nil(t, rows[0]["last_known_result"])
}

func TestScheduleCreateValidates(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/schedules", strings.NewReader(`{"user_id": 7}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
