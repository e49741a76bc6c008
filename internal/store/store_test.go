package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLedgerAppendAndLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AppendTurn("user:1", Turn{Role: RoleSystem, Content: "standing instructions"}))
	require.NoError(t, s.AppendTurn("user:1", Turn{Role: RoleUser, Content: "what is my gpa"}))
	require.NoError(t, s.AppendTurn("user:1", Turn{
		Role: RoleModel,
		ToolCalls: []ToolCall{
			{ID: "c1", Name: "select_menu", Args: map[string]any{"title": "학사관리"}},
		},
	}))
	require.NoError(t, s.AppendTurn("user:1", Turn{
		Role: RoleTool,
		ToolResults: []ToolResult{
			{ID: "c1", Name: "select_menu", Output: "navigated to 학사관리"},
		},
	}))

	turns, err := s.LoadLedger("user:1")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, RoleSystem, turns[0].Role)
	assert.Equal(t, "what is my gpa", turns[1].Content)

	wantModel := Turn{
		Role: RoleModel,
		ToolCalls: []ToolCall{
			{ID: "c1", Name: "select_menu", Args: map[string]any{"title": "학사관리"}},
		},
	}
	if diff := cmp.Diff(wantModel, turns[2]); diff != "" {
		t.Errorf("model turn mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, turns[3].ToolResults, 1)
	assert.Equal(t, "c1", turns[3].ToolResults[0].ID)
}

func TestLedgersAreIsolatedByKey(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AppendTurn("user:1", Turn{Role: RoleUser, Content: "hi"}))
	require.NoError(t, s.AppendTurn("user:2", Turn{Role: RoleUser, Content: "yo"}))

	turns, err := s.LoadLedger("user:1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "hi", turns[0].Content)
}

func TestDropTrailingTurn(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AppendTurn("user:1", Turn{Role: RoleUser, Content: "a"}))
	require.NoError(t, s.AppendTurn("user:1", Turn{Role: RoleModel, ToolCalls: []ToolCall{{ID: "x", Name: "read_screen"}}}))

	require.NoError(t, s.DropTrailingTurn("user:1"))
	turns, err := s.LoadLedger("user:1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, RoleUser, turns[0].Role)

	// Sequence resumes after the drop.
	require.NoError(t, s.AppendTurn("user:1", Turn{Role: RoleModel, Content: "hello"}))
	turns, err = s.LoadLedger("user:1")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestDropTrailingTurnOnEmptyLedger(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.DropTrailingTurn("user:1"), sql.ErrNoRows)
}

func TestResetLedger(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AppendTurn("user:1", Turn{Role: RoleUser, Content: "a"}))
	require.NoError(t, s.ResetLedger("user:1"))

	n, err := s.LedgerLen("user:1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCommitChangeIsTransactional(t *testing.T) {
	s := newTestStore(t)
	id, err := s.CreateSchedule(Schedule{
		UserID: 7, TaskType: "grade_check", CronExpr: "*/30 * * * *", Enabled: true,
	})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.CommitChange(id, 7, "3.92", "Your GPA changed: 3.75 -> 3.92", now))

	schedules, err := s.ListEnabledSchedules()
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	require.NotNil(t, schedules[0].LastKnownResult)
	assert.Equal(t, "3.92", *schedules[0].LastKnownResult)
	require.NotNil(t, schedules[0].LastRunAt)

	pending, err := s.PendingNotifications(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(7), pending[0].UserID)
	assert.Equal(t, id, pending[0].ScheduleID)
	assert.Contains(t, pending[0].Body, "3.92")
}

func TestRecordRunDoesNotQueueNotification(t *testing.T) {
	s := newTestStore(t)
	id, err := s.CreateSchedule(Schedule{
		UserID: 7, TaskType: "grade_check", CronExpr: "0 9 * * *", Enabled: true,
	})
	require.NoError(t, err)

	require.NoError(t, s.RecordRun(id, "3.75", time.Now()))

	pending, err := s.PendingNotifications(10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	schedules, err := s.ListEnabledSchedules()
	require.NoError(t, err)
	require.NotNil(t, schedules[0].LastKnownResult)
	assert.Equal(t, "3.75", *schedules[0].LastKnownResult)
}

func TestMarkDispatchedRemovesFromPending(t *testing.T) {
	s := newTestStore(t)
	id, err := s.CreateSchedule(Schedule{UserID: 1, TaskType: "cafeteria_menu_check", CronExpr: "0 11 * * *", Enabled: true})
	require.NoError(t, err)
	require.NoError(t, s.CommitChange(id, 1, "menu", "Today's menu", time.Now()))

	pending, err := s.PendingNotifications(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.MarkDispatched(pending[0].ID))
	pending, err = s.PendingNotifications(10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestListEnabledSkipsDisabled(t *testing.T) {
	s := newTestStore(t)
	id, err := s.CreateSchedule(Schedule{UserID: 1, TaskType: "grade_check", CronExpr: "0 9 * * *", Enabled: true})
	require.NoError(t, err)
	_, err = s.CreateSchedule(Schedule{UserID: 1, TaskType: "grade_check", CronExpr: "0 9 * * *", Enabled: false})
	require.NoError(t, err)

	schedules, err := s.ListEnabledSchedules()
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, id, schedules[0].ID)

	require.NoError(t, s.SetScheduleEnabled(id, false))
	schedules, err = s.ListEnabledSchedules()
	require.NoError(t, err)
	assert.Empty(t, schedules)
}

func TestSaveNoticesDeduplicates(t *testing.T) {
	s := newTestStore(t)
	batch := []Notice{
		{Category: "장학", Title: "2026-2학기 국가장학금 신청 안내", Link: "https://scatch.ssu.ac.kr/n/1", PostedAt: "2026-08-20"},
		{Category: "장학", Title: "교내 성적우수 장학 선발", Link: "https://scatch.ssu.ac.kr/n/2", PostedAt: "2026-08-21"},
	}

	n, err := s.SaveNotices(batch)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.SaveNotices(batch)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSearchNoticesMatchesAllKeywords(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SaveNotices([]Notice{
		{Category: "장학", Title: "국가장학금 2차 신청 안내", Link: "https://scatch.ssu.ac.kr/n/1"},
		{Category: "학사", Title: "수강신청 일정 안내", Link: "https://scatch.ssu.ac.kr/n/2"},
		{Category: "장학", Title: "국가장학금 서류 제출", Link: "https://scatch.ssu.ac.kr/n/3"},
	})
	require.NoError(t, err)

	got, err := s.SearchNotices([]string{"국가장학금", "신청"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "국가장학금 2차 신청 안내", got[0].Title)

	// Newest first.
	got, err = s.SearchNotices([]string{"국가장학금"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "국가장학금 서류 제출", got[0].Title)
}
