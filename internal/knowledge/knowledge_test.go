package knowledge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saintagent/internal/notice"
	"saintagent/internal/store"
)

const boardPage = `<html><body>
<ul class="notice-lists">
  <li>
    <div class="notice_col1">2026-08-27</div>
    <div class="notice_col3">
      <a href="https://scatch.ssu.ac.kr/notice/1">
        <span class="label">장학</span>
        국가장학금 2차 신청 안내
      </a>
    </div>
  </li>
  <li>
    <div class="notice_col1">2026-08-26</div>
    <div class="notice_col3">
      <a href="https://scatch.ssu.ac.kr/notice/2">
        <span class="label">학사</span>
        수강신청 일정 안내
      </a>
    </div>
  </li>
</ul>
</body></html>`

func newTestBase(t *testing.T) *NoticeBase {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(boardPage))
	}))
	t.Cleanup(srv.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	nc := notice.NewClientWithBase(srv.URL)
	b := NewNoticeBase(st, nc)
	b.RefreshPages = 1
	return b
}

func TestRefreshArchivesAndDeduplicates(t *testing.T) {
	b := newTestBase(t)

	added, err := b.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	// Second refresh sees the same rows.
	added, err = b.Refresh(context.Background())
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestSearchFindsArchivedNotices(t *testing.T) {
	b := newTestBase(t)
	_, err := b.Refresh(context.Background())
	require.NoError(t, err)

	hits, err := b.Search(context.Background(), "국가장학금 신청", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "국가장학금 2차 신청 안내", hits[0].Title)

	hits, err = b.Search(context.Background(), "없는키워드", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = b.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFormatResults(t *testing.T) {
	out := FormatResults([]store.Notice{
		{Category: "장학", Title: "국가장학금 안내", Link: "https://scatch.ssu.ac.kr/notice/1", PostedAt: "2026-08-27"},
	})
	assert.Contains(t, out, "[장학] 국가장학금 안내 (2026-08-27)")
	assert.Contains(t, out, "https://scatch.ssu.ac.kr/notice/1")

	assert.Equal(t, "no matching notices found", FormatResults(nil))
}
