// Package knowledge answers keyword queries over the archived notice board.
// The archive grows as the scheduler and refreshes pull new pages in, so
// searches work even when the board itself is unreachable.
package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"saintagent/internal/logging"
	"saintagent/internal/notice"
	"saintagent/internal/store"
)

// Searcher finds archived notices matching a query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]store.Notice, error)
}

// NoticeBase archives board pages into the store and searches them.
type NoticeBase struct {
	st      *store.Store
	notices *notice.Client

	// RefreshPages is how many board pages a refresh pulls.
	RefreshPages int
}

// NewNoticeBase creates a notice knowledge base.
func NewNoticeBase(st *store.Store, notices *notice.Client) *NoticeBase {
	return &NoticeBase{st: st, notices: notices, RefreshPages: 3}
}

// Refresh pulls the newest board pages into the archive. Returns how many
// notices were new.
func (b *NoticeBase) Refresh(ctx context.Context) (int, error) {
	var added int
	for page := 1; page <= b.RefreshPages; page++ {
		posts, err := b.notices.FetchPage(ctx, page)
		if err != nil {
			// Pages past the first failing one would fail the same way.
			if added > 0 {
				logging.Get(logging.CategoryFetch).Warn("notice refresh stopped at page %d: %v", page, err)
				return added, nil
			}
			return 0, fmt.Errorf("refresh notices: %w", err)
		}
		batch := make([]store.Notice, 0, len(posts))
		for _, p := range posts {
			batch = append(batch, store.Notice{
				Category: p.Category,
				Title:    p.Title,
				Link:     p.URL,
				PostedAt: p.Date,
			})
		}
		n, err := b.st.SaveNotices(batch)
		if err != nil {
			return added, err
		}
		added += n
	}
	if added > 0 {
		logging.Fetch("notice refresh archived %d new notice(s)", added)
	}
	return added, nil
}

// RunRefresher refreshes the archive once immediately and then every
// interval until ctx is cancelled. Failures are logged and retried on the
// next interval.
func (b *NoticeBase) RunRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := b.Refresh(ctx); err != nil {
			logging.Get(logging.CategoryFetch).Warn("notice refresh failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Search splits the query into keywords and returns archived notices whose
// titles contain all of them, newest first.
func (b *NoticeBase) Search(ctx context.Context, query string, limit int) ([]store.Notice, error) {
	if limit <= 0 {
		limit = 10
	}
	keywords := strings.Fields(query)
	if len(keywords) == 0 {
		return nil, nil
	}
	return b.st.SearchNotices(keywords, limit)
}

// FormatResults renders search hits for the model.
func FormatResults(notices []store.Notice) string {
	if len(notices) == 0 {
		return "no matching notices found"
	}
	var b strings.Builder
	for _, n := range notices {
		if n.Category != "" {
			fmt.Fprintf(&b, "[%s] ", n.Category)
		}
		fmt.Fprintf(&b, "%s", n.Title)
		if n.PostedAt != "" {
			fmt.Fprintf(&b, " (%s)", n.PostedAt)
		}
		if n.Link != "" {
			fmt.Fprintf(&b, "\n  %s", n.Link)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
