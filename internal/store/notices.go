package store

import (
	"fmt"
	"strings"
)

// Notice is one archived announcement.
type Notice struct {
	ID       int64
	Category string
	Title    string
	Link     string
	PostedAt string
}

// SaveNotices archives fetched notices, ignoring rows already present.
// Returns the number of newly inserted rows.
func (s *Store) SaveNotices(notices []Notice) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin notice save: %w", err)
	}
	defer tx.Rollback()

	var inserted int
	for _, n := range notices {
		res, err := tx.Exec(
			`INSERT OR IGNORE INTO notices (category, title, link, posted_at)
			 VALUES (?, ?, ?, ?)`,
			n.Category, n.Title, n.Link, n.PostedAt)
		if err != nil {
			return 0, fmt.Errorf("save notice %q: %w", n.Title, err)
		}
		if rows, _ := res.RowsAffected(); rows > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// SearchNotices returns archived notices whose title contains every keyword,
// newest first.
func (s *Store) SearchNotices(keywords []string, limit int) ([]Notice, error) {
	query := `SELECT id, category, title, link, posted_at FROM notices`
	var args []any
	var clauses []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		clauses = append(clauses, "title LIKE ?")
		args = append(args, "%"+kw+"%")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search notices: %w", err)
	}
	defer rows.Close()

	var out []Notice
	for rows.Next() {
		var n Notice
		if err := rows.Scan(&n.ID, &n.Category, &n.Title, &n.Link, &n.PostedAt); err != nil {
			return nil, fmt.Errorf("scan notice: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
