package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Schedule is one recurring automation task owned by a user.
type Schedule struct {
	ID       int64
	UserID   int64
	TaskType string
	CronExpr string
	Params   string
	Enabled  bool

	// LastKnownResult is the task's last observed value. Nil means the
	// task has never produced a result; the first observation is recorded
	// without notifying.
	LastKnownResult *string
	LastRunAt       *time.Time
}

// CreateSchedule inserts a schedule and returns its id.
func (s *Store) CreateSchedule(sc Schedule) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO schedules (user_id, task_type, cron_expr, params, enabled)
		 VALUES (?, ?, ?, ?, ?)`,
		sc.UserID, sc.TaskType, sc.CronExpr, sc.Params, sc.Enabled)
	if err != nil {
		return 0, fmt.Errorf("create schedule: %w", err)
	}
	return res.LastInsertId()
}

// ListEnabledSchedules returns every enabled schedule.
func (s *Store) ListEnabledSchedules() ([]Schedule, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, task_type, cron_expr, params, enabled,
		        last_known_result, last_run_at
		 FROM schedules WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		var sc Schedule
		var result sql.NullString
		var runAt sql.NullTime
		if err := rows.Scan(&sc.ID, &sc.UserID, &sc.TaskType, &sc.CronExpr,
			&sc.Params, &sc.Enabled, &result, &runAt); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		if result.Valid {
			v := result.String
			sc.LastKnownResult = &v
		}
		if runAt.Valid {
			t := runAt.Time
			sc.LastRunAt = &t
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// SetScheduleEnabled flips a schedule on or off.
func (s *Store) SetScheduleEnabled(id int64, enabled bool) error {
	_, err := s.db.Exec(`UPDATE schedules SET enabled = ? WHERE id = ?`, enabled, id)
	return err
}

// RecordRun updates last_known_result and last_run_at without queuing a
// notification. Used when a run produced no user-visible change.
func (s *Store) RecordRun(scheduleID int64, result string, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE schedules SET last_known_result = ?, last_run_at = ? WHERE id = ?`,
		result, at.UTC(), scheduleID)
	if err != nil {
		return fmt.Errorf("record run for schedule %d: %w", scheduleID, err)
	}
	return nil
}

// CommitChange records a new result and queues its notification in one
// transaction. Either both land or neither does, so a crash between the
// two cannot produce a silent state advance or a duplicate notification.
func (s *Store) CommitChange(scheduleID, userID int64, result, notification string, at time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin change commit: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE schedules SET last_known_result = ?, last_run_at = ? WHERE id = ?`,
		result, at.UTC(), scheduleID); err != nil {
		return fmt.Errorf("update schedule %d: %w", scheduleID, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO notifications (user_id, schedule_id, body) VALUES (?, ?, ?)`,
		userID, scheduleID, notification); err != nil {
		return fmt.Errorf("queue notification for schedule %d: %w", scheduleID, err)
	}
	return tx.Commit()
}

// Notification is one queued outbound message.
type Notification struct {
	ID         int64
	UserID     int64
	ScheduleID int64
	Body       string
}

// PendingNotifications returns queued, undispatched notifications oldest
// first.
func (s *Store) PendingNotifications(limit int) ([]Notification, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, COALESCE(schedule_id, 0), body
		 FROM notifications WHERE dispatched_at IS NULL ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.ScheduleID, &n.Body); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkDispatched stamps a notification as sent.
func (s *Store) MarkDispatched(id int64) error {
	_, err := s.db.Exec(
		`UPDATE notifications SET dispatched_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}
