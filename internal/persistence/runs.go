package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/taskflow/internal/report"
)

const (
	noticeBlocked   = "blocked"
	noticeShortfall = "shortfall"
	noticeFailed    = "failed"
	noticeRejected  = "rejected"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// SaveRun archives a report. Saving the same run ID twice is an error.
func (s *SQLiteStore) SaveRun(ctx context.Context, r report.Report) error {
	if r.RunID == "" {
		return errors.New("cannot archive a report without a run ID")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Begin transaction with serializable isolation (BEGIN IMMEDIATE)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, policy, title, mode, total, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.Policy, r.Title, r.Mode, r.Total, formatTime(r.StartedAt), formatTime(r.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", r.RunID, err)
	}

	for _, row := range r.Rows {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_records (run_id, position, task_name, duration_seconds, priority, category)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.RunID, row.Position, row.Name, row.Seconds, row.Priority, row.Category)
		if err != nil {
			return fmt.Errorf("failed to insert record %d: %w", row.Position, err)
		}
	}

	for _, b := range r.Blocked {
		missing, err := json.Marshal(b.Missing)
		if err != nil {
			return fmt.Errorf("failed to encode missing dependencies: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_notices (run_id, kind, task_name, missing) VALUES (?, ?, ?, ?)
		`, r.RunID, noticeBlocked, b.Task, string(missing)); err != nil {
			return fmt.Errorf("failed to insert blocked notice: %w", err)
		}
	}

	for _, sf := range r.Shortfalls {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_notices (run_id, kind, task_name, resource, requested, available, known)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.RunID, noticeShortfall, sf.Task, sf.Resource, sf.Requested, sf.Available, sf.Known); err != nil {
			return fmt.Errorf("failed to insert shortfall notice: %w", err)
		}
	}

	for _, f := range r.Failed {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_notices (run_id, kind, task_name, error) VALUES (?, ?, ?, ?)
		`, r.RunID, noticeFailed, f.Task, f.Error); err != nil {
			return fmt.Errorf("failed to insert failure notice: %w", err)
		}
	}

	for _, rj := range r.Rejected {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_notices (run_id, kind, task_name, error) VALUES (?, ?, ?, ?)
		`, r.RunID, noticeRejected, rj.Task, rj.Error); err != nil {
			return fmt.Errorf("failed to insert rejection notice: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRun rebuilds an archived report.
// Returns ErrRunNotFound if no run has the given ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*report.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	r := &report.Report{RunID: runID, Rows: []report.Row{}}
	var startedAt, finishedAt sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT policy, title, mode, total, started_at, finished_at
		FROM runs
		WHERE id = ?
	`, runID).Scan(&r.Policy, &r.Title, &r.Mode, &r.Total, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %q: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	r.StartedAt = parseTime(startedAt.String)
	r.FinishedAt = parseTime(finishedAt.String)

	if err := s.loadRecords(ctx, r); err != nil {
		return nil, err
	}
	if err := s.loadNotices(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLiteStore) loadRecords(ctx context.Context, r *report.Report) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, task_name, duration_seconds, priority, category
		FROM run_records
		WHERE run_id = ?
		ORDER BY position
	`, r.RunID)
	if err != nil {
		return fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row report.Row
		var category sql.NullString
		if err := rows.Scan(&row.Position, &row.Name, &row.Seconds, &row.Priority, &category); err != nil {
			return fmt.Errorf("failed to scan record: %w", err)
		}
		row.Category = category.String
		r.Rows = append(r.Rows, row)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadNotices(ctx context.Context, r *report.Report) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, task_name, resource, requested, available, known, missing, error
		FROM run_notices
		WHERE run_id = ?
		ORDER BY id
	`, r.RunID)
	if err != nil {
		return fmt.Errorf("failed to query notices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind, task                string
			resource, missing, errStr sql.NullString
			requested, available      sql.NullInt64
			known                     sql.NullBool
		)
		if err := rows.Scan(&kind, &task, &resource, &requested, &available, &known, &missing, &errStr); err != nil {
			return fmt.Errorf("failed to scan notice: %w", err)
		}

		switch kind {
		case noticeBlocked:
			var names []string
			if missing.Valid && missing.String != "" {
				if err := json.Unmarshal([]byte(missing.String), &names); err != nil {
					return fmt.Errorf("failed to decode missing dependencies for %s: %w", task, err)
				}
			}
			r.Blocked = append(r.Blocked, report.BlockedNotice{Task: task, Missing: names})
		case noticeShortfall:
			r.Shortfalls = append(r.Shortfalls, report.ShortfallNotice{
				Task:      task,
				Resource:  resource.String,
				Requested: int(requested.Int64),
				Available: int(available.Int64),
				Known:     known.Bool,
			})
		case noticeFailed:
			r.Failed = append(r.Failed, report.FailedNotice{Task: task, Error: errStr.String})
		case noticeRejected:
			r.Rejected = append(r.Rejected, report.RejectedNotice{Task: task, Error: errStr.String})
		default:
			return fmt.Errorf("unknown notice kind %q", kind)
		}
	}
	return rows.Err()
}

// ListRuns returns the most recently archived runs first. A limit of zero or
// less returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.policy, r.title, r.mode, r.total, r.started_at, r.finished_at, r.archived_at,
			(SELECT COUNT(*) FROM run_records c WHERE c.run_id = r.id),
			(SELECT COUNT(*) FROM run_notices n WHERE n.run_id = r.id AND n.kind = ?),
			(SELECT COUNT(*) FROM run_notices n WHERE n.run_id = r.id AND n.kind = ?),
			(SELECT COUNT(*) FROM run_notices n WHERE n.run_id = r.id AND n.kind = ?),
			(SELECT COUNT(*) FROM run_notices n WHERE n.run_id = r.id AND n.kind = ?)
		FROM runs r
		ORDER BY r.archived_at DESC, r.rowid DESC
		LIMIT ?
	`, noticeBlocked, noticeShortfall, noticeFailed, noticeRejected, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var sum RunSummary
		var startedAt, finishedAt, archivedAt sql.NullString
		if err := rows.Scan(&sum.RunID, &sum.Policy, &sum.Title, &sum.Mode, &sum.Total,
			&startedAt, &finishedAt, &archivedAt,
			&sum.Completed, &sum.Blocked, &sum.Shortfalls, &sum.Failed, &sum.Rejected); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		sum.StartedAt = parseTime(startedAt.String)
		sum.FinishedAt = parseTime(finishedAt.String)
		sum.ArchivedAt = parseTime(archivedAt.String)
		runs = append(runs, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run and its records.
// Returns ErrRunNotFound if no run has the given ID.
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %q: %w", runID, ErrRunNotFound)
	}
	return nil
}

func formatTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime accepts RFC 3339 values and SQLite's CURRENT_TIMESTAMP format.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
