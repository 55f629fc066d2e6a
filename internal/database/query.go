package database

import (
	"database/sql"
	"time"
)

const removalColumns = `
	SELECT id, run_id, timestamp, action, path, target, object_type, size,
	       reason, error_message
	FROM removals`

// GetRecentRemovals returns the N most recent removal attempts
func (d *RemovalDB) GetRecentRemovals(limit int) ([]RemovalRecord, error) {
	return d.queryRemovals(removalColumns+`
	ORDER BY timestamp DESC, id DESC
	LIMIT ?`, limit)
}

// GetRemovalsByAction returns attempts filtered by action
func (d *RemovalDB) GetRemovalsByAction(action string) ([]RemovalRecord, error) {
	return d.queryRemovals(removalColumns+`
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC`, action)
}

// GetRemovalsByPath returns attempts whose path matches a LIKE pattern
func (d *RemovalDB) GetRemovalsByPath(pathPattern string) ([]RemovalRecord, error) {
	return d.queryRemovals(removalColumns+`
	WHERE path LIKE ?
	ORDER BY timestamp DESC, id DESC`, pathPattern)
}

// GetRemovalsByRun returns every attempt of one run in insertion order
func (d *RemovalDB) GetRemovalsByRun(runID int64) ([]RemovalRecord, error) {
	return d.queryRemovals(removalColumns+`
	WHERE run_id = ?
	ORDER BY id`, runID)
}

// GetLargestRemovals returns the N largest committed removals
func (d *RemovalDB) GetLargestRemovals(limit int) ([]RemovalRecord, error) {
	return d.queryRemovals(removalColumns+`
	WHERE action = 'REMOVE'
	ORDER BY size DESC
	LIMIT ?`, limit)
}

// GetTotalSpaceFreed returns bytes actually freed in a time range
func (d *RemovalDB) GetTotalSpaceFreed(start, end time.Time) (int64, error) {
	query := `
	SELECT COALESCE(SUM(size), 0)
	FROM removals
	WHERE action = 'REMOVE' AND timestamp BETWEEN ? AND ?
	`

	var total int64
	err := d.db.QueryRow(query, start.UTC(), end.UTC()).Scan(&total)
	return total, err
}

// GetCountByAction returns attempts since a time grouped by action
func (d *RemovalDB) GetCountByAction(since time.Time) (map[string]int, error) {
	return d.countBy("action", since)
}

// GetCountByReason returns skipped or failed attempts since a time
// grouped by reason
func (d *RemovalDB) GetCountByReason(since time.Time) (map[string]int, error) {
	return d.countBy("reason", since)
}

func (d *RemovalDB) countBy(column string, since time.Time) (map[string]int, error) {
	// column is one of two fixed names, never user input
	query := `
	SELECT ` + column + `, COUNT(*)
	FROM removals
	WHERE timestamp >= ? AND ` + column + ` IS NOT NULL AND ` + column + ` != ''
	GROUP BY ` + column

	rows, err := d.db.Query(query, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}

	return counts, rows.Err()
}

// RemovalStats holds aggregated statistics
type RemovalStats struct {
	TotalRemoved    int            `json:"total_removed" yaml:"total_removed"`
	TotalPreviewed  int            `json:"total_previewed" yaml:"total_previewed"`
	TotalSkipped    int            `json:"total_skipped" yaml:"total_skipped"`
	TotalErrors     int            `json:"total_errors" yaml:"total_errors"`
	TotalSpaceFreed int64          `json:"total_space_freed" yaml:"total_space_freed"`
	Runs            int            `json:"runs" yaml:"runs"`
	ByAction        map[string]int `json:"by_action" yaml:"by_action"`
	ByReason        map[string]int `json:"by_reason" yaml:"by_reason"`
	StartDate       time.Time      `json:"start_date" yaml:"start_date"`
	EndDate         time.Time      `json:"end_date" yaml:"end_date"`
}

// GetRemovalStats returns statistics for the last days
func (d *RemovalDB) GetRemovalStats(days int) (*RemovalStats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &RemovalStats{
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN action = 'REMOVE' THEN 1 END),
			COUNT(CASE WHEN action = 'DRY_RUN' THEN 1 END),
			COUNT(CASE WHEN action = 'SKIP' THEN 1 END),
			COUNT(CASE WHEN action = 'ERROR' THEN 1 END)
		FROM removals
		WHERE timestamp >= ?
	`, since.UTC()).Scan(&stats.TotalRemoved, &stats.TotalPreviewed, &stats.TotalSkipped, &stats.TotalErrors)
	if err != nil {
		return nil, err
	}

	stats.TotalSpaceFreed, err = d.GetTotalSpaceFreed(since, now)
	if err != nil {
		return nil, err
	}

	if err := d.db.QueryRow("SELECT COUNT(*) FROM runs WHERE started_at >= ?", since.UTC()).Scan(&stats.Runs); err != nil {
		return nil, err
	}

	stats.ByAction, err = d.GetCountByAction(since)
	if err != nil {
		return nil, err
	}

	stats.ByReason, err = d.GetCountByReason(since)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// GetRecentRuns returns the N most recent runs
func (d *RemovalDB) GetRecentRuns(limit int) ([]RunRecord, error) {
	rows, err := d.db.Query(`
	SELECT id, started_at, finished_at, mode, status, targets, freed_bytes, cleaned, skipped
	FROM runs
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var finished sql.NullTime
		if err := rows.Scan(
			&r.ID, &r.StartedAt, &finished, &r.Mode, &r.Status,
			&r.Targets, &r.FreedBytes, &r.Cleaned, &r.Skipped,
		); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// DeleteOldRecords removes removal records older than the given days
func (d *RemovalDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays).UTC()

	result, err := d.db.Exec("DELETE FROM removals WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (d *RemovalDB) queryRemovals(query string, args ...interface{}) ([]RemovalRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RemovalRecord
	for rows.Next() {
		var r RemovalRecord
		var runID sql.NullInt64
		var target, reason, errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &runID, &r.Timestamp, &r.Action, &r.Path, &target,
			&r.ObjectType, &r.Size, &reason, &errMsg,
		)
		if err != nil {
			return nil, err
		}

		r.RunID = runID.Int64
		r.Target = target.String
		r.Reason = reason.String
		r.ErrorMessage = errMsg.String

		records = append(records, r)
	}

	return records, rows.Err()
}
