package history

import (
	"database/sql"
)

const selectColumns = `
	SELECT id, run_id, timestamp, action, op, path, file_name, dest, pattern, size, error_message
	FROM operations
`

// GetRecent returns the N most recent operations
func (h *DB) GetRecent(limit int) ([]Record, error) {
	return h.queryRecords(selectColumns+`
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, limit)
}

// GetByRun returns every operation of one run in insertion order
func (h *DB) GetByRun(runID string) ([]Record, error) {
	return h.queryRecords(selectColumns+`
	WHERE run_id = ?
	ORDER BY id ASC
	`, runID)
}

// GetByAction returns operations filtered by action
func (h *DB) GetByAction(action string, limit int) ([]Record, error) {
	return h.queryRecords(selectColumns+`
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, action, limit)
}

// Stats holds aggregated counts across all runs
type Stats struct {
	TotalRecords     int64            `json:"total_records" yaml:"total_records"`
	Runs             int64            `json:"runs" yaml:"runs"`
	BytesQuarantined int64            `json:"bytes_quarantined" yaml:"bytes_quarantined"`
	ByAction         map[string]int64 `json:"by_action" yaml:"by_action"`
	ByOp             map[string]int64 `json:"by_op" yaml:"by_op"`
}

// GetStats aggregates the whole history
func (h *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	err := h.db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(DISTINCT run_id),
			COALESCE(SUM(CASE WHEN action = 'MOVE' THEN size END), 0)
		FROM operations
	`).Scan(&stats.TotalRecords, &stats.Runs, &stats.BytesQuarantined)
	if err != nil {
		return nil, err
	}

	if stats.ByAction, err = h.countBy("action"); err != nil {
		return nil, err
	}
	if stats.ByOp, err = h.countBy("op"); err != nil {
		return nil, err
	}
	return stats, nil
}

// countBy groups on a fixed column name, never user input
func (h *DB) countBy(column string) (map[string]int64, error) {
	rows, err := h.db.Query("SELECT " + column + ", COUNT(*) FROM operations GROUP BY " + column)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

func (h *DB) queryRecords(query string, args ...interface{}) ([]Record, error) {
	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var dest, pattern, errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.RunID, &r.Timestamp, &r.Action, &r.Op, &r.Path, &r.FileName,
			&dest, &pattern, &r.Size, &errMsg,
		)
		if err != nil {
			return nil, err
		}
		r.Dest = dest.String
		r.Pattern = pattern.String
		r.ErrorMessage = errMsg.String

		records = append(records, r)
	}
	return records, rows.Err()
}
