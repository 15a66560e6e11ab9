package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS evaluations (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ts INTEGER,
        run_id TEXT,
        strategy TEXT,
        pv_kw REAL,
        battery_kw REAL,
        status TEXT,
        record TEXT
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record to the database.
func (s *SQLiteStore) Append(ctx context.Context, rec LogRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO evaluations (ts, run_id, strategy, pv_kw, battery_kw, status, record) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.UnixNano(), rec.RunID, rec.Strategy, rec.PVKW, rec.BatteryKW, rec.Status.String(), string(b))
	return err
}

// Query returns records matching q ordered by insertion.
func (s *SQLiteStore) Query(ctx context.Context, q LogQuery) ([]LogRecord, error) {
	var args []any
	query := `SELECT record FROM evaluations WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, q.RunID)
	}
	if q.Strategy != "" {
		query += ` AND strategy = ?`
		args = append(args, q.Strategy)
	}
	if q.SuccessOnly {
		query += ` AND status = 'Success'`
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []LogRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r LogRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// BestFeasible returns the successful record with the largest PV and, among
// those, the smallest battery.
func (s *SQLiteStore) BestFeasible(ctx context.Context, runID string) (LogRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record FROM evaluations WHERE run_id = ? AND status = 'Success' ORDER BY pv_kw DESC, battery_kw ASC LIMIT 1`, runID)
	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return LogRecord{}, false, nil
		}
		return LogRecord{}, false, err
	}
	var r LogRecord
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return LogRecord{}, false, fmt.Errorf("unmarshal record: %w", err)
	}
	return r, true, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
