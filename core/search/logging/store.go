package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/dersize/core/model"
)

// LogRecord is the persisted form of one evaluated candidate.
type LogRecord struct {
	Timestamp  time.Time       `json:"timestamp"`
	RunID      string          `json:"run_id"`
	Strategy   string          `json:"strategy"`
	PVKW       float64         `json:"pv_kw"`
	BatteryKW  float64         `json:"battery_kw"`
	SoCPct     float64         `json:"soc"`
	Status     model.Status    `json:"status"`
	Reasons    model.ReasonSet `json:"reason_codes"`
	Error      string          `json:"error,omitempty"`
	DurationMS int64           `json:"duration_ms"`
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start       time.Time
	End         time.Time
	RunID       string
	Strategy    string
	SuccessOnly bool
}

func (q LogQuery) match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if q.Strategy != "" && r.Strategy != q.Strategy {
		return false
	}
	if q.SuccessOnly && r.Status != model.StatusSuccess {
		return false
	}
	return true
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// StoreConfig selects and configures a LogStore backend.
type StoreConfig struct {
	Backend    string `json:"backend"` // jsonl, rotating, sqlite or empty for none
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// NewLogStore opens the configured backend. An empty backend returns nil.
func NewLogStore(cfg StoreConfig) (LogStore, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "jsonl":
		return NewJSONLStore(cfg.Path)
	case "rotating":
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown log store backend %q", cfg.Backend)
	}
}
