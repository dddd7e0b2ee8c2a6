// Package storage keeps a bounded history of computed reports in SQLite.
//
// Each report is stored as its JSON document next to a few summary columns,
// so history listings never decode full reports. Rotation keeps the newest
// reports and drops the rest.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openmedicaid/claimlens/internal/analysis"
	"github.com/openmedicaid/claimlens/internal/logger"
)

// MemoryPath opens a database that lives only as long as the Storage.
const MemoryPath = ":memory:"

// ErrNotFound is returned when no report has the requested ID.
var ErrNotFound = errors.New("report not found")

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	computed_at TEXT NOT NULL,
	source TEXT NOT NULL,
	insights INTEGER NOT NULL,
	outliers INTEGER NOT NULL,
	saved_at INTEGER NOT NULL,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_saved_at ON reports(saved_at);
`

// ReportMeta summarizes a stored report.
type ReportMeta struct {
	ID         string    `json:"id"`
	ComputedAt time.Time `json:"computed_at"`
	Source     string    `json:"source"`
	Insights   int       `json:"insights"`
	Outliers   int       `json:"outliers"`
	SavedAt    time.Time `json:"saved_at"`
}

// Storage persists reports. It is safe for concurrent use.
type Storage struct {
	db         *sql.DB
	maxReports int
	dbPath     string
	now        func() time.Time
}

// New opens (creating if needed) the report database at dbPath. maxReports
// bounds the history kept by RotateReports; zero or less keeps everything.
func New(maxReports int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "claimlens", "reports.db")
	}
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer, and every connection to
	// :memory: would otherwise see its own empty database.
	db.SetMaxOpenConns(1)

	s := &Storage{db: db, maxReports: maxReports, dbPath: dbPath, now: time.Now}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("Report storage opened at %s (max %d reports)", dbPath, maxReports)
	return s, nil
}

func (s *Storage) initialize() error {
	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if s.dbPath != MemoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveReport stores r, replacing any report with the same ID. A replaced
// report counts as newly saved.
func (s *Storage) SaveReport(ctx context.Context, r *analysis.Report) error {
	if r == nil || r.ID == "" {
		return errors.New("invalid report: ID must not be empty")
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (id, computed_at, source, insights, outliers, saved_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			computed_at = excluded.computed_at,
			source = excluded.source,
			insights = excluded.insights,
			outliers = excluded.outliers,
			saved_at = excluded.saved_at,
			payload = excluded.payload`,
		r.ID,
		r.ComputedAt.UTC().Format(time.RFC3339Nano),
		r.Source,
		len(r.Insights),
		r.OutlierCount(),
		s.now().UnixNano(),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", r.ID, err)
	}
	return nil
}

// GetReport returns the stored report with the given ID.
func (s *Storage) GetReport(ctx context.Context, id string) (*analysis.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM reports WHERE id = ?`, id)
	r, err := decodeReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// LatestReport returns the most recently saved report, or
// analysis.ErrNoReport when the history is empty.
func (s *Storage) LatestReport(ctx context.Context) (*analysis.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT payload FROM reports ORDER BY saved_at DESC, seq DESC LIMIT 1`)
	r, err := decodeReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, analysis.ErrNoReport
	}
	return r, err
}

func decodeReport(row *sql.Row) (*analysis.Report, error) {
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r analysis.Report
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &r, nil
}

// ListReports returns up to limit report summaries, newest first. A limit of
// zero or less returns the whole history.
func (s *Storage) ListReports(ctx context.Context, limit int) ([]ReportMeta, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, computed_at, source, insights, outliers, saved_at
		FROM reports ORDER BY saved_at DESC, seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	metas := []ReportMeta{}
	for rows.Next() {
		var (
			m          ReportMeta
			computedAt string
			savedAt    int64
		)
		if err := rows.Scan(&m.ID, &computedAt, &m.Source, &m.Insights, &m.Outliers, &savedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		if m.ComputedAt, err = time.Parse(time.RFC3339Nano, computedAt); err != nil {
			return nil, fmt.Errorf("invalid computed_at for report %s: %w", m.ID, err)
		}
		m.SavedAt = time.Unix(0, savedAt).UTC()
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// RotateReports deletes everything but the newest maxReports reports.
func (s *Storage) RotateReports(ctx context.Context) error {
	if s.maxReports <= 0 {
		return nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM reports WHERE seq NOT IN (
			SELECT seq FROM reports ORDER BY saved_at DESC, seq DESC LIMIT ?
		)`, s.maxReports)
	if err != nil {
		return fmt.Errorf("failed to rotate reports: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		logger.Debug("Rotated %d old reports", n)
	}
	return nil
}
