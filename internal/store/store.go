// Package store persists analysis reports so the console can show how a
// cluster's RBAC posture changes over time. The engine itself stays pure;
// saving a report is an explicit caller decision.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite, no cgo

	"github.com/kubeconsole/rbaclens/pkg/analyzer"
)

// MemoryPath opens an in-memory database, used by tests.
const MemoryPath = ":memory:"

// Store is a sqlite-backed report history.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens (and if needed creates) the report database at path.
func Open(path string) (*Store, error) {
	if path != MemoryPath {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TEXT NOT NULL,
		source TEXT NOT NULL,
		total_service_accounts INTEGER NOT NULL,
		critical_risk INTEGER NOT NULL,
		high_risk INTEGER NOT NULL,
		medium_risk INTEGER NOT NULL,
		low_risk INTEGER NOT NULL,
		orphaned_roles INTEGER NOT NULL,
		unused_service_accounts INTEGER NOT NULL,
		warnings INTEGER NOT NULL,
		report TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

// ReportSummary is one row of the saved-report listing.
type ReportSummary struct {
	ID        int64            `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Source    string           `json:"source"`
	Summary   analyzer.Summary `json:"summary"`
}

// SaveReport persists a report with its summary counters. Source records
// where the snapshot came from (cluster context, file, directory).
func (s *Store) SaveReport(source string, a *analyzer.RBACAnalysis) (int64, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return 0, fmt.Errorf("failed to encode report: %w", err)
	}

	summary := analyzer.Summarize(a)
	result, err := s.conn.Exec(`
		INSERT INTO reports (
			created_at, source, total_service_accounts,
			critical_risk, high_risk, medium_risk, low_risk,
			orphaned_roles, unused_service_accounts, warnings, report
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), source, summary.TotalServiceAccounts,
		summary.CriticalRisk, summary.HighRisk, summary.MediumRisk, summary.LowRisk,
		summary.OrphanedRoles, summary.UnusedAccounts, summary.Warnings, string(payload),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save report: %w", err)
	}
	return result.LastInsertId()
}

// ListReports returns the most recent report summaries, newest first.
func (s *Store) ListReports(limit int) ([]ReportSummary, error) {
	rows, err := s.conn.Query(`
		SELECT id, created_at, source, total_service_accounts,
		       critical_risk, high_risk, medium_risk, low_risk,
		       orphaned_roles, unused_service_accounts, warnings
		FROM reports ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var summaries []ReportSummary
	for rows.Next() {
		var r ReportSummary
		var createdAt string
		if err := rows.Scan(&r.ID, &createdAt, &r.Source, &r.Summary.TotalServiceAccounts,
			&r.Summary.CriticalRisk, &r.Summary.HighRisk, &r.Summary.MediumRisk, &r.Summary.LowRisk,
			&r.Summary.OrphanedRoles, &r.Summary.UnusedAccounts, &r.Summary.Warnings); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
			r.CreatedAt = t
		}
		summaries = append(summaries, r)
	}
	return summaries, rows.Err()
}

// GetReport loads one saved report by id.
func (s *Store) GetReport(id int64) (*analyzer.RBACAnalysis, error) {
	var payload string
	err := s.conn.QueryRow(`SELECT report FROM reports WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	var a analyzer.RBACAnalysis
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &a, nil
}
