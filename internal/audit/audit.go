// Package audit provides an append-only operational log for administrative
// batch actions. Records are local history; nothing in the serving path
// reads them back.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Logger records administrative actions.
type Logger interface {
	Record(ctx context.Context, action, performedBy string, details any) error
	Close() error
}

// Entry is one recorded action, as read back by List.
type Entry struct {
	ID          int64     `json:"id"`
	Action      string    `json:"action"`
	PerformedBy string    `json:"performedBy"`
	Details     string    `json:"details"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SQLiteLog is a Logger on a local SQLite file. Writes are serialized by a
// single connection; WAL keeps them from blocking concurrent readers.
type SQLiteLog struct {
	db *sql.DB
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	action TEXT NOT NULL,
	performed_by TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
`

// NewSQLiteLog opens (or creates) the audit database at path.
func NewSQLiteLog(path string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent Record calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(auditSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	return &SQLiteLog{db: db}, nil
}

func (l *SQLiteLog) Record(ctx context.Context, action, performedBy string, details any) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO audit_log (action, performed_by, details, created_at) VALUES (?, ?, ?, ?)`,
		action, performedBy, string(detailsJSON), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (l *SQLiteLog) List(ctx context.Context, limit int) ([]*Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, action, performed_by, details, created_at FROM audit_log ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.PerformedBy, &entry.Details, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func (l *SQLiteLog) Close() error {
	return l.db.Close()
}
