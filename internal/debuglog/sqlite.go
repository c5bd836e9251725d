package debuglog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/studiowebux/frontloader/internal/migrations"
)

// SQLiteSink stores entries in the debug_entries table, tagged with the run id.
type SQLiteSink struct {
	db    *sql.DB
	runID string
	stmt  *sql.Stmt
}

// NewSQLiteSink opens (or creates) the database at dbPath and migrates it.
func NewSQLiteSink(dbPath, runID string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; Log already serialises, this keeps :memory: on one connection.
	db.SetMaxOpenConns(1)

	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	stmt, err := db.Prepare(`
		INSERT INTO debug_entries (run_id, kind, call_name, written_at, data)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	return &SQLiteSink{db: db, runID: runID, stmt: stmt}, nil
}

// Write inserts one entry.
func (s *SQLiteSink) Write(entry Entry) error {
	var call sql.NullString
	if entry.Call != "" {
		call = sql.NullString{String: entry.Call, Valid: true}
	}

	_, err := s.stmt.Exec(s.runID, string(entry.Kind), call, time.Now().UTC(), entry.Data)
	if err != nil {
		return fmt.Errorf("failed to insert debug entry: %w", err)
	}
	return nil
}

// Entries returns the entries of the sink's run in arrival order.
func (s *SQLiteSink) Entries() ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT kind, COALESCE(call_name, ''), data
		FROM debug_entries
		WHERE run_id = ?
		ORDER BY id
	`, s.runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var kind string
		if err := rows.Scan(&kind, &entry.Call, &entry.Data); err != nil {
			return nil, err
		}
		entry.Kind = Kind(kind)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Close closes the statement and the database.
func (s *SQLiteSink) Close() error {
	s.stmt.Close()
	return s.db.Close()
}
