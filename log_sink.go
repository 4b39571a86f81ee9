// log_sink.go: Storage sinks for the diagnostic logger
//
// A Logger fans its entries out to one or more sinks: formatted text on a
// writer (console or plain file), JSON lines, or a SQLite database that can
// be queried afterwards with `talos log query`.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package talos

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// logSink persists batches of entries.
type logSink interface {
	// Write persists a batch of entries. Implementations must handle
	// concurrent writes safely.
	Write(entries []Entry) error

	// Flush forces pending writes down to storage.
	Flush() error

	// Close releases all resources. The sink must not be used afterwards.
	Close() error
}

// statsSink is implemented by sinks that can describe their contents.
type statsSink interface {
	Stats() (*LogStats, error)
}

// LogStats summarizes the entries held by a sink.
type LogStats struct {
	TotalEntries       int64            `json:"total_entries"`
	EntriesByLevel     map[string]int64 `json:"entries_by_level"`
	EntriesByComponent map[string]int64 `json:"entries_by_component"`
	OldestEntry        *time.Time       `json:"oldest_entry,omitempty"`
	NewestEntry        *time.Time       `json:"newest_entry,omitempty"`
	SizeBytes          int64            `json:"size_bytes"`
	SchemaVersion      int              `json:"schema_version"`
}

// createLogSinks builds the console sink and the file sink selected by the
// OutputFile extension. A SQLite database that cannot be opened degrades to
// a JSONL file next to it.
func createLogSinks(config LoggerConfig) ([]logSink, error) {
	var sinks []logSink
	if config.Console != nil {
		sinks = append(sinks, newTextSink(config.Console))
	}

	if config.OutputFile == "" {
		return sinks, nil
	}

	if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	switch strings.ToLower(filepath.Ext(config.OutputFile)) {
	case ".jsonl":
		sink, err := newJSONLSink(config.OutputFile)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)

	case ".db", ".sqlite":
		store, err := OpenLogStore(config.OutputFile)
		if err == nil {
			sinks = append(sinks, store)
			break
		}
		fallback := strings.TrimSuffix(config.OutputFile, filepath.Ext(config.OutputFile)) + ".jsonl"
		sink, jsonlErr := newJSONLSink(fallback)
		if jsonlErr != nil {
			return nil, fmt.Errorf("all log sinks failed - SQLite: %w, JSONL: %v", err, jsonlErr)
		}
		sinks = append(sinks, sink)

	default:
		// #nosec G304 -- OutputFile validated by LoggerConfig.Validate
		file, err := os.OpenFile(config.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		sinks = append(sinks, newTextFileSink(file))
	}

	return sinks, nil
}

// textSink renders entries with Entry.Format.
type textSink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	file   *os.File // set when the sink owns the underlying file
	closed bool
}

func newTextSink(w io.Writer) *textSink {
	return &textSink{w: bufio.NewWriter(w)}
}

func newTextFileSink(file *os.File) *textSink {
	return &textSink{w: bufio.NewWriter(file), file: file}
}

func (t *textSink) Write(entries []Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("cannot write to closed text log sink")
	}
	for _, entry := range entries {
		if _, err := t.w.WriteString(entry.Format()); err != nil {
			return fmt.Errorf("failed to write log line: %w", err)
		}
	}
	return t.w.Flush()
}

func (t *textSink) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	if err := t.w.Flush(); err != nil {
		return err
	}
	if t.file != nil {
		return t.file.Sync()
	}
	return nil
}

func (t *textSink) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	err := t.w.Flush()
	if t.file != nil {
		if closeErr := t.file.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

// jsonlSink writes one JSON object per entry.
type jsonlSink struct {
	file   *os.File
	path   string
	mu     sync.Mutex
	closed bool
}

func newJSONLSink(path string) (*jsonlSink, error) {
	// #nosec G304 -- path validated by LoggerConfig.Validate
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL log file: %w", err)
	}
	return &jsonlSink{file: file, path: path}, nil
}

func (j *jsonlSink) Write(entries []Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return fmt.Errorf("cannot write to closed JSONL log sink")
	}

	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to serialize log entry: %w", err)
		}
		data = append(data, '\n')
		if _, err := j.file.Write(data); err != nil {
			return fmt.Errorf("failed to write log entry to JSONL: %w", err)
		}
	}
	return nil
}

func (j *jsonlSink) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	return j.file.Sync()
}

// Stats counts entries by scanning the file.
func (j *jsonlSink) Stats() (*LogStats, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	stats := &LogStats{
		EntriesByLevel:     make(map[string]int64),
		EntriesByComponent: make(map[string]int64),
		SchemaVersion:      1,
	}

	// #nosec G304 -- path fixed at construction
	file, err := os.Open(j.path)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to open JSONL log").
			WithContext("path", j.path)
	}
	defer func() { _ = file.Close() }()

	if info, err := file.Stat(); err == nil {
		stats.SizeBytes = info.Size()
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		stats.add(entry)
	}
	return stats, scanner.Err()
}

func (j *jsonlSink) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}

func (s *LogStats) add(entry Entry) {
	s.TotalEntries++
	s.EntriesByLevel[entry.Level.String()]++
	s.EntriesByComponent[entry.Component]++
	ts := entry.Timestamp
	if s.OldestEntry == nil || ts.Before(*s.OldestEntry) {
		s.OldestEntry = &ts
	}
	if s.NewestEntry == nil || ts.After(*s.NewestEntry) {
		newest := ts
		s.NewestEntry = &newest
	}
}

// LogQuery filters entries read back from a LogStore.
type LogQuery struct {
	MinLevel  Level     // entries below this severity are skipped
	Component string    // exact match when non-empty
	Since     time.Time // zero means no lower bound
	Limit     int       // <= 0 means 100
}

// LogStore is the SQLite log sink. It is opened by the logger for .db
// output files and by tools that inspect those files.
type LogStore struct {
	db         *sql.DB
	path       string
	insertStmt *sql.Stmt
	mu         sync.RWMutex
	closed     bool
}

const logSchemaVersion = 2

// OpenLogStore opens or creates the SQLite database at path and migrates
// its schema to the current version.
func OpenLogStore(path string) (*LogStore, error) {
	if err := ValidatePath(path); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidPath, "invalid log database path").
			WithContext("path", path)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("failed to open log database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping log database: %w", err)
	}

	store := &LogStore{db: db, path: path}
	if err := store.ensureSchemaVersion(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize log database schema: %w", err)
	}

	stmt, err := db.Prepare(`
	INSERT INTO log_entries (
		timestamp, level, severity, component, pid, goroutine_id,
		file, line, function, message, context
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare log insert statement: %w", err)
	}
	store.insertStmt = stmt

	return store, nil
}

// ensureSchemaVersion applies the migrations missing from the database.
func (s *LogStore) ensureSchemaVersion() error {
	if _, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_info (
		version INTEGER PRIMARY KEY,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("failed to create schema_info table: %w", err)
	}

	version, err := s.schemaVersion()
	if err != nil {
		return err
	}
	if version >= logSchemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	for v := version; v < logSchemaVersion; v++ {
		var stmts []string
		switch v {
		case 0:
			stmts = []string{`
			CREATE TABLE IF NOT EXISTS log_entries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				timestamp TEXT NOT NULL,
				level TEXT NOT NULL,
				component TEXT NOT NULL,
				pid INTEGER NOT NULL,
				goroutine_id INTEGER NOT NULL,
				file TEXT,
				line INTEGER,
				function TEXT,
				message TEXT NOT NULL,
				context TEXT
			);`,
				"CREATE INDEX IF NOT EXISTS idx_log_timestamp ON log_entries(timestamp)",
				"CREATE INDEX IF NOT EXISTS idx_log_level ON log_entries(level)",
			}
		case 1:
			// severity lets queries filter "this level and worse" in SQL
			stmts = []string{
				"ALTER TABLE log_entries ADD COLUMN severity INTEGER NOT NULL DEFAULT 1",
				"CREATE INDEX IF NOT EXISTS idx_log_severity_time ON log_entries(severity, timestamp)",
				"CREATE INDEX IF NOT EXISTS idx_log_component_time ON log_entries(component, timestamp)",
			}
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration to v%d failed: %w", v+1, err)
			}
		}
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO schema_info (version, updated_at) VALUES (?, CURRENT_TIMESTAMP)",
		logSchemaVersion); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}
	return nil
}

func (s *LogStore) schemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_info ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to check schema version: %w", err)
	}
	return version, nil
}

// Write inserts a batch of entries in one transaction.
func (s *LogStore) Write(entries []Entry) (err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("cannot write to closed SQLite log store")
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin log transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	txStmt := tx.Stmt(s.insertStmt)
	defer func() { _ = txStmt.Close() }()

	for _, entry := range entries {
		contextJSON := ""
		if entry.Context != nil {
			data, marshalErr := json.Marshal(entry.Context)
			if marshalErr != nil {
				return fmt.Errorf("failed to serialize entry context: %w", marshalErr)
			}
			contextJSON = string(data)
		}
		if _, err = txStmt.Exec(
			entry.Timestamp.UTC().Format(time.RFC3339Nano),
			entry.Level.String(),
			entry.Level.severity(),
			entry.Component,
			entry.PID,
			entry.GoroutineID,
			entry.File,
			entry.Line,
			entry.Function,
			entry.Message,
			contextJSON,
		); err != nil {
			return fmt.Errorf("failed to insert log entry: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit log transaction: %w", err)
	}
	return nil
}

// Flush checkpoints the WAL.
func (s *LogStore) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to flush SQLite log store: %w", err)
	}
	return nil
}

// Query returns matching entries, newest first.
func (s *LogStore) Query(q LogQuery) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.New(ErrCodeLogSinkError, "log store is closed")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT timestamp, level, component, pid, goroutine_id, file, line, function, message, context
		FROM log_entries WHERE severity >= ?`
	args := []interface{}{q.MinLevel.severity()}
	if q.Component != "" {
		query += " AND component = ?"
		args = append(args, q.Component)
	}
	if !q.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, q.Since.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeLogSinkError, "failed to query log entries")
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			entry       Entry
			ts, level   string
			contextJSON sql.NullString
		)
		if err := rows.Scan(&ts, &level, &entry.Component, &entry.PID, &entry.GoroutineID,
			&entry.File, &entry.Line, &entry.Function, &entry.Message, &contextJSON); err != nil {
			return nil, errors.Wrap(err, ErrCodeLogSinkError, "failed to scan log entry")
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			entry.Timestamp = parsed
		}
		if parsed, err := ParseLevel(level); err == nil {
			entry.Level = parsed
		}
		if contextJSON.Valid && contextJSON.String != "" {
			_ = json.Unmarshal([]byte(contextJSON.String), &entry.Context)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Stats summarizes the stored entries.
func (s *LogStore) Stats() (*LogStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.New(ErrCodeLogSinkError, "log store is closed")
	}

	stats := &LogStats{
		EntriesByLevel:     make(map[string]int64),
		EntriesByComponent: make(map[string]int64),
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM log_entries").Scan(&stats.TotalEntries); err != nil {
		return nil, fmt.Errorf("failed to count log entries: %w", err)
	}
	if err := s.groupCount("level", stats.EntriesByLevel); err != nil {
		return nil, err
	}
	if err := s.groupCount("component", stats.EntriesByComponent); err != nil {
		return nil, err
	}

	var oldest, newest sql.NullString
	if err := s.db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM log_entries").Scan(&oldest, &newest); err != nil {
		return nil, fmt.Errorf("failed to get entry time range: %w", err)
	}
	if oldest.Valid {
		if t, err := time.Parse(time.RFC3339Nano, oldest.String); err == nil {
			stats.OldestEntry = &t
		}
	}
	if newest.Valid {
		if t, err := time.Parse(time.RFC3339Nano, newest.String); err == nil {
			stats.NewestEntry = &t
		}
	}

	version, err := s.schemaVersion()
	if err != nil {
		return nil, err
	}
	stats.SchemaVersion = version

	if info, err := os.Stat(s.path); err == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}

// groupCount fills dst with COUNT(*) grouped by column (a fixed identifier).
func (s *LogStore) groupCount(column string, dst map[string]int64) error {
	rows, err := s.db.Query("SELECT " + column + ", COUNT(*) FROM log_entries GROUP BY " + column) // #nosec G202 -- column is a constant
	if err != nil {
		return fmt.Errorf("failed to group entries by %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s stats: %w", column, err)
		}
		dst[key] = count
	}
	return rows.Err()
}

// Close flushes the WAL and closes the database. It is safe to call more
// than once.
func (s *LogStore) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.insertStmt != nil {
		if err := s.insertStmt.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close insert statement: %w", err))
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing SQLite log store: %v", errs)
	}
	return nil
}
