package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sudohist/internal/history"
)

// Schema for the sudohist index.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id           TEXT PRIMARY KEY,
    user         TEXT NOT NULL,
    histfile     TEXT NOT NULL,
    started_ns   INTEGER NOT NULL,
    ended_ns     INTEGER,
    exit_status  INTEGER,
    errno        INTEGER
);

CREATE TABLE IF NOT EXISTS entries (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id    TEXT REFERENCES sessions(id),
    timestamp_ns  INTEGER NOT NULL,
    prefix        TEXT NOT NULL,
    content       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_timestamp ON entries(timestamp_ns);
CREATE INDEX IF NOT EXISTS idx_entries_session ON entries(session_id, timestamp_ns);
`

// DefaultBusyTimeout is used when Open is given a non-positive timeout.
const DefaultBusyTimeout = 5 * time.Second

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("store: session not found")

// Store represents the SQLite history index.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path and applies the
// schema. Concurrent sessions serialize on the busy timeout.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	if busyTimeout <= 0 {
		busyTimeout = DefaultBusyTimeout
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d", path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InsertSession records the start of a session.
func (s *Store) InsertSession(sess *Session) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, user, histfile, started_ns)
		VALUES (?, ?, ?, ?)`,
		sess.ID, sess.User, sess.Histfile, sess.StartedNs,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// EndSession records how a session finished.
func (s *Store) EndSession(id string, endedNs int64, exitStatus, errno int) error {
	result, err := s.db.Exec(`
		UPDATE sessions SET ended_ns = ?, exit_status = ?, errno = ?
		WHERE id = ?`,
		endedNs, exitStatus, errno, id,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// GetSession retrieves a session by id.
func (s *Store) GetSession(id string) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT id, user, histfile, started_ns, ended_ns, exit_status, errno
		FROM sessions WHERE id = ?`, id)

	var (
		sess       Session
		endedNs    sql.NullInt64
		exitStatus sql.NullInt64
		errno      sql.NullInt64
	)
	err := row.Scan(&sess.ID, &sess.User, &sess.Histfile, &sess.StartedNs, &endedNs, &exitStatus, &errno)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if endedNs.Valid {
		sess.EndedNs = &endedNs.Int64
	}
	if exitStatus.Valid {
		v := int(exitStatus.Int64)
		sess.ExitStatus = &v
	}
	if errno.Valid {
		v := int(errno.Int64)
		sess.Errno = &v
	}
	return &sess, nil
}

// InsertEntry indexes one history line and returns its id. An empty session
// id stores NULL, which is how imported lines are kept.
func (s *Store) InsertEntry(e *Entry) (int64, error) {
	var sessionID any
	if e.SessionID != "" {
		sessionID = e.SessionID
	}

	result, err := s.db.Exec(`
		INSERT INTO entries (session_id, timestamp_ns, prefix, content)
		VALUES (?, ?, ?, ?)`,
		sessionID, e.TimestampNs, e.Prefix, e.Content,
	)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	return id, nil
}

// InsertEntries indexes many lines in one transaction.
func (s *Store) InsertEntries(entries []Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO entries (session_id, timestamp_ns, prefix, content)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		var sessionID any
		if e.SessionID != "" {
			sessionID = e.SessionID
		}
		if _, err := stmt.Exec(sessionID, e.TimestampNs, e.Prefix, e.Content); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// EntriesForSession returns a session's lines in insertion order.
func (s *Store) EntriesForSession(sessionID string) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, COALESCE(session_id, ''), timestamp_ns, prefix, content
		FROM entries WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Search returns lines whose content contains substr, newest first. A
// non-positive limit returns every match.
func (s *Store) Search(substr string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(`
		SELECT id, COALESCE(session_id, ''), timestamp_ns, prefix, content
		FROM entries WHERE instr(content, ?) > 0
		ORDER BY timestamp_ns DESC, id DESC LIMIT ?`, substr, limit)
	if err != nil {
		return nil, fmt.Errorf("search entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// CountEntries returns the number of indexed lines.
func (s *Store) CountEntries() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.TimestampNs, &e.Prefix, &e.Content); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Mirror returns a history.Mirror that indexes every line under sessionID.
func (s *Store) Mirror(sessionID string) history.Mirror {
	return &sessionMirror{store: s, sessionID: sessionID}
}

type sessionMirror struct {
	store     *Store
	sessionID string
}

func (m *sessionMirror) Record(e history.Entry) error {
	_, err := m.store.InsertEntry(&Entry{
		SessionID:   m.sessionID,
		TimestampNs: e.Time.UnixNano(),
		Prefix:      e.Prefix,
		Content:     e.Content,
	})
	return err
}
