package datasource

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/triagemap/pkg/labeling"
	"github.com/vanderheijden86/triagemap/pkg/metrics"
	"github.com/vanderheijden86/triagemap/pkg/model"
)

// ErrSessionNotFound is returned by Load for an unknown session ID.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists triage sessions to a SQLite database. Each session
// row records the active stage; each stage's commit ledger is stored as a
// serialized blob in the ledgers table.
type SessionStore struct {
	db   *sql.DB
	path string
}

// SavedSession is the persisted form of one triage session.
type SavedSession struct {
	ID      string
	Stage   model.Stage
	SavedAt time.Time
	// Ledgers holds one commit history per visited stage.
	Ledgers map[model.Stage]*labeling.History
}

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id       TEXT PRIMARY KEY,
	stage    TEXT NOT NULL,
	saved_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS ledgers (
	session_id TEXT NOT NULL,
	stage      TEXT NOT NULL,
	payload    BLOB NOT NULL,
	PRIMARY KEY (session_id, stage),
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);
`

// OpenSessionStore opens (creating if needed) the session database at path.
func OpenSessionStore(path string) (*SessionStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open session database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot enable foreign keys: %w", err)
	}
	if _, err := db.Exec(sessionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot create session schema: %w", err)
	}
	return &SessionStore{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *SessionStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save writes a session, replacing any previous row with the same ID. The
// whole write happens in one transaction so a crash never leaves a session
// with half its ledgers.
func (s *SessionStore) Save(sess SavedSession) error {
	defer metrics.Timer(metrics.SessionSave)()

	if sess.ID == "" {
		return fmt.Errorf("session id must not be empty")
	}
	if !sess.Stage.Valid() {
		return fmt.Errorf("session has invalid stage %q", sess.Stage)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	savedAt := sess.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}
	if _, err := tx.Exec(
		`INSERT INTO sessions (id, stage, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET stage = excluded.stage, saved_at = excluded.saved_at`,
		sess.ID, string(sess.Stage), savedAt,
	); err != nil {
		return fmt.Errorf("write session row: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM ledgers WHERE session_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("clear old ledgers: %w", err)
	}
	for stage, h := range sess.Ledgers {
		payload, err := labeling.Marshal(h)
		if err != nil {
			return fmt.Errorf("serialize %s ledger: %w", stage, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO ledgers (session_id, stage, payload) VALUES (?, ?, ?)`,
			sess.ID, string(stage), payload,
		); err != nil {
			return fmt.Errorf("write %s ledger: %w", stage, err)
		}
	}

	return tx.Commit()
}

// Load reads a session by ID.
func (s *SessionStore) Load(id string) (*SavedSession, error) {
	defer metrics.Timer(metrics.SessionLoad)()

	var stage string
	var savedAt time.Time
	err := s.db.QueryRow(`SELECT stage, saved_at FROM sessions WHERE id = ?`, id).Scan(&stage, &savedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read session row: %w", err)
	}

	sess := &SavedSession{
		ID:      id,
		Stage:   model.Stage(stage),
		SavedAt: savedAt,
		Ledgers: make(map[model.Stage]*labeling.History),
	}

	rows, err := s.db.Query(`SELECT stage, payload FROM ledgers WHERE session_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("read ledgers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ledgerStage string
		var payload []byte
		if err := rows.Scan(&ledgerStage, &payload); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		h, err := labeling.Unmarshal(payload)
		if err != nil {
			return nil, fmt.Errorf("deserialize %s ledger: %w", ledgerStage, err)
		}
		sess.Ledgers[model.Stage(ledgerStage)] = h
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledgers: %w", err)
	}
	return sess, nil
}

// LoadLatest reads the most recently saved session, or nil when the
// database holds none.
func (s *SessionStore) LoadLatest() (*SavedSession, error) {
	var id string
	err := s.db.QueryRow(`SELECT id FROM sessions ORDER BY saved_at DESC, id LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find latest session: %w", err)
	}
	return s.Load(id)
}

// List returns session IDs with their stages, newest first.
func (s *SessionStore) List() ([]SavedSession, error) {
	rows, err := s.db.Query(`SELECT id, stage, saved_at FROM sessions ORDER BY saved_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SavedSession
	for rows.Next() {
		var sess SavedSession
		var stage string
		if err := rows.Scan(&sess.ID, &stage, &sess.SavedAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sess.Stage = model.Stage(stage)
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return out, nil
}

// Delete removes a session and its ledgers.
func (s *SessionStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session not found: %s", id)
	}
	return nil
}
