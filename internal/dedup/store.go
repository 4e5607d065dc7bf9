// Package dedup persists one fingerprint of the last spoken text per
// session, so a re-triggered dispatch cycle never repeats speech.
//
// State lives in a small SQLite database under the outloud config
// directory. Rows are bounded by an expiry sweep: fingerprints for sessions
// idle longer than the retention window are removed at open, so the store
// does not grow with the lifetime count of sessions.
package dedup

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultRetention is how long a session's fingerprint is kept after its
// last update.
const DefaultRetention = 30 * 24 * time.Hour

const schema = `
CREATE TABLE IF NOT EXISTS spoken (
	session_id  TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	updated_at  INTEGER NOT NULL
);
`

// Fingerprint returns the content hash used to detect already-spoken text.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// DefaultDBPath returns the default database path under the user's config
// directory.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "outloud", "spoken.db")
}

// Store persists per-session fingerprints. Within a session, concurrent
// dispatch cycles race last-writer-wins; duplicate speech from a lost race
// is a minor blemish, not a correctness violation.
type Store struct {
	db        *sql.DB
	retention time.Duration
}

// Open opens (creating if needed) the database at path, applies the schema,
// and evicts expired rows.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("dedup: create state dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("dedup: open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("dedup: apply schema: %w", err)
	}

	s := &Store{db: db, retention: DefaultRetention}
	if err := s.evictExpired(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored fingerprint for sessionID, if any.
func (s *Store) Get(sessionID string) (string, bool, error) {
	var fp string
	err := s.db.QueryRow(
		`SELECT fingerprint FROM spoken WHERE session_id = ?`, sessionID,
	).Scan(&fp)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("dedup: query fingerprint: %w", err)
	}
	return fp, true, nil
}

// Put stores fingerprint for sessionID, overwriting any previous value.
func (s *Store) Put(sessionID, fingerprint string) error {
	_, err := s.db.Exec(`
		INSERT INTO spoken (session_id, fingerprint, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			updated_at  = excluded.updated_at
	`, sessionID, fingerprint, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("dedup: store fingerprint: %w", err)
	}
	return nil
}

// evictExpired removes rows whose last update is older than the retention
// window. Rows written this cycle are by definition fresh and never touched.
func (s *Store) evictExpired() error {
	cutoff := time.Now().Add(-s.retention).Unix()
	if _, err := s.db.Exec(`DELETE FROM spoken WHERE updated_at < ?`, cutoff); err != nil {
		return fmt.Errorf("dedup: evict expired: %w", err)
	}
	return nil
}
