// Package cache persists file fingerprints keyed by stat metadata so unchanged
// files can skip hashing on later comparisons.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dirdiff/hasher"

	"github.com/djherbis/times"
	_ "modernc.org/sqlite"
)

// Key identifies one observed state of a file. A cached fingerprint is only
// reused when every field matches.
type Key struct {
	Path       string
	Algorithm  string
	Size       int64
	ModTime    int64
	ChangeTime int64
}

// KeyFor builds a Key from a stat result. ChangeTime is zero on platforms
// that do not report it.
func KeyFor(path string, info os.FileInfo, algorithm string) (Key, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Key{}, err
	}
	key := Key{
		Path:      abs,
		Algorithm: strings.ToLower(algorithm),
		Size:      info.Size(),
		ModTime:   info.ModTime().UnixNano(),
	}
	ts := times.Get(info)
	if ts.HasChangeTime() {
		key.ChangeTime = ts.ChangeTime().UnixNano()
	}
	return key, nil
}

// Store is a SQLite-backed fingerprint cache. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open initializes (or reuses) a cache database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("cache path cannot be empty")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Workers write concurrently; one connection keeps SQLite from returning
	// SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS digests (
        path TEXT NOT NULL,
        algorithm TEXT NOT NULL,
        size INTEGER NOT NULL,
        mod_time INTEGER NOT NULL,
        change_time INTEGER NOT NULL,
        digest TEXT NOT NULL,
        hashed_size INTEGER NOT NULL,
        PRIMARY KEY (path, algorithm)
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// Lookup returns the cached fingerprint for key. The boolean is false when
// no entry exists or the stored stat metadata no longer matches.
func (s *Store) Lookup(ctx context.Context, key Key) (hasher.Fingerprint, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT size, mod_time, change_time, digest, hashed_size
FROM digests WHERE path = ? AND algorithm = ?`, key.Path, key.Algorithm)

	var (
		size       int64
		modTime    int64
		changeTime int64
		digest     string
		hashedSize int64
	)
	if err := row.Scan(&size, &modTime, &changeTime, &digest, &hashedSize); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hasher.Fingerprint{}, false, nil
		}
		return hasher.Fingerprint{}, false, fmt.Errorf("lookup %s: %w", key.Path, err)
	}
	if size != key.Size || modTime != key.ModTime || changeTime != key.ChangeTime {
		return hasher.Fingerprint{}, false, nil
	}
	return hasher.Fingerprint{Digest: digest, Size: uint64(hashedSize)}, true, nil
}

// Put stores fp for key, replacing any previous entry for the same path.
func (s *Store) Put(ctx context.Context, key Key, fp hasher.Fingerprint) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO digests (path, algorithm, size, mod_time, change_time, digest, hashed_size)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(path, algorithm) DO UPDATE SET
        size = excluded.size,
        mod_time = excluded.mod_time,
        change_time = excluded.change_time,
        digest = excluded.digest,
        hashed_size = excluded.hashed_size`,
		key.Path, key.Algorithm, key.Size, key.ModTime, key.ChangeTime, fp.Digest, int64(fp.Size))
	if err != nil {
		return fmt.Errorf("store %s: %w", key.Path, err)
	}
	return nil
}

// Len returns the number of cached entries.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM digests`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count digests: %w", err)
	}
	return n, nil
}
