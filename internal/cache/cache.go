// Package cache keeps recent catalog listings (assets, bridges) per rollup network in
// a local sqlite file so repeated lookups skip the rollup provider and the L1 contract.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// retention is how long an expired listing is kept around as a stale fallback.
const retention = 7 * 24 * time.Hour

// Key identifies one listing on one network.
type Key struct {
	ChainID int64
	Command string
	Digest  string
}

// NewKey scopes a listing request to one rollup deployment, so switching networks
// never serves another chain's assets or bridges.
func NewKey(chainID int64, command string, req any) Key {
	buf, _ := json.Marshal(req)
	sum := sha256.Sum256(buf)
	return Key{ChainID: chainID, Command: command, Digest: hex.EncodeToString(sum[:])}
}

type Store struct {
	db   *sql.DB
	lock *flock.Flock
	now  func() time.Time
}

// Result is a cache lookup. Stale entries are still returned so the caller can
// decide whether to fall back on them.
type Result struct {
	Hit   bool
	Value []byte
	Age   time.Duration
	Stale bool
}

func Open(path, lockPath string) (*Store, error) {
	for _, dir := range []string{filepath.Dir(path), filepath.Dir(lockPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS listings (
			chain_id INTEGER NOT NULL,
			command TEXT NOT NULL,
			digest TEXT NOT NULL,
			value BLOB NOT NULL,
			fetched_at_ms INTEGER NOT NULL,
			ttl_ms INTEGER NOT NULL,
			PRIMARY KEY (chain_id, command, digest)
		);`,
	}
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init cache schema: %w", err)
		}
	}

	store := &Store{db: db, lock: flock.New(lockPath), now: time.Now}
	_ = store.Prune()
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Prune drops listings that expired more than a week ago.
func (s *Store) Prune() error {
	if s == nil || s.db == nil {
		return nil
	}
	cutoff := s.now().Add(-retention).UnixMilli()
	if _, err := s.db.Exec("DELETE FROM listings WHERE fetched_at_ms + ttl_ms < ?", cutoff); err != nil {
		return fmt.Errorf("prune cache: %w", err)
	}
	return nil
}

// Get returns the listing for key. maxStale only bounds how long past its TTL an
// entry is still reported; anything older is a miss.
func (s *Store) Get(key Key, maxStale time.Duration) (Result, error) {
	var (
		value     []byte
		fetchedMS int64
		ttlMS     int64
	)
	err := s.db.QueryRow(
		"SELECT value, fetched_at_ms, ttl_ms FROM listings WHERE chain_id = ? AND command = ? AND digest = ?",
		key.ChainID, key.Command, key.Digest,
	).Scan(&value, &fetchedMS, &ttlMS)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("cache read: %w", err)
	}

	age := s.now().Sub(time.UnixMilli(fetchedMS))
	if age < 0 {
		age = 0
	}
	ttl := time.Duration(ttlMS) * time.Millisecond
	if maxStale >= 0 && age > ttl+maxStale {
		return Result{}, nil
	}
	return Result{Hit: true, Value: value, Age: age, Stale: age > ttl}, nil
}

// Put stores the JSON encoding of value under key.
func (s *Store) Put(key Key, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if ttl < time.Second {
		ttl = time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	locked, err := s.lock.TryLockContext(ctx, 20*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock cache: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock cache: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	_, err = s.db.Exec(`
		INSERT INTO listings (chain_id, command, digest, value, fetched_at_ms, ttl_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chain_id, command, digest) DO UPDATE SET
			value=excluded.value,
			fetched_at_ms=excluded.fetched_at_ms,
			ttl_ms=excluded.ttl_ms
	`, key.ChainID, key.Command, key.Digest, payload, s.now().UnixMilli(), ttl.Milliseconds())
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}
