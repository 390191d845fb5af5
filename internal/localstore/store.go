// Package localstore is the client's on-disk state: one JSON blob per
// dataset, the login credential and per-dataset sync bookkeeping, all in a
// single sqlite file.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	keyToken    = "auth_token"
	keyUser     = "auth_user"
	keyDeviceID = "device_id"
)

const MemoryPath = ":memory:"

type Store struct {
	db *sqlx.DB
}

// Open creates or opens the store at path. MemoryPath gives a private
// in-memory store.
func Open(path string) (*Store, error) {
	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	// One connection keeps ":memory:" a single database and serialises writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS datasets (
			data_type TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sync_state (
			data_type TEXT PRIMARY KEY,
			last_sync TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the blob stored for dataType. A missing blob and a blob that
// is not valid JSON both report ok=false.
func (s *Store) Get(ctx context.Context, dataType string) (json.RawMessage, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM datasets WHERE data_type = ?`, dataType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", dataType, err)
	}

	if !json.Valid([]byte(value)) {
		return nil, false, nil
	}
	return json.RawMessage(value), true, nil
}

func (s *Store) Put(ctx context.Context, dataType string, value json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO datasets (data_type, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(data_type) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		dataType, string(value), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", dataType, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, dataType string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE data_type = ?`, dataType); err != nil {
		return fmt.Errorf("delete %s: %w", dataType, err)
	}
	return nil
}

type datasetRow struct {
	DataType  string `db:"data_type"`
	UpdatedAt string `db:"updated_at"`
}

// Keys lists stored datasets with the time each was last written locally.
func (s *Store) Keys(ctx context.Context) (map[string]time.Time, error) {
	var rows []datasetRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT data_type, updated_at FROM datasets ORDER BY data_type`); err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}

	out := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		t, _ := parseTime(r.UpdatedAt)
		out[r.DataType] = t
	}
	return out, nil
}

func (s *Store) value(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM kv WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) setValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *Store) deleteValue(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Token returns the stored bearer credential, or "" when logged out.
func (s *Store) Token(ctx context.Context) (string, error) {
	return s.value(ctx, keyToken)
}

// SaveLogin stores the credential together with the raw user profile the
// server returned.
func (s *Store) SaveLogin(ctx context.Context, token string, user json.RawMessage) error {
	if err := s.setValue(ctx, keyToken, token); err != nil {
		return err
	}
	if len(user) > 0 {
		return s.setValue(ctx, keyUser, string(user))
	}
	return nil
}

func (s *Store) User(ctx context.Context) (json.RawMessage, error) {
	v, err := s.value(ctx, keyUser)
	if err != nil || v == "" {
		return nil, err
	}
	return json.RawMessage(v), nil
}

// Logout forgets the credential and every recorded sync time; the datasets
// themselves stay.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.deleteValue(ctx, keyToken); err != nil {
		return err
	}
	if err := s.deleteValue(ctx, keyUser); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_state`); err != nil {
		return fmt.Errorf("clear sync state: %w", err)
	}
	return nil
}

// DeviceID returns a stable identifier for this installation, generating
// one with gen on first use.
func (s *Store) DeviceID(ctx context.Context, gen func() string) (string, error) {
	id, err := s.value(ctx, keyDeviceID)
	if err != nil || id != "" {
		return id, err
	}
	id = gen()
	if err := s.setValue(ctx, keyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) LastSync(ctx context.Context, dataType string) (*time.Time, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, `SELECT last_sync FROM sync_state WHERE data_type = ?`, dataType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read last sync for %s: %w", dataType, err)
	}

	t, err := parseTime(raw)
	if err != nil {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) SetLastSync(ctx context.Context, dataType string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_state (data_type, last_sync) VALUES (?, ?)
		ON CONFLICT(data_type) DO UPDATE SET last_sync = excluded.last_sync`,
		dataType, formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("write last sync for %s: %w", dataType, err)
	}
	return nil
}

type syncRow struct {
	DataType string `db:"data_type"`
	LastSync string `db:"last_sync"`
}

func (s *Store) LastSyncs(ctx context.Context) (map[string]time.Time, error) {
	var rows []syncRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT data_type, last_sync FROM sync_state`); err != nil {
		return nil, fmt.Errorf("list sync state: %w", err)
	}

	out := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		if t, err := parseTime(r.LastSync); err == nil {
			out[r.DataType] = t
		}
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
