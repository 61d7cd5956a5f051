package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opposia/waitlist/internal/config"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS kv_store (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`,
}

// Libsql is a Store backed by a libsql/Turso database (local file, memory or
// remote URL).
type Libsql struct {
	DB *sql.DB
}

// OpenLibsql opens the database, verifies connectivity and applies the schema.
func OpenLibsql(ctx context.Context, cfg config.StoreConfig) (*Libsql, error) {
	dsn, err := buildLibsqlDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(DriverLibsql, dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping libsql store: %w", err)
	}

	// Local databases (including per-connection :memory:) take one writer.
	if strings.TrimSpace(cfg.URL) == "" {
		db.SetMaxOpenConns(1)
	}

	store := &Libsql{DB: db}
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Migrate ensures the required database tables exist.
func (s *Libsql) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}
	return nil
}

func (s *Libsql) Set(ctx context.Context, key string, value []byte) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}
	if err := validateKey(key); err != nil {
		return err
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(value), time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	return nil
}

func (s *Libsql) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	if s == nil || s.DB == nil {
		return false, ErrNotInitialized
	}
	if err := validateKey(key); err != nil {
		return false, err
	}

	result, err := s.DB.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, key, string(value), time.Now().UTC().Unix())
	if err != nil {
		return false, fmt.Errorf("conditional write: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("conditional write result: %w", err)
	}
	return affected == 1, nil
}

func (s *Libsql) Delete(ctx context.Context, key string) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	return nil
}

func (s *Libsql) GetByPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	if s == nil || s.DB == nil {
		return nil, ErrNotInitialized
	}

	// Rows come back in key order, so the scan ends at the first key
	// outside the prefix.
	rows, err := s.DB.QueryContext(ctx, `
		SELECT key, value FROM kv_store
		WHERE key >= ?
		ORDER BY key
	`, prefix)
	if err != nil {
		return nil, fmt.Errorf("scan prefix: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var entries []Entry
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan prefix row: %w", err)
		}
		if !strings.HasPrefix(key, prefix) {
			break
		}
		entries = append(entries, Entry{Key: key, Value: []byte(value)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan prefix rows: %w", err)
	}
	return entries, nil
}

func (s *Libsql) Ping(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}
	return s.DB.PingContext(ctx)
}

// Close releases database resources.
func (s *Libsql) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func (s *Libsql) Driver() string {
	return DriverLibsql
}

func buildLibsqlDSN(cfg config.StoreConfig) (string, error) {
	if dsn := strings.TrimSpace(cfg.URL); dsn != "" {
		return addAuthToken(dsn, cfg.AuthToken)
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", errors.New("store path or url is required")
	}

	if path == ":memory:" {
		return path, nil
	}

	if strings.HasPrefix(path, "file:") {
		localPath, err := extractFilePath(path)
		if err != nil {
			return "", err
		}
		if err := ensureStoreDir(localPath); err != nil {
			return "", err
		}
		return path, nil
	}

	if strings.HasPrefix(path, "libsql:") {
		return path, nil
	}

	if err := ensureStoreDir(path); err != nil {
		return "", err
	}
	return "file:" + filepath.Clean(path), nil
}

func addAuthToken(dsn string, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}

	query := parsed.Query()
	if query.Get("authToken") == "" {
		query.Set("authToken", token)
		parsed.RawQuery = query.Encode()
	}

	return parsed.String(), nil
}

func extractFilePath(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}

	if parsed.Path != "" {
		return strings.TrimPrefix(parsed.Path, "//"), nil
	}

	return strings.TrimPrefix(parsed.Opaque, "//"), nil
}

func ensureStoreDir(path string) error {
	if strings.TrimSpace(path) == "" || path == ":memory:" {
		return nil
	}

	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}

	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
