package favorites

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Storage はクライアントローカルのキー・バリューストア。
// 存在しないキーはfound=falseで返し、エラーにしない。
type Storage interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// SQLiteStorage はSQLiteファイルに保存するStorage実装。
type SQLiteStorage struct {
	db *sql.DB
}

// OpenSQLite はpathのSQLiteデータベースを開き、テーブルを作成する。
// pathが":memory:"の場合はプロセス内メモリに保持する。
func OpenSQLite(path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// :memory:は接続ごとに別のDBになるため接続を1本に固定する
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Get はキーの値を返す。
func (s *SQLiteStorage) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// Set はキーの値を保存する。既存の値は上書きする。
func (s *SQLiteStorage) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete はキーを削除する。存在しない場合もエラーにしない。
func (s *SQLiteStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close はデータベースを閉じる。
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// MemoryStorage はプロセスメモリに保持するStorage実装。
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage はMemoryStorageを生成する。
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

// Get はkeyの値を返す。存在しない場合はfalseを返す。
func (m *MemoryStorage) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set はkeyに値を保存する。
func (m *MemoryStorage) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete はkeyを削除する。存在しない場合も成功扱い。
func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

var (
	_ Storage = (*SQLiteStorage)(nil)
	_ Storage = (*MemoryStorage)(nil)
)
