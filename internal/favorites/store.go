// Package favorites はクライアントローカルのお気に入り（作品IDの一覧）を管理する。
// お気に入りはサーバーに送信されず、セッションやレビューとは関係を持たない。
package favorites

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/hitoshi/movieshelf/internal/model"
)

// Key はお気に入り一覧を保存するキー。
const Key = "movie-id"

// Store はお気に入りIDの一覧を読み書きする。
// 追加は未登録のIDに限るため、書き込みで重複は生じない。
type Store struct {
	storage Storage
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewStore はStoreを生成する。
func NewStore(storage Storage, logger *slog.Logger) *Store {
	return &Store{
		storage: storage,
		logger:  logger,
	}
}

// List は保存順のお気に入りIDを返す。
// 値が存在しない、または読み取れない場合は空の一覧を返す。
func (s *Store) List(ctx context.Context) ([]string, error) {
	return s.read(ctx)
}

// Contains はIDがお気に入りに含まれるかを返す。
func (s *Store) Contains(ctx context.Context, id string) (bool, error) {
	ids, err := s.read(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, id), nil
}

// Toggle はIDのお気に入り状態を反転し、反転後の状態を返す。
// 含まれていない場合は末尾に追加し、含まれている場合はすべての出現を削除する。
func (s *Store) Toggle(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.read(ctx)
	if err != nil {
		return false, err
	}
	if slices.Contains(ids, id) {
		return false, s.write(ctx, slices.DeleteFunc(ids, func(e string) bool { return e == id }))
	}
	return true, s.write(ctx, append(ids, id))
}

// read はストレージから一覧を読み取る。
// 壊れた値は警告ログを出して空として扱う。
func (s *Store) read(ctx context.Context) ([]string, error) {
	raw, found, err := s.storage.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("failed to read favorites: %w", err)
	}
	if !found {
		return []string{}, nil
	}

	ids, err := decodeIDs(raw)
	if err != nil {
		apiErr := model.NewMalformedLocalStateError(Key)
		s.logger.Warn(apiErr.Message,
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()),
		)
		return []string{}, nil
	}
	return ids, nil
}

func (s *Store) write(ctx context.Context, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode favorites: %w", err)
	}
	if err := s.storage.Set(ctx, Key, string(data)); err != nil {
		return fmt.Errorf("failed to write favorites: %w", err)
	}
	return nil
}

// decodeIDs はJSON配列をID一覧に変換する。
// nullは空の一覧、数値の要素は文字列として扱う。
func decodeIDs(raw string) ([]string, error) {
	var values []any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		switch e := v.(type) {
		case string:
			ids = append(ids, e)
		case float64:
			ids = append(ids, strconv.FormatFloat(e, 'f', -1, 64))
		default:
			return nil, fmt.Errorf("unexpected element %v (%T)", v, v)
		}
	}
	return ids, nil
}
