// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/movieshelf/internal/model"
)

// ErrDuplicateUsername はユーザー名のユニーク制約違反を表す。
// 事前チェックをすり抜けた同時登録もこのエラーに変換される。
var ErrDuplicateUsername = errors.New("duplicate username")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。
	// ユーザー名が既に存在する場合はErrDuplicateUsernameを返す。
	Create(ctx context.Context, user *model.User) error
}

// ReviewRepository はレビューデータの永続化インターフェース。
type ReviewRepository interface {
	// ListByMovieID は映画IDに紐づくレビューを作成順（created_at, id）で返す。
	// 該当がない場合は空スライスを返す。
	ListByMovieID(ctx context.Context, movieID string) ([]*model.Review, error)

	// FindByID は指定IDのレビューを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Review, error)

	// Create はレビューを作成する。
	Create(ctx context.Context, review *model.Review) error

	// DeleteByID は指定IDのレビューを削除する。存在しない場合も成功扱い。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
