package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/movieshelf/internal/model"
)

// PostgresReviewRepo はPostgreSQLを使用したレビューリポジトリ。
type PostgresReviewRepo struct {
	db *sql.DB
}

// NewPostgresReviewRepo はPostgresReviewRepoを生成する。
func NewPostgresReviewRepo(db *sql.DB) *PostgresReviewRepo {
	return &PostgresReviewRepo{db: db}
}

// ListByMovieID は映画IDに紐づくレビューを作成順で返す。
func (r *PostgresReviewRepo) ListByMovieID(ctx context.Context, movieID string) ([]*model.Review, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, movie_id, user_id, username, body, created_at
		 FROM reviews
		 WHERE movie_id = $1
		 ORDER BY created_at ASC, id ASC`,
		movieID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]*model.Review, 0)
	for rows.Next() {
		review := &model.Review{}
		if err := rows.Scan(
			&review.ID, &review.MovieID, &review.UserID,
			&review.Username, &review.Body, &review.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}

	return reviews, nil
}

// FindByID は指定IDのレビューを取得する。見つからない場合はnilを返す。
// UUID形式でないIDは該当なしとして扱う。
func (r *PostgresReviewRepo) FindByID(ctx context.Context, id string) (*model.Review, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}

	review := &model.Review{}
	err = r.db.QueryRowContext(ctx,
		`SELECT id, movie_id, user_id, username, body, created_at FROM reviews WHERE id = $1`,
		parsed.String(),
	).Scan(&review.ID, &review.MovieID, &review.UserID, &review.Username, &review.Body, &review.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find review: %w", err)
	}

	return review, nil
}

// Create はレビューを作成する。
func (r *PostgresReviewRepo) Create(ctx context.Context, review *model.Review) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reviews (id, movie_id, user_id, username, body, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		review.ID, review.MovieID, review.UserID, review.Username, review.Body, review.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのレビューを削除する。
// 該当行がなくてもエラーにしない。
func (r *PostgresReviewRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`DELETE FROM reviews WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ReviewRepository = (*PostgresReviewRepo)(nil)
