package model

import "time"

// Review は映画・シリーズに対するユーザーのレビューを表す。
// Usernameは作成時点のスナップショットであり、ユーザー情報の変更には追従しない。
type Review struct {
	ID        string
	MovieID   string
	UserID    string
	Username  string
	Body      string
	CreatedAt time.Time
}

// IsOwnedBy は指定ユーザーがレビューの作成者かどうかを返す。
func (r *Review) IsOwnedBy(userID string) bool {
	return r.UserID == userID
}
