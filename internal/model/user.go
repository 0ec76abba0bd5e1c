package model

import "time"

// User はサービス利用ユーザーを表す。
// 登録後は不変として扱う（ユーザー名変更・パスワードリセットのフローは存在しない）。
type User struct {
	ID           string
	Username     string
	PasswordHash string // bcryptハッシュ。平文パスワードは保持しない
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
// プロセスメモリ上にのみ保持され、サーバー再起動で全セッションが無効になる。
type Session struct {
	ID        string
	UserID    string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired は指定時刻においてセッションが期限切れかどうかを返す。
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
