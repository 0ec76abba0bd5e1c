package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// hashPassword はbcryptでパスワードをハッシュ化する。
// costが0以下の場合はbcrypt.DefaultCost（10）を使用する。
func hashPassword(password string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// checkPassword は平文パスワードとハッシュが一致するかを返す。
func checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
