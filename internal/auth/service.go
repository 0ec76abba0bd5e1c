// Package auth はユーザー登録、ログイン、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/movieshelf/internal/model"
	"github.com/hitoshi/movieshelf/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // 0の場合はbcrypt.DefaultCost
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
		now:         time.Now,
	}
}

// Register は新規ユーザーを登録する。
// ユーザー名が既に使われている場合はDUPLICATE_USERNAMEを返す。
// 事前チェックと同時に登録された場合もユニーク制約違反から同じエラーに変換する。
func (s *Service) Register(ctx context.Context, username, password string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, model.NewInvalidRequestError("username and password are required")
	}

	// 1. 既存ユーザーの確認
	existing, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateUsernameError(username)
	}

	// 2. パスワードのハッシュ化
	hashed, err := hashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	// 3. ユーザー作成
	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, model.NewDuplicateUsernameError(username)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Login はユーザー名とパスワードを検証し、セッションを発行する。
// ユーザーが存在しない場合とパスワード不一致の場合は同じエラーを返す。
func (s *Service) Login(ctx context.Context, username, password string) (*model.Session, error) {
	if username == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !checkPassword(password, user.PasswordHash) {
		slog.Info("login rejected", slog.String("username", username))
		return nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return session, nil
}

// Logout はセッションを破棄する。
// セッションIDが空、または既に存在しない場合もエラーにしない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// Authenticate は有効なセッションを返す。
// セッションが存在しない、または期限切れの場合はUNAUTHENTICATEDを返す。
func (s *Service) Authenticate(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.IsExpired(s.now()) {
		return nil, model.NewUnauthenticatedError()
	}

	return session, nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	session, err := s.Authenticate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, user *model.User) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
