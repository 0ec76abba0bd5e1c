package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/movieshelf/internal/model"
)

// MemorySessionRepo はプロセスメモリ上にセッションを保持するリポジトリ。
// サーバー再起動で全セッションが失われる。
type MemorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	now      func() time.Time
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]model.Session),
		now:      time.Now,
	}
}

// Create はセッションを保存する。同一IDが存在する場合は上書きする。
func (r *MemorySessionRepo) Create(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = *session
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れまたは存在しない場合はnilを返す。
func (r *MemorySessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok || session.IsExpired(r.now()) {
		return nil, nil
	}
	return &session, nil
}

// DeleteByID は指定IDのセッションを削除する。存在しない場合も成功扱い。
func (r *MemorySessionRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
func (r *MemorySessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, session := range r.sessions {
		if session.IsExpired(now) {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// Len は保持中のセッション数を返す（期限切れを含む）。
func (r *MemorySessionRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// compile-time interface check
var _ SessionRepository = (*MemorySessionRepo)(nil)
