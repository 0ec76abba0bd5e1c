package discover

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded は同じ種類の新しいアクションが開始されたため、結果が破棄されたことを示す。
var ErrSuperseded = errors.New("discover: superseded by a newer action")

// ActionTracker はUIアクションごとにキャンセル可能なコンテキストを払い出す。
// 同じ種類のアクションを新たに開始すると、実行中の古いアクションはキャンセルされる。
type ActionTracker struct {
	mu      sync.Mutex
	seq     map[string]uint64
	cancels map[string]context.CancelFunc
}

// NewActionTracker はActionTrackerを生成する。
func NewActionTracker() *ActionTracker {
	return &ActionTracker{
		seq:     make(map[string]uint64),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Action は実行中のUIアクション。
type Action struct {
	ctx     context.Context
	cancel  context.CancelFunc
	tracker *ActionTracker
	kind    string
	seq     uint64
}

// Begin は種類kindのアクションを開始する。同じ種類の実行中アクションはキャンセルされる。
// 呼び出し元は完了後に必ずDoneを呼ぶこと。
func (t *ActionTracker) Begin(parent context.Context, kind string) *Action {
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.cancels[kind]; ok {
		prev()
	}
	t.seq[kind]++
	t.cancels[kind] = cancel

	return &Action{
		ctx:     ctx,
		cancel:  cancel,
		tracker: t,
		kind:    kind,
		seq:     t.seq[kind],
	}
}

// Context はアクションのコンテキストを返す。
func (a *Action) Context() context.Context {
	return a.ctx
}

// Current はこのアクションが同じ種類の最新のアクションかどうかを返す。
func (a *Action) Current() bool {
	a.tracker.mu.Lock()
	defer a.tracker.mu.Unlock()
	return a.tracker.seq[a.kind] == a.seq
}

// Done はアクションのコンテキストを解放する。
func (a *Action) Done() {
	a.cancel()

	a.tracker.mu.Lock()
	defer a.tracker.mu.Unlock()
	if a.tracker.seq[a.kind] == a.seq {
		delete(a.tracker.cancels, a.kind)
	}
}

// Track はfnを種類kindのアクションとして実行する。
// fnの完了時に新しいアクションが開始されていた場合、結果を破棄してErrSupersededを返す。
func Track[T any](t *ActionTracker, parent context.Context, kind string, fn func(ctx context.Context) (T, error)) (T, error) {
	action := t.Begin(parent, kind)
	defer action.Done()

	result, err := fn(action.Context())
	if !action.Current() {
		var zero T
		return zero, ErrSuperseded
	}
	return result, err
}
