// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// セッションはプロセスメモリ上にのみ保持されるため、
// 期限切れのエントリを放置すると長時間稼働でメモリを圧迫する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッションを削除するインターフェース。
// repository.MemorySessionRepoが満たす。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
	// Len は削除後に残っているセッション数を返す。
	Len() int
}

// PurgeRecorder は削除件数をメトリクスに記録するインターフェース。
type PurgeRecorder interface {
	RecordSessionsPurged(count int64)
}

// CleanupJob は期限切れセッションの削除ジョブ。
// 冪等であり、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	purger   SessionPurger
	recorder PurgeRecorder
	logger   *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
// recorderはnilでもよい。
func NewCleanupJob(purger SessionPurger, recorder PurgeRecorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		purger:   purger,
		recorder: recorder,
		logger:   logger,
	}
}

// Run は期限切れセッションを1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.purger.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordSessionsPurged(deletedCount)
	}

	duration := time.Since(start)
	level := slog.LevelDebug
	if deletedCount > 0 {
		level = slog.LevelInfo
	}
	j.logger.Log(ctx, level, "セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("active_count", j.purger.Len()),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start はinterval間隔でRunを繰り返す。
// コンテキストがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッションクリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			// エラーはRun内でログ出力済み。次のサイクルで再試行する
			_ = j.Run(ctx)
		}
	}
}
