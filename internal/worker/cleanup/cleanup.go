// Package cleanup は失効済みセッショントークンの定期削除ジョブを提供する。
// 期限切れのトークンは署名検証の段階で拒否されるため、失効リストから削除しても安全。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Purger は期限切れの失効レコードを削除するインターフェース。
// repository.RevocationRepositoryが実装する。
type Purger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// PurgeRecorder は削除件数をメトリクスに記録するインターフェース。
type PurgeRecorder interface {
	RecordRevokedTokensPurged(count int64)
}

// CleanupJob は期限切れの失効レコードを削除するジョブ。
// 冪等で、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	purger   Purger
	recorder PurgeRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでよい。
func NewCleanupJob(purger Purger, recorder PurgeRecorder, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		purger:   purger,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Run は現在時刻より前に期限切れとなった失効レコードを削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.purger.DeleteExpired(ctx, j.now().UTC())
	if err != nil {
		j.logger.Error("revoked token cleanup failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to purge revoked tokens: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordRevokedTokensPurged(deleted)
	}
	j.logger.Info("revoked token cleanup completed",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はintervalごとにRunを実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("cleanup worker started", slog.Duration("interval", interval))

	// 失敗はRun内でログ出力済みのため、次の周期で再試行する
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
