// Package cleanup は期限切れデータの定期削除ジョブを提供する。
// 有効期限を過ぎたログインセッションの削除と、一定時間結果が返らない
// 保留中チェックアウトの打ち切りを行う。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッションを削除する。
type SessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CheckoutExpirer はmaxAgeより古い保留中チェックアウトをexpiredにする。
type CheckoutExpirer interface {
	ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

// CleanupJob は期限切れデータの削除ジョブ。
// 何度実行しても結果が変わらない冪等な処理として設計されている。
type CleanupJob struct {
	sessions       SessionPurger
	checkouts      CheckoutExpirer
	logger         *slog.Logger
	CheckoutExpiry time.Duration // 保留中チェックアウトを打ち切るまでの時間（デフォルト: 24時間）
	now            func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions SessionPurger, checkouts CheckoutExpirer, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions:       sessions,
		checkouts:      checkouts,
		logger:         logger,
		CheckoutExpiry: 24 * time.Hour,
		now:            time.Now,
	}
}

// Run はセッション削除とチェックアウト打ち切りを1回実行する。
// 一方が失敗してももう一方は実行し、両方のエラーをまとめて返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	var errs []error

	deleted, err := j.sessions.DeleteExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		errs = append(errs, fmt.Errorf("failed to delete expired sessions: %w", err))
	}

	expired, err := j.checkouts.ExpireStale(ctx, j.CheckoutExpiry)
	if err != nil {
		j.logger.Error("保留中チェックアウトの打ち切りに失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("checkout_expiry", j.CheckoutExpiry),
		)
		errs = append(errs, fmt.Errorf("failed to expire stale checkouts: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", deleted),
		slog.Int64("expired_checkouts", expired),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はinterval間隔でRunを繰り返す。起動直後に1回実行する。
// コンテキストがキャンセルされるまで戻らない。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	j.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *CleanupJob) runLogged(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
