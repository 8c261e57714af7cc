// Package refresh はキャッシュのバックグラウンドリフレッシュ処理を提供する。
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Target はリフレッシュ対象1つを表す。
// Refreshはキャッシュ経由の取得関数で、鮮度内なら何もしない。
// 失敗時の再試行は行わない。キャッシュ側が前回値を延命するため、
// 次の自然なサイクルまで待つのが方針であり、
// 苦しんでいるアップストリームを連打しない。
type Target struct {
	Name    string
	Refresh func(ctx context.Context) error
}

// Scheduler はティッカー駆動で各キャッシュのリフレッシュを実行する。
// キャッシュのTTLが切れたサイクルでだけ実際のアップストリーム取得が走り、
// それ以外のサイクルは鮮度内ヒットで即座に終わる。
type Scheduler struct {
	targets []Target
	logger  *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(logger *slog.Logger, targets ...Target) *Scheduler {
	return &Scheduler{
		targets: targets,
		logger:  logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("リフレッシュスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("target_count", len(s.targets)),
	)

	// 起動直後に1回実行し、コールドスタートのキャッシュを温める
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("リフレッシュスケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は全ターゲットのリフレッシュを並行に1回実行する。
// 個々の失敗はログに留め、他のターゲットには影響させない。
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()

	var wg sync.WaitGroup
	for _, target := range s.targets {
		wg.Add(1)
		go func(t Target) {
			defer wg.Done()

			if err := t.Refresh(ctx); err != nil {
				s.logger.Error("キャッシュのリフレッシュに失敗しました",
					slog.String("target", t.Name),
					slog.String("error", err.Error()),
				)
				return
			}
		}(target)
	}
	wg.Wait()

	s.logger.Info("リフレッシュサイクルが完了しました",
		slog.Duration("elapsed", time.Since(start)),
	)
}
