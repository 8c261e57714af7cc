// Package shows は2つのプラットフォームの番組カタログを統合する。
package shows

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brunosj/thfradio/internal/cache"
	"github.com/brunosj/thfradio/internal/model"
)

// SourceAdapter は1つのプラットフォームから番組一覧を取得するインターフェース。
type SourceAdapter interface {
	FetchAll(ctx context.Context) ([]model.Show, error)
}

// UpstreamMetrics はプラットフォーム別の取得結果を計測するインターフェース。
type UpstreamMetrics interface {
	RecordUpstreamSuccess(platform string)
	RecordUpstreamFailure(platform string)
	RecordFetchLatency(platform string, duration time.Duration)
}

// noopMetrics は計測を行わないUpstreamMetrics実装。
type noopMetrics struct{}

func (noopMetrics) RecordUpstreamSuccess(string) {}

func (noopMetrics) RecordUpstreamFailure(string) {}

func (noopMetrics) RecordFetchLatency(string, time.Duration) {}

// Aggregator はアーカイブとトラックホストの両プラットフォームを
// 並行に取得し、結合したカタログをキャッシュ越しに提供する。
// プラットフォーム間の重複排除は行わない。再生用のkeyは
// プラットフォーム固有であり、両方のエントリが独立に再生可能である
// 必要があるため、両方に上がっている番組は2件として扱う。
type Aggregator struct {
	archive   SourceAdapter
	trackHost SourceAdapter
	cache     *cache.Cache[[]model.Show]
	logger    *slog.Logger
	metrics   UpstreamMetrics
}

// Option はAggregatorの生成オプション。
type Option func(*Aggregator)

// WithMetrics は取得結果の計測先を設定する。
func WithMetrics(m UpstreamMetrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// NewAggregator はAggregatorの新しいインスタンスを生成する。
func NewAggregator(archive, trackHost SourceAdapter, showCache *cache.Cache[[]model.Show], logger *slog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		archive:   archive,
		trackHost: trackHost,
		cache:     showCache,
		logger:    logger,
		metrics:   noopMetrics{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetAllShows は統合カタログを返す。キャッシュが鮮度内であれば
// アップストリームへは一切アクセスしない。
func (a *Aggregator) GetAllShows(ctx context.Context) ([]model.Show, error) {
	return a.cache.Get(ctx, a.refresh)
}

// Bust はカタログキャッシュを破棄する。
func (a *Aggregator) Bust() {
	a.cache.Bust()
}

// refresh は両アダプターを並行に呼び、結果を結合する。
// 片方の失敗はそのプラットフォームの空リストに縮退させ、
// もう片方の結果だけでカタログを構成する（部分失敗）。
// 両方が失敗した場合のみエラーを返し、キャッシュ側が前回値維持を判断する。
func (a *Aggregator) refresh(ctx context.Context) ([]model.Show, error) {
	var (
		archiveShows, trackShows []model.Show
		archiveErr, trackErr     error
	)

	// 片方の失敗でもう片方を中断させないため、エラーはgoroutine外で判定する
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		archiveShows, archiveErr = a.archive.FetchAll(gctx)
		a.metrics.RecordFetchLatency(string(model.PlatformMixcloud), time.Since(start))
		if archiveErr != nil {
			a.metrics.RecordUpstreamFailure(string(model.PlatformMixcloud))
			a.logger.Warn("アーカイブプラットフォームの取得に失敗しました",
				slog.String("error", archiveErr.Error()),
			)
			return nil
		}
		a.metrics.RecordUpstreamSuccess(string(model.PlatformMixcloud))
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		trackShows, trackErr = a.trackHost.FetchAll(gctx)
		a.metrics.RecordFetchLatency(string(model.PlatformSoundcloud), time.Since(start))
		if trackErr != nil {
			a.metrics.RecordUpstreamFailure(string(model.PlatformSoundcloud))
			a.logger.Warn("トラックホストプラットフォームの取得に失敗しました",
				slog.String("error", trackErr.Error()),
			)
			return nil
		}
		a.metrics.RecordUpstreamSuccess(string(model.PlatformSoundcloud))
		return nil
	})
	_ = g.Wait() // goroutine側はエラーを返さないため常にnil

	if archiveErr != nil && trackErr != nil {
		return nil, fmt.Errorf("全プラットフォームの取得に失敗しました: %w", archiveErr)
	}

	// アーカイブプラットフォームを先頭に置く
	combined := make([]model.Show, 0, len(archiveShows)+len(trackShows))
	combined = append(combined, archiveShows...)
	combined = append(combined, trackShows...)

	a.logger.Info("番組カタログを統合しました",
		slog.Int("archive_count", len(archiveShows)),
		slog.Int("track_host_count", len(trackShows)),
		slog.Int("total", len(combined)),
	)

	return combined, nil
}
