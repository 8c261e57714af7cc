package calendar

import (
	"context"
	"log/slog"
	"time"

	"github.com/brunosj/thfradio/internal/cache"
	"github.com/brunosj/thfradio/internal/model"
)

// feedPlatform はメトリクスのplatformラベルに使うICSフィードの識別子。
const feedPlatform = "calendar"

// FetchMetrics はフィード取得結果を計測するインターフェース。
type FetchMetrics interface {
	RecordUpstreamSuccess(platform string)
	RecordUpstreamFailure(platform string)
	RecordFetchLatency(platform string, duration time.Duration)
}

// noopMetrics は計測を行わないFetchMetrics実装。
type noopMetrics struct{}

func (noopMetrics) RecordUpstreamSuccess(string) {}

func (noopMetrics) RecordUpstreamFailure(string) {}

func (noopMetrics) RecordFetchLatency(string, time.Duration) {}

// Service はスケジュールウィンドウをキャッシュ越しに提供する。
type Service struct {
	client  *Client
	cache   *cache.Cache[[]model.ScheduleEntry]
	logger  *slog.Logger
	metrics FetchMetrics
	now     func() time.Time // テスト用に差し替え可能
}

// ServiceOption はServiceの生成オプション。
type ServiceOption func(*Service)

// WithFetchMetrics はフィード取得の計測先を設定する。
func WithFetchMetrics(m FetchMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(client *Client, scheduleCache *cache.Cache[[]model.ScheduleEntry], logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		client:  client,
		cache:   scheduleCache,
		logger:  logger,
		metrics: noopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetSchedule は現在のウィンドウのスケジュールを返す。
func (s *Service) GetSchedule(ctx context.Context) ([]model.ScheduleEntry, error) {
	return s.cache.Get(ctx, s.refresh)
}

// refresh はICSフィードからウィンドウを取得し、結果を計測する。
func (s *Service) refresh(ctx context.Context) ([]model.ScheduleEntry, error) {
	start := time.Now()
	entries, err := s.client.FetchWindow(ctx)
	s.metrics.RecordFetchLatency(feedPlatform, time.Since(start))
	if err != nil {
		s.metrics.RecordUpstreamFailure(feedPlatform)
		return nil, err
	}
	s.metrics.RecordUpstreamSuccess(feedPlatform)
	return entries, nil
}

// GetLive は現在時刻に基づくライブティッカーの表示内容を返す。
func (s *Service) GetLive(ctx context.Context) (LiveStatus, error) {
	entries, err := s.GetSchedule(ctx)
	if err != nil {
		return LiveStatus{}, err
	}
	return ResolveLive(entries, s.now()), nil
}

// Bust はスケジュールキャッシュを破棄する。
func (s *Service) Bust() {
	s.cache.Bust()
}
