// Package cache は「失敗時は前回値を延命して返す」ポリシーの
// 汎用キャッシュを提供する。一度値が取得できたキーは、以降の
// リフレッシュが失敗し続けても呼び出し元からはエラーにならない。
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/brunosj/thfradio/internal/model"
)

// FallbackStore はプロセス外の最終手段キャッシュ層のインターフェース。
// メモリ層に値がなくリフレッシュも失敗した場合にのみ読まれ、
// リフレッシュ成功のたびに書き込まれる。
type FallbackStore[T any] interface {
	// LoadSnapshot は保存済みスナップショットとその取得時刻を返す。
	// 存在しない場合はokがfalseを返す。
	LoadSnapshot(ctx context.Context) (value T, fetchedAt time.Time, ok bool, err error)
	// SaveSnapshot はスナップショットを保存する。
	SaveSnapshot(ctx context.Context, value T) error
}

// Metrics はキャッシュ動作の計測インターフェース。
type Metrics interface {
	RecordCacheHit(name string)
	RecordCacheRefresh(name string)
	RecordCacheStaleServe(name string)
	RecordCacheMiss(name string)
}

// noopMetrics は計測を行わないMetrics実装。
type noopMetrics struct{}

func (noopMetrics) RecordCacheHit(string)        {}
func (noopMetrics) RecordCacheRefresh(string)    {}
func (noopMetrics) RecordCacheStaleServe(string) {}
func (noopMetrics) RecordCacheMiss(string)       {}

// entry はキャッシュ済みの値とその鮮度情報を保持する。
// 値の更新は構造体ごとの差し替えで行い、部分更新はしない。
type entry[T any] struct {
	value     T
	fetchedAt time.Time
	expiresAt time.Time
}

// Cache は1つのキーに対する「前回値維持」キャッシュ。
// 鮮度内の値はそのまま返し、期限切れならrefreshを呼ぶ。
// refreshが失敗した場合、前回値があれば鮮度窓を延長して返し、
// なければフォールバック層を参照する。全層が空の場合のみエラーを返す。
// 同一キーへの同時リフレッシュはsingleflightで1回にまとめる。
type Cache[T any] struct {
	name           string
	ttl            time.Duration
	staleExtension time.Duration
	logger         *slog.Logger
	metrics        Metrics
	fallback       FallbackStore[T] // nilの場合はフォールバック層なし

	mu    sync.RWMutex
	cur   *entry[T]
	group singleflight.Group
	now   func() time.Time // テスト用に差し替え可能
}

// Option はCacheの生成オプション。
type Option[T any] func(*Cache[T])

// WithFallback は最終手段キャッシュ層を設定する。
func WithFallback[T any](store FallbackStore[T]) Option[T] {
	return func(c *Cache[T]) { c.fallback = store }
}

// WithMetrics は計測先を設定する。
func WithMetrics[T any](m Metrics) Option[T] {
	return func(c *Cache[T]) { c.metrics = m }
}

// New はCacheの新しいインスタンスを生成する。
func New[T any](name string, ttl, staleExtension time.Duration, logger *slog.Logger, opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		name:           name,
		ttl:            ttl,
		staleExtension: staleExtension,
		logger:         logger,
		metrics:        noopMetrics{},
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get はキャッシュ済みの値を返す。鮮度内であればrefreshは呼ばれない。
// refreshの失敗時は前回値 → フォールバック層の順に縮退し、
// どこにも値がない場合のみエラーを返す。
func (c *Cache[T]) Get(ctx context.Context, refresh func(ctx context.Context) (T, error)) (T, error) {
	c.mu.RLock()
	cur := c.cur
	c.mu.RUnlock()

	if cur != nil && c.now().Before(cur.expiresAt) {
		c.metrics.RecordCacheHit(c.name)
		return cur.value, nil
	}

	// 同時リフレッシュを1回にまとめる
	v, err, _ := c.group.Do(c.name, func() (interface{}, error) {
		return c.refreshLocked(ctx, refresh)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// refreshLocked はリフレッシュの実行と失敗時の縮退を行う。
// singleflight経由で呼ばれるため、同一キーでは同時に1つしか走らない。
func (c *Cache[T]) refreshLocked(ctx context.Context, refresh func(ctx context.Context) (T, error)) (interface{}, error) {
	// singleflight待機中に別の呼び出しが値を入れていれば再確認する
	c.mu.RLock()
	cur := c.cur
	c.mu.RUnlock()
	if cur != nil && c.now().Before(cur.expiresAt) {
		c.metrics.RecordCacheHit(c.name)
		return cur.value, nil
	}

	value, err := refresh(ctx)
	if err == nil {
		now := c.now()
		c.mu.Lock()
		c.cur = &entry[T]{value: value, fetchedAt: now, expiresAt: now.Add(c.ttl)}
		c.mu.Unlock()
		c.metrics.RecordCacheRefresh(c.name)

		if c.fallback != nil {
			if saveErr := c.fallback.SaveSnapshot(ctx, value); saveErr != nil {
				c.logger.Warn("スナップショットの保存に失敗しました",
					slog.String("cache", c.name),
					slog.String("error", saveErr.Error()),
				)
			}
		}
		return value, nil
	}

	// 前回値があれば鮮度窓を延長して返す
	if cur != nil {
		now := c.now()
		c.mu.Lock()
		c.cur = &entry[T]{value: cur.value, fetchedAt: cur.fetchedAt, expiresAt: now.Add(c.staleExtension)}
		c.mu.Unlock()
		c.metrics.RecordCacheStaleServe(c.name)
		c.logger.Warn("リフレッシュに失敗したため前回値を延命して返します",
			slog.String("cache", c.name),
			slog.Time("fetched_at", cur.fetchedAt),
			slog.String("error", err.Error()),
		)
		return cur.value, nil
	}

	// メモリ層が空: フォールバック層を参照する
	if c.fallback != nil {
		value, fetchedAt, ok, loadErr := c.fallback.LoadSnapshot(ctx)
		if loadErr != nil {
			c.logger.Error("スナップショットの読み込みに失敗しました",
				slog.String("cache", c.name),
				slog.String("error", loadErr.Error()),
			)
		} else if ok {
			now := c.now()
			c.mu.Lock()
			c.cur = &entry[T]{value: value, fetchedAt: fetchedAt, expiresAt: now.Add(c.staleExtension)}
			c.mu.Unlock()
			c.metrics.RecordCacheStaleServe(c.name)
			c.logger.Warn("リフレッシュに失敗したためスナップショットを返します",
				slog.String("cache", c.name),
				slog.Time("fetched_at", fetchedAt),
			)
			return value, nil
		}
	}

	c.metrics.RecordCacheMiss(c.name)
	return nil, fmt.Errorf("キャッシュ %s のリフレッシュに失敗しました: %w: %w", c.name, model.ErrCacheEmpty, err)
}

// Bust はキャッシュ済みの値を破棄し、次回のGetで必ずリフレッシュさせる。
// 参照データの手動更新（タグリスト変更の反映など）に使用する。
func (c *Cache[T]) Bust() {
	c.mu.Lock()
	c.cur = nil
	c.mu.Unlock()
	c.logger.Info("キャッシュを手動で破棄しました", slog.String("cache", c.name))
}
