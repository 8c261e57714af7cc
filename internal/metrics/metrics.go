// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// アダプターやワーカー、キャッシュ層から利用する。
type MetricsCollector interface {
	RecordUpstreamSuccess(platform string)
	RecordUpstreamFailure(platform string)
	RecordRecordSkipped(platform string)
	RecordFetchLatency(platform string, duration time.Duration)
	RecordCacheHit(name string)
	RecordCacheRefresh(name string)
	RecordCacheStaleServe(name string)
	RecordCacheMiss(name string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamSuccess *prometheus.CounterVec
	upstreamFailure *prometheus.CounterVec
	recordsSkipped  *prometheus.CounterVec
	fetchLatency    *prometheus.HistogramVec
	cacheHit        *prometheus.CounterVec
	cacheRefresh    *prometheus.CounterVec
	cacheStaleServe *prometheus.CounterVec
	cacheMiss       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thfradio_upstream_fetch_success_total",
			Help: "アップストリーム取得成功の合計数",
		}, []string{"platform"}),
		upstreamFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thfradio_upstream_fetch_failure_total",
			Help: "アップストリーム取得失敗の合計数",
		}, []string{"platform"}),
		recordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thfradio_records_skipped_total",
			Help: "不正データとしてスキップされたレコードの合計数",
		}, []string{"platform"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "thfradio_upstream_fetch_latency_seconds",
			Help:    "アップストリーム取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform"}),
		cacheHit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thfradio_cache_hit_total",
			Help: "鮮度内キャッシュヒットの合計数",
		}, []string{"cache"}),
		cacheRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thfradio_cache_refresh_total",
			Help: "キャッシュリフレッシュ成功の合計数",
		}, []string{"cache"}),
		cacheStaleServe: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thfradio_cache_stale_serve_total",
			Help: "リフレッシュ失敗により前回値を延命して返した合計数",
		}, []string{"cache"}),
		cacheMiss: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thfradio_cache_miss_total",
			Help: "全キャッシュ層が空だった合計数",
		}, []string{"cache"}),
	}

	reg.MustRegister(
		c.upstreamSuccess,
		c.upstreamFailure,
		c.recordsSkipped,
		c.fetchLatency,
		c.cacheHit,
		c.cacheRefresh,
		c.cacheStaleServe,
		c.cacheMiss,
	)

	return c
}

// RecordUpstreamSuccess はアップストリーム取得成功を記録する。
func (c *Collector) RecordUpstreamSuccess(platform string) {
	c.upstreamSuccess.WithLabelValues(platform).Inc()
}

// RecordUpstreamFailure はアップストリーム取得失敗を記録する。
func (c *Collector) RecordUpstreamFailure(platform string) {
	c.upstreamFailure.WithLabelValues(platform).Inc()
}

// RecordRecordSkipped は不正レコードのスキップを記録する。
func (c *Collector) RecordRecordSkipped(platform string) {
	c.recordsSkipped.WithLabelValues(platform).Inc()
}

// RecordFetchLatency はアップストリーム取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(platform string, duration time.Duration) {
	c.fetchLatency.WithLabelValues(platform).Observe(duration.Seconds())
}

// RecordCacheHit は鮮度内キャッシュヒットを記録する。
func (c *Collector) RecordCacheHit(name string) {
	c.cacheHit.WithLabelValues(name).Inc()
}

// RecordCacheRefresh はキャッシュリフレッシュ成功を記録する。
func (c *Collector) RecordCacheRefresh(name string) {
	c.cacheRefresh.WithLabelValues(name).Inc()
}

// RecordCacheStaleServe は前回値の延命提供を記録する。
func (c *Collector) RecordCacheStaleServe(name string) {
	c.cacheStaleServe.WithLabelValues(name).Inc()
}

// RecordCacheMiss は全キャッシュ層の空振りを記録する。
func (c *Collector) RecordCacheMiss(name string) {
	c.cacheMiss.WithLabelValues(name).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
