// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 操作結果のラベル値
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordAuthEvent(event, outcome string)
	RecordAnimeOperation(operation, outcome string)
	RecordRevokedTokensPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	authEvents    *prometheus.CounterVec
	animeOps      *prometheus.CounterVec
	revokedPurged prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "animetracker_http_requests_total",
			Help: "HTTPリクエスト数（メソッド、ルート、ステータスコード別）",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "animetracker_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "animetracker_auth_events_total",
			Help: "認証イベント数（register, login, refresh, logout）",
		}, []string{"event", "outcome"}),
		animeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "animetracker_anime_operations_total",
			Help: "ウォッチリスト操作数",
		}, []string{"operation", "outcome"}),
		revokedPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animetracker_revoked_tokens_purged_total",
			Help: "クリーンアップで削除された失効トークン数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.authEvents,
		c.animeOps,
		c.revokedPurged,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの件数と処理時間を記録する。
// routeにはchiのルートパターンを渡し、IDを含む実パスでラベルが増えないようにする。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthEvent は認証イベントを記録する。
func (c *Collector) RecordAuthEvent(event, outcome string) {
	c.authEvents.WithLabelValues(event, outcome).Inc()
}

// RecordAnimeOperation はウォッチリスト操作を記録する。
func (c *Collector) RecordAnimeOperation(operation, outcome string) {
	c.animeOps.WithLabelValues(operation, outcome).Inc()
}

// RecordRevokedTokensPurged はクリーンアップで削除された失効トークン数を記録する。
func (c *Collector) RecordRevokedTokensPurged(count int64) {
	c.revokedPurged.Add(float64(count))
}

// Outcome はエラーの有無から結果ラベルを返す。
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
