// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラー、ワーカー、上流APIクライアントから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRegistration(outcome string)
	RecordLogin(outcome string)
	RecordReviewCreated()
	RecordReviewDeleted()
	RecordSessionsPurged(count int64)
	RecordUpstreamRequest(endpoint, outcome string)
	RecordUpstreamLatency(duration time.Duration)
}

// 認証系メトリクスのoutcomeラベル値
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeInvalid = "invalid"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	registrations   *prometheus.CounterVec
	logins          *prometheus.CounterVec
	reviewsCreated  prometheus.Counter
	reviewsDeleted  prometheus.Counter
	sessionsPurged  prometheus.Counter
	upstreamReqs    *prometheus.CounterVec
	upstreamLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "movieshelf_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "movieshelf_registrations_total",
			Help: "ユーザー登録の試行数（結果別）",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "movieshelf_logins_total",
			Help: "ログインの試行数（結果別）",
		}, []string{"outcome"}),
		reviewsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "movieshelf_reviews_created_total",
			Help: "投稿されたレビューの合計数",
		}),
		reviewsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "movieshelf_reviews_deleted_total",
			Help: "削除リクエストが成功したレビューの合計数",
		}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "movieshelf_sessions_purged_total",
			Help: "期限切れで削除されたセッションの合計数",
		}),
		upstreamReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "movieshelf_upstream_requests_total",
			Help: "メタデータプロバイダーへのリクエスト数（エンドポイント種別・結果別）",
		}, []string{"endpoint", "outcome"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "movieshelf_upstream_latency_seconds",
			Help:    "メタデータプロバイダーのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.registrations,
		c.logins,
		c.reviewsCreated,
		c.reviewsDeleted,
		c.sessionsPurged,
		c.upstreamReqs,
		c.upstreamLatency,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRegistration はユーザー登録の結果を記録する。
func (c *Collector) RecordRegistration(outcome string) {
	c.registrations.WithLabelValues(outcome).Inc()
}

// RecordLogin はログインの結果を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordReviewCreated はレビュー投稿を記録する。
func (c *Collector) RecordReviewCreated() {
	c.reviewsCreated.Inc()
}

// RecordReviewDeleted はレビュー削除を記録する。
func (c *Collector) RecordReviewDeleted() {
	c.reviewsDeleted.Inc()
}

// RecordSessionsPurged は期限切れセッションの削除件数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// RecordUpstreamRequest は上流APIリクエストの結果を記録する。
func (c *Collector) RecordUpstreamRequest(endpoint, outcome string) {
	c.upstreamReqs.WithLabelValues(endpoint, outcome).Inc()
}

// RecordUpstreamLatency は上流APIのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(duration time.Duration) {
	c.upstreamLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// CounterSnapshot はレジストリ内のカウンタ値を"name{label=value,...}"形式のキーで返す。
// 端末クライアントが終了時にデバッグログへ出力するために使用する。
func CounterSnapshot(gatherer prometheus.Gatherer) (map[string]float64, error) {
	families, err := gatherer.Gather()
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64)
	for _, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, m := range mf.GetMetric() {
			out[seriesKey(mf.GetName(), m.GetLabel())] = m.GetCounter().GetValue()
		}
	}
	return out, nil
}

// seriesKey はメトリクス名とラベルから一意なキーを生成する。
func seriesKey(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	pairs := make([]string, 0, len(labels))
	for _, l := range labels {
		pairs = append(pairs, l.GetName()+"="+l.GetValue())
	}
	sort.Strings(pairs)
	return name + "{" + strings.Join(pairs, ",") + "}"
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
