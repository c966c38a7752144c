// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証ゲートの結果ラベル
const (
	AuthOutcomeSuccess      = "success"
	AuthOutcomeMissingToken = "missing_token"
	AuthOutcomeInvalidToken = "invalid_token"
	AuthOutcomeUnregistered = "unregistered"
	AuthOutcomeError        = "error"
)

// 認可ゲートの拒否理由ラベル
const (
	DenyReasonUserNotFound      = "user_not_found"
	DenyReasonInsufficientRoles = "insufficient_roles"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authentications *prometheus.CounterVec
	authzDenied     *prometheus.CounterVec
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authentications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usergate_authentication_total",
			Help: "認証ゲートの判定結果別の件数",
		}, []string{"outcome"}),
		authzDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usergate_authorization_denied_total",
			Help: "認可ゲートで拒否したリクエストの理由別件数",
		}, []string{"reason"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usergate_identity_provider_calls_total",
			Help: "外部IdP呼び出しの操作・結果別の件数",
		}, []string{"operation", "result"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "usergate_identity_provider_latency_seconds",
			Help:    "外部IdP呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usergate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.authentications,
		c.authzDenied,
		c.providerCalls,
		c.providerLatency,
		c.httpStatus,
	)

	return c
}

// RecordAuthentication は認証ゲートの判定結果を記録する。
func (c *Collector) RecordAuthentication(outcome string) {
	c.authentications.WithLabelValues(outcome).Inc()
}

// RecordAuthorizationDenied は認可ゲートの拒否を記録する。
func (c *Collector) RecordAuthorizationDenied(reason string) {
	c.authzDenied.WithLabelValues(reason).Inc()
}

// RecordProviderCall は外部IdP呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordProviderCall(operation string, err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.providerCalls.WithLabelValues(operation, result).Inc()
	c.providerLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
