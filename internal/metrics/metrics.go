// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordCartAdd(quantity int64)
	RecordCheckoutCreated()
	RecordCheckoutFailed(reason string)
	RecordCheckoutFinished(status string)
	RecordCheckoutsExpired(count int64)
	RecordPaymentLatency(operation string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cartAdds         prometheus.Counter
	cartUnits        prometheus.Counter
	checkoutCreated  prometheus.Counter
	checkoutFailed   *prometheus.CounterVec
	checkoutFinished *prometheus.CounterVec
	checkoutsExpired prometheus.Counter
	paymentLatency   *prometheus.HistogramVec
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cartAdds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_cart_adds_total",
			Help: "カート追加操作の合計数",
		}),
		cartUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_cart_units_total",
			Help: "カートに追加された商品点数の合計",
		}),
		checkoutCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_checkout_created_total",
			Help: "作成されたチェックアウトセッションの合計数",
		}),
		checkoutFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_checkout_failed_total",
			Help: "チェックアウト開始に失敗した回数（理由別）",
		}, []string{"reason"}),
		checkoutFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_checkout_finished_total",
			Help: "終端状態に遷移したチェックアウトの数（状態別）",
		}, []string{"status"}),
		checkoutsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_checkouts_expired_total",
			Help: "期限切れにしたチェックアウトの合計数",
		}),
		paymentLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_payment_latency_seconds",
			Help:    "決済代行サービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.cartAdds,
		c.cartUnits,
		c.checkoutCreated,
		c.checkoutFailed,
		c.checkoutFinished,
		c.checkoutsExpired,
		c.paymentLatency,
		c.httpStatus,
	)

	return c
}

// RecordCartAdd はカート追加を記録する。
func (c *Collector) RecordCartAdd(quantity int64) {
	c.cartAdds.Inc()
	c.cartUnits.Add(float64(quantity))
}

// RecordCheckoutCreated はチェックアウトセッション作成を記録する。
func (c *Collector) RecordCheckoutCreated() {
	c.checkoutCreated.Inc()
}

// RecordCheckoutFailed はチェックアウト開始の失敗を記録する。
func (c *Collector) RecordCheckoutFailed(reason string) {
	c.checkoutFailed.WithLabelValues(reason).Inc()
}

// RecordCheckoutFinished はチェックアウトの終端状態への遷移を記録する。
func (c *Collector) RecordCheckoutFinished(status string) {
	c.checkoutFinished.WithLabelValues(status).Inc()
}

// RecordCheckoutsExpired は期限切れにしたチェックアウト数を記録する。
func (c *Collector) RecordCheckoutsExpired(count int64) {
	c.checkoutsExpired.Add(float64(count))
}

// RecordPaymentLatency は決済代行サービス呼び出しのレイテンシを記録する。
func (c *Collector) RecordPaymentLatency(operation string, duration time.Duration) {
	c.paymentLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。メトリクス不要の経路やテストで使う。
type Nop struct{}

func (Nop) RecordCartAdd(int64)                        {}
func (Nop) RecordCheckoutCreated()                     {}
func (Nop) RecordCheckoutFailed(string)                {}
func (Nop) RecordCheckoutFinished(string)              {}
func (Nop) RecordCheckoutsExpired(int64)               {}
func (Nop) RecordPaymentLatency(string, time.Duration) {}
func (Nop) RecordHTTPStatus(int)                       {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// ワーカープロセスのように本体のルーターを持たない場合に使う。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
