// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 利用側はこのうち必要なメソッドだけを持つインターフェースで受け取る。
type MetricsCollector interface {
	SetLiveConnections(n int)
	RecordBroadcast(duration time.Duration)
	RecordDeliveryFailure()
	RecordAuthFailure()
	RecordTaskMutation(op string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	liveConnections  prometheus.Gauge
	broadcasts       prometheus.Counter
	broadcastLatency prometheus.Histogram
	deliveryFail     prometheus.Counter
	authFail         prometheus.Counter
	taskMutations    *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		liveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tasklive_live_connections",
			Help: "登録中のライブ接続数",
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasklive_broadcast_total",
			Help: "スナップショット配信の合計数",
		}),
		broadcastLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tasklive_broadcast_duration_seconds",
			Help:    "全接続への配信完了までの時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		deliveryFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasklive_delivery_fail_total",
			Help: "接続単位の配信失敗の合計数",
		}),
		authFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasklive_auth_fail_total",
			Help: "セッション認証で拒否された呼び出しの合計数",
		}),
		taskMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasklive_task_mutations_total",
			Help: "操作別のタスク変更成功数",
		}, []string{"op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tasklive_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.liveConnections,
		c.broadcasts,
		c.broadcastLatency,
		c.deliveryFail,
		c.authFail,
		c.taskMutations,
		c.httpStatus,
	)

	return c
}

// SetLiveConnections は現在のライブ接続数を記録する。
func (c *Collector) SetLiveConnections(n int) {
	c.liveConnections.Set(float64(n))
}

// RecordBroadcast は配信1回分の件数と所要時間を記録する。
func (c *Collector) RecordBroadcast(duration time.Duration) {
	c.broadcasts.Inc()
	c.broadcastLatency.Observe(duration.Seconds())
}

// RecordDeliveryFailure は接続単位の配信失敗を記録する。
func (c *Collector) RecordDeliveryFailure() {
	c.deliveryFail.Inc()
}

// RecordAuthFailure は認証拒否を記録する。
func (c *Collector) RecordAuthFailure() {
	c.authFail.Inc()
}

// RecordTaskMutation はタスク変更の成功を操作名（create, update, delete）別に記録する。
func (c *Collector) RecordTaskMutation(op string) {
	c.taskMutations.WithLabelValues(op).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// StatusMiddleware はレスポンスのステータスコードをRecordHTTPStatusへ記録するミドルウェアを返す。
func StatusMiddleware(c interface{ RecordHTTPStatus(int) }) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			c.RecordHTTPStatus(sw.status)
		})
	}
}

// statusWriter は書き込まれたステータスコードを保持する。
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Hijack はWebSocketのアップグレードを元のWriterへ委譲する。
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}
