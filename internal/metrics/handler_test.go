package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// TestStatusMiddleware_RecordsWrittenStatus はハンドラーが書き込んだステータスが記録されることを検証する。
func TestStatusMiddleware_RecordsWrittenStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	handler := StatusMiddleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/99", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	mf := gatherOne(t, reg, "tasklive_http_status_total")
	if got := mf.GetMetric()[0].GetLabel()[0].GetValue(); got != "404" {
		t.Errorf("status_code label = %q, want %q", got, "404")
	}
}

// TestStatusMiddleware_DefaultsTo200 はWriteHeaderを呼ばない場合に200が記録されることを検証する。
func TestStatusMiddleware_DefaultsTo200(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	handler := StatusMiddleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	mf := gatherOne(t, reg, "tasklive_http_status_total")
	if got := mf.GetMetric()[0].GetLabel()[0].GetValue(); got != "200" {
		t.Errorf("status_code label = %q, want %q", got, "200")
	}
}

// TestStatusMiddleware_ServesMetrics はミドルウェア越しでも/metricsが返ることを検証する。
func TestStatusMiddleware_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordAuthFailure()

	handler := StatusMiddleware(c)(Handler(reg))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "tasklive_auth_fail_total") {
		t.Error("response should contain tasklive_auth_fail_total metric")
	}
}
