package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名・指定ラベルのメトリクスを収集結果から探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range m.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != want {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordCartAdd_IncrementsCounters は追加回数と点数の両カウンタが増加することを検証する。
func TestRecordCartAdd_IncrementsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCartAdd(1)
	c.RecordCartAdd(2)

	if got := findMetric(t, reg, "storefront_cart_adds_total", nil).GetCounter().GetValue(); got != 2 {
		t.Errorf("cart_adds_total = %v, want 2", got)
	}
	if got := findMetric(t, reg, "storefront_cart_units_total", nil).GetCounter().GetValue(); got != 3 {
		t.Errorf("cart_units_total = %v, want 3", got)
	}
}

// TestRecordCheckout_Counters はチェックアウト関連カウンタがラベル別に記録されることを検証する。
func TestRecordCheckout_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCheckoutCreated()
	c.RecordCheckoutFailed("gateway")
	c.RecordCheckoutFailed("gateway")
	c.RecordCheckoutFailed("empty_cart")
	c.RecordCheckoutFinished("paid")
	c.RecordCheckoutsExpired(4)

	if got := findMetric(t, reg, "storefront_checkout_created_total", nil).GetCounter().GetValue(); got != 1 {
		t.Errorf("checkout_created_total = %v, want 1", got)
	}
	if got := findMetric(t, reg, "storefront_checkout_failed_total", map[string]string{"reason": "gateway"}).GetCounter().GetValue(); got != 2 {
		t.Errorf("checkout_failed_total{reason=gateway} = %v, want 2", got)
	}
	if got := findMetric(t, reg, "storefront_checkout_failed_total", map[string]string{"reason": "empty_cart"}).GetCounter().GetValue(); got != 1 {
		t.Errorf("checkout_failed_total{reason=empty_cart} = %v, want 1", got)
	}
	if got := findMetric(t, reg, "storefront_checkout_finished_total", map[string]string{"status": "paid"}).GetCounter().GetValue(); got != 1 {
		t.Errorf("checkout_finished_total{status=paid} = %v, want 1", got)
	}
	if got := findMetric(t, reg, "storefront_checkouts_expired_total", nil).GetCounter().GetValue(); got != 4 {
		t.Errorf("checkouts_expired_total = %v, want 4", got)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はステータスコード別にカウントされることを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(502)

	if got := findMetric(t, reg, "storefront_http_status_total", map[string]string{"status_code": "200"}).GetCounter().GetValue(); got != 2 {
		t.Errorf("http_status_total{200} = %v, want 2", got)
	}
	if got := findMetric(t, reg, "storefront_http_status_total", map[string]string{"status_code": "502"}).GetCounter().GetValue(); got != 1 {
		t.Errorf("http_status_total{502} = %v, want 1", got)
	}
}

// TestRecordPaymentLatency_ObservesHistogram は操作別のヒストグラムに値が記録されることを検証する。
func TestRecordPaymentLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPaymentLatency("create_session", 100*time.Millisecond)
	c.RecordPaymentLatency("create_session", 2*time.Second)

	h := findMetric(t, reg, "storefront_payment_latency_seconds", map[string]string{"operation": "create_session"}).GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	// 合計は0.1 + 2.0 = 2.1秒
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCartAdd(1)
	c.RecordCheckoutCreated()
	c.RecordHTTPStatus(200)
	c.RecordPaymentLatency("create_session", 500*time.Millisecond)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	for _, metric := range []string{
		"storefront_cart_adds_total",
		"storefront_checkout_created_total",
		"storefront_http_status_total",
		"storefront_payment_latency_seconds",
	} {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordCheckoutCreated()
	c2.RecordCheckoutCreated()
	c2.RecordCheckoutCreated()

	if got := findMetric(t, reg1, "storefront_checkout_created_total", nil).GetCounter().GetValue(); got != 1 {
		t.Errorf("reg1 checkout_created = %v, want 1", got)
	}
	if got := findMetric(t, reg2, "storefront_checkout_created_total", nil).GetCounter().GetValue(); got != 2 {
		t.Errorf("reg2 checkout_created = %v, want 2", got)
	}
}
