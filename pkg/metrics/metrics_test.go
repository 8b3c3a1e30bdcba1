package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewBusiness_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewBusiness(reg)
	require.NoError(t, err)
	b, err := NewBusiness(reg)
	require.NoError(t, err)

	a.PaymentTransition("SUCCEEDED")
	b.PaymentTransition("SUCCEEDED")
	require.Equal(t, float64(2), testutil.ToFloat64(a.payments.WithLabelValues("SUCCEEDED")))
}

func TestBusiness_NilIsNoop(t *testing.T) {
	var b *Business
	b.PaymentTransition("FAILED")
	b.QRValidation("ok")
	b.RelayDelivery("PING", "ok")
	b.Draw("machine_001", "RARE")
	b.PushSend("nats", "ok")
	b.ObserveProcess("payment", "complete", time.Now())
}

func TestPrometheus_HandlerFuncCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	p := NewPrometheus(NewPrometheusOptions{
		Registerer: reg,
		Gatherer:   reg,
		ReqCntURLLabelMappingFn: func(c *gin.Context) string {
			return c.FullPath()
		},
	})

	r := gin.New()
	r.Use(p.HandlerFunc())
	r.GET("/api/v1/payments/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payments/p1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(1), testutil.ToFloat64(p.reqCnt.WithLabelValues("200", http.MethodGet, "/api/v1/payments/:id", "")))

	mw := httptest.NewRecorder()
	p.Handler().ServeHTTP(mw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.True(t, strings.Contains(mw.Body.String(), "req_total"))
}

func TestNewMetric_UnknownType(t *testing.T) {
	require.Nil(t, NewMetric(&Metric{Name: "x", Type: "gauge"}, subsystem))
	require.NotNil(t, NewMetric(&Metric{Name: "x", Type: "counter_vec", Args: []string{"a"}}, subsystem))
}
