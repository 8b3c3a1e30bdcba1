package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// HistogramBuckets spans request latencies and the payment completion window,
// which defaults to 2s after confirm and is bounded by polling at 30s.
var HistogramBuckets = []float64{
	5, 10, 25, 50, 100, 250, 500,
	1000, 1500, 2000, 2500, 3000, 5000,
	10000, 20000, 30000, 60000,
}

// Metric describes one collector. Type is one of counter_vec, histogram_vec
// or summary_vec.
type Metric struct {
	ID          string
	Name        string
	Description string
	Type        string
	Args        []string
}

// NewMetric builds the collector for m. An unknown Type yields nil.
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	switch m.Type {
	case "counter_vec":
		return prometheus.NewCounterVec(prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description}, m.Args)
	case "histogram_vec":
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: subsystem, Name: m.Name, Help: m.Description, Buckets: HistogramBuckets,
		}, m.Args)
	case "summary_vec":
		return prometheus.NewSummaryVec(prometheus.SummaryOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description}, m.Args)
	}
	return nil
}

var metricProcess = &Metric{
	ID:          "processDur",
	Name:        "process_dur_ms",
	Description: "Latency of business steps such as payment completion, in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"type", "subtype"},
}

var metricPayments = &Metric{
	ID:          "payments",
	Name:        "payment_transitions_total",
	Description: "Payment status transitions, partitioned by the status entered.",
	Type:        "counter_vec",
	Args:        []string{"status"},
}

var metricQRValidations = &Metric{
	ID:          "qrValidations",
	Name:        "qr_validations_total",
	Description: "QR credential validations, partitioned by result.",
	Type:        "counter_vec",
	Args:        []string{"result"},
}

var metricRelayDeliveries = &Metric{
	ID:          "relayDeliveries",
	Name:        "relay_deliveries_total",
	Description: "Relay handler invocations, partitioned by message type and outcome.",
	Type:        "counter_vec",
	Args:        []string{"type", "outcome"},
}

var metricDraws = &Metric{
	ID:          "draws",
	Name:        "draws_total",
	Description: "Completed draws, partitioned by machine and prize rarity.",
	Type:        "counter_vec",
	Args:        []string{"machine", "rarity"},
}

var metricPushSends = &Metric{
	ID:          "pushSends",
	Name:        "push_sends_total",
	Description: "Envelopes forwarded to external push sinks, partitioned by sink and outcome.",
	Type:        "counter_vec",
	Args:        []string{"sink", "outcome"},
}

const (
	RefererKey = "X-Referer"

	subsystem = "gachapon"
)

// Business holds the domain counters. A nil *Business is valid and records nothing.
type Business struct {
	process         *prometheus.HistogramVec
	payments        *prometheus.CounterVec
	qrValidations   *prometheus.CounterVec
	relayDeliveries *prometheus.CounterVec
	draws           *prometheus.CounterVec
	pushSends       *prometheus.CounterVec
}

// NewBusiness registers the domain metrics on reg. Collectors that are already
// registered are reused so several instances can share one registry.
func NewBusiness(reg prometheus.Registerer) (*Business, error) {
	register := func(m *Metric) (prometheus.Collector, error) {
		c := NewMetric(m, subsystem)
		if c == nil {
			return nil, fmt.Errorf("metric %s: unknown type %q", m.Name, m.Type)
		}
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				return are.ExistingCollector, nil
			}
			return nil, err
		}
		return c, nil
	}

	b := &Business{}
	targets := []struct {
		def *Metric
		set func(prometheus.Collector)
	}{
		{metricProcess, func(c prometheus.Collector) { b.process = c.(*prometheus.HistogramVec) }},
		{metricPayments, func(c prometheus.Collector) { b.payments = c.(*prometheus.CounterVec) }},
		{metricQRValidations, func(c prometheus.Collector) { b.qrValidations = c.(*prometheus.CounterVec) }},
		{metricRelayDeliveries, func(c prometheus.Collector) { b.relayDeliveries = c.(*prometheus.CounterVec) }},
		{metricDraws, func(c prometheus.Collector) { b.draws = c.(*prometheus.CounterVec) }},
		{metricPushSends, func(c prometheus.Collector) { b.pushSends = c.(*prometheus.CounterVec) }},
	}
	for _, t := range targets {
		c, err := register(t.def)
		if err != nil {
			return nil, err
		}
		t.set(c)
	}
	return b, nil
}

// ObserveProcess records the latency of a named business step.
func (b *Business) ObserveProcess(typ, subtype string, start time.Time) {
	if b == nil {
		return
	}
	b.process.WithLabelValues(typ, subtype).Observe(MillisecondsSince(start))
}

func (b *Business) PaymentTransition(status string) {
	if b == nil {
		return
	}
	b.payments.WithLabelValues(status).Inc()
}

func (b *Business) QRValidation(result string) {
	if b == nil {
		return
	}
	b.qrValidations.WithLabelValues(result).Inc()
}

func (b *Business) RelayDelivery(msgType, outcome string) {
	if b == nil {
		return
	}
	b.relayDeliveries.WithLabelValues(msgType, outcome).Inc()
}

func (b *Business) Draw(machineID, rarity string) {
	if b == nil {
		return
	}
	b.draws.WithLabelValues(machineID, rarity).Inc()
}

func (b *Business) PushSend(sink, outcome string) {
	if b == nil {
		return
	}
	b.pushSends.WithLabelValues(sink, outcome).Inc()
}

// MillisecondsSince returns the elapsed time in fractional milliseconds.
func MillisecondsSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

func provideBusiness() (*Business, error) {
	return NewBusiness(prometheus.DefaultRegisterer)
}

var Module = fx.Options(
	fx.Provide(provideBusiness),
)
