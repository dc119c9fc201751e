package metrics

import (
	"time"

	"aqua-guard/internal/model"
	"aqua-guard/internal/schema"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Inference outcomes recorded on aqua_inference_requests_total
const (
	InferenceSuccess      = "success"
	InferenceFailure      = "failure"
	InferenceCacheHit     = "cache"
	InferenceInsufficient = "insufficient_history"
)

// Metrics holds every collector the service exports. All methods are safe on a nil receiver.
type Metrics struct {
	// Generator metrics
	TicksTotal    prometheus.Counter
	HistoryPoints prometheus.Gauge

	// Plant metrics
	TankLevel        *prometheus.GaugeVec
	PumpFlow         *prometheus.GaugeVec
	PumpStatus       *prometheus.GaugeVec
	JunctionPressure *prometheus.GaugeVec
	ActivePumps      prometheus.Gauge
	SecurityEvents   prometheus.Gauge

	// Anomaly metrics
	AnomalyScore      prometheus.Gauge
	InferenceRequests *prometheus.CounterVec
	InferenceDuration prometheus.Histogram

	// Alert metrics
	AlertsTotal *prometheus.CounterVec
}

// NewMetrics registers all collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "aqua_ticks_total",
			Help: "Total number of simulation ticks generated",
		}),

		HistoryPoints: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aqua_history_points",
			Help: "Number of data points currently held in history",
		}),

		TankLevel: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "aqua_tank_level",
				Help: "Tank level in percent",
			},
			[]string{"tank"},
		),

		PumpFlow: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "aqua_pump_flow",
				Help: "Pump flow rate",
			},
			[]string{"pump"},
		),

		PumpStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "aqua_pump_status",
				Help: "Pump status (1 running, 0 stopped)",
			},
			[]string{"pump"},
		),

		JunctionPressure: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "aqua_junction_pressure",
				Help: "Junction pressure",
			},
			[]string{"junction"},
		),

		ActivePumps: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aqua_active_pumps",
			Help: "Number of running pumps",
		}),

		SecurityEvents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aqua_security_events",
			Help: "Security events observed in the latest tick",
		}),

		AnomalyScore: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aqua_anomaly_score",
			Help: "Latest anomaly score in [0,1]",
		}),

		InferenceRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aqua_inference_requests_total",
				Help: "Anomaly inference requests by outcome",
			},
			[]string{"result"},
		),

		InferenceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "aqua_inference_duration_seconds",
			Help:    "Latency of calls to the external ML service",
			Buckets: prometheus.DefBuckets,
		}),

		AlertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aqua_alerts_total",
				Help: "Total alerts raised by type and severity",
			},
			[]string{"type", "severity"},
		),
	}
}

// ObservePoint publishes a freshly generated point's plant readings
func (m *Metrics) ObservePoint(p model.DataPoint, historyLen int) {
	if m == nil {
		return
	}
	m.TicksTotal.Inc()
	m.HistoryPoints.Set(float64(historyLen))

	for i := 0; i < schema.TankCount; i++ {
		name := schema.TankLevel(i)
		m.TankLevel.WithLabelValues(name).Set(p.Feature(name))
	}
	for i := 0; i < schema.PumpCount; i++ {
		flow, status := schema.PumpFlow(i), schema.PumpStatus(i)
		m.PumpFlow.WithLabelValues(flow).Set(p.Feature(flow))
		m.PumpStatus.WithLabelValues(status).Set(p.Feature(status))
	}
	for i, j := range schema.JunctionNames {
		m.JunctionPressure.WithLabelValues(j).Set(p.Feature(schema.Pressure(i)))
	}
	m.ActivePumps.Set(p.Feature(schema.ActivePumps))
	m.SecurityEvents.Set(p.Feature(schema.TotalSecurityEvents))
}

// ObserveScore records the latest anomaly score
func (m *Metrics) ObserveScore(score float64) {
	if m == nil {
		return
	}
	m.AnomalyScore.Set(score)
}

// ObserveInference counts one inference outcome; d is ignored when zero
func (m *Metrics) ObserveInference(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.InferenceRequests.WithLabelValues(result).Inc()
	if d > 0 {
		m.InferenceDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveAlert(a model.Alert) {
	if m == nil {
		return
	}
	m.AlertsTotal.WithLabelValues(a.Type, a.Severity).Inc()
}
