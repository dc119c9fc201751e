package alert

import (
	"aqua-guard/internal/metrics"
	"aqua-guard/internal/model"
)

// PrometheusNotifier counts alerts on aqua_alerts_total
type PrometheusNotifier struct {
	metrics *metrics.Metrics
}

func NewPrometheusNotifier(m *metrics.Metrics) *PrometheusNotifier {
	return &PrometheusNotifier{metrics: m}
}

func (pn *PrometheusNotifier) SendAlert(alert model.Alert) error {
	pn.metrics.ObserveAlert(alert)
	return nil
}
