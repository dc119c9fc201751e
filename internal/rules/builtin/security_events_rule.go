package builtin

import (
	"context"
	"fmt"

	"aqua-guard/internal/model"
	"aqua-guard/internal/schema"

	"github.com/sirupsen/logrus"
)

// SecurityEventsRule watches the SCADA network: a high critical security
// score, a port scan or a data exfiltration flag each raise their own alert.
type SecurityEventsRule struct {
	name      string
	enabled   bool
	severity  string
	threshold float64
	state     *latch
	logger    *logrus.Logger
}

func NewSecurityEventsRule(enabled bool, severity string, threshold float64, logger *logrus.Logger) *SecurityEventsRule {
	if threshold <= 0 {
		threshold = 40
	}
	return &SecurityEventsRule{
		name:      "security_events",
		enabled:   enabled,
		severity:  severity,
		threshold: threshold,
		state:     newLatch(),
		logger:    logger,
	}
}

func (r *SecurityEventsRule) Name() string {
	return r.name
}

func (r *SecurityEventsRule) IsEnabled() bool {
	return r.enabled
}

func (r *SecurityEventsRule) Evaluate(ctx context.Context, point *model.DataPoint) []model.Alert {
	if !r.enabled || point == nil {
		return nil
	}

	checks := []struct {
		component string
		value     float64
		violated  bool
		message   string
	}{
		{
			component: schema.CriticalSecurityScore,
			value:     point.Feature(schema.CriticalSecurityScore),
			violated:  point.Feature(schema.CriticalSecurityScore) >= r.threshold,
			message:   fmt.Sprintf("Critical security score %.0f reached threshold %.0f", point.Feature(schema.CriticalSecurityScore), r.threshold),
		},
		{
			component: schema.PortScanDetected,
			value:     point.Feature(schema.PortScanDetected),
			violated:  point.Feature(schema.PortScanDetected) > 0,
			message:   "Port scan detected on SCADA network",
		},
		{
			component: schema.DataExfiltrationFlag,
			value:     point.Feature(schema.DataExfiltrationFlag),
			violated:  point.Feature(schema.DataExfiltrationFlag) > 0,
			message:   "Possible data exfiltration detected",
		},
	}

	var alerts []model.Alert
	for _, c := range checks {
		if !r.state.trip(c.component, c.violated) {
			continue
		}
		alerts = append(alerts, model.Alert{
			Type:      r.name,
			Severity:  r.severity,
			Component: c.component,
			Message:   c.message,
			Timestamp: point.Timestamp,
			Value:     c.value,
		})
		r.logger.Warnf("[Security Events] %s", c.message)
	}
	return alerts
}
