package builtin

import (
	"context"
	"fmt"

	"aqua-guard/internal/model"
	"aqua-guard/internal/schema"

	"github.com/sirupsen/logrus"
)

// PressureBandRule alerts per junction when pressure leaves the operating band
type PressureBandRule struct {
	name     string
	enabled  bool
	severity string
	low      float64
	high     float64
	state    *latch
	logger   *logrus.Logger
}

func NewPressureBandRule(enabled bool, severity string, low, high float64, logger *logrus.Logger) *PressureBandRule {
	if low <= 0 {
		low = 25
	}
	if high <= 0 {
		high = 75
	}
	return &PressureBandRule{
		name:     "pressure_band",
		enabled:  enabled,
		severity: severity,
		low:      low,
		high:     high,
		state:    newLatch(),
		logger:   logger,
	}
}

func (r *PressureBandRule) Name() string {
	return r.name
}

func (r *PressureBandRule) IsEnabled() bool {
	return r.enabled
}

func (r *PressureBandRule) Evaluate(ctx context.Context, point *model.DataPoint) []model.Alert {
	if !r.enabled || point == nil {
		return nil
	}

	var alerts []model.Alert
	for i, junction := range schema.JunctionNames {
		pressure := point.Feature(schema.Pressure(i))

		var msg string
		switch {
		case pressure < r.low:
			msg = fmt.Sprintf("Junction %s pressure %.2f below %.0f", junction, pressure, r.low)
		case pressure > r.high:
			msg = fmt.Sprintf("Junction %s pressure %.2f above %.0f", junction, pressure, r.high)
		}

		if !r.state.trip(junction, msg != "") {
			continue
		}
		alerts = append(alerts, model.Alert{
			Type:      r.name,
			Severity:  r.severity,
			Component: junction,
			Message:   msg,
			Timestamp: point.Timestamp,
			Value:     pressure,
		})
		r.logger.Warnf("[Pressure Band] %s", msg)
	}
	return alerts
}
