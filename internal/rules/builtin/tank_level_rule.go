package builtin

import (
	"context"
	"fmt"

	"aqua-guard/internal/model"
	"aqua-guard/internal/schema"

	"github.com/sirupsen/logrus"
)

// TankLevelRule alerts per tank when its level leaves [min, max]
type TankLevelRule struct {
	name     string
	enabled  bool
	severity string
	min      float64
	max      float64
	state    *latch
	logger   *logrus.Logger
}

func NewTankLevelRule(enabled bool, severity string, minLevel, maxLevel float64, logger *logrus.Logger) *TankLevelRule {
	if minLevel <= 0 {
		minLevel = 20
	}
	if maxLevel <= 0 {
		maxLevel = 95
	}
	return &TankLevelRule{
		name:     "tank_level",
		enabled:  enabled,
		severity: severity,
		min:      minLevel,
		max:      maxLevel,
		state:    newLatch(),
		logger:   logger,
	}
}

func (r *TankLevelRule) Name() string {
	return r.name
}

func (r *TankLevelRule) IsEnabled() bool {
	return r.enabled
}

func (r *TankLevelRule) Evaluate(ctx context.Context, point *model.DataPoint) []model.Alert {
	if !r.enabled || point == nil {
		return nil
	}

	var alerts []model.Alert
	for i := 0; i < schema.TankCount; i++ {
		tank := schema.TankLevel(i)
		level := point.Feature(tank)

		var msg string
		switch {
		case level < r.min:
			msg = fmt.Sprintf("Tank %s level %.2f%% below minimum %.0f%%", tank, level, r.min)
		case level > r.max:
			msg = fmt.Sprintf("Tank %s level %.2f%% above maximum %.0f%%", tank, level, r.max)
		}

		if !r.state.trip(tank, msg != "") {
			continue
		}
		alerts = append(alerts, model.Alert{
			Type:      r.name,
			Severity:  r.severity,
			Component: tank,
			Message:   msg,
			Timestamp: point.Timestamp,
			Value:     level,
		})
		r.logger.Warnf("[Tank Level] %s", msg)
	}
	return alerts
}
