package builtin

import (
	"context"
	"fmt"

	"aqua-guard/internal/model"
	"aqua-guard/internal/schema"

	"github.com/sirupsen/logrus"
)

const trafficBaselineWindow = 24

// TrafficSpikeRule compares SCADA network traffic against its trailing 24h
// baseline and alerts when the z-score exceeds threshold.
type TrafficSpikeRule struct {
	name      string
	enabled   bool
	severity  string
	threshold float64
	meanKey   string
	stdKey    string
	state     *latch
	logger    *logrus.Logger
}

func NewTrafficSpikeRule(enabled bool, severity string, threshold float64, logger *logrus.Logger) *TrafficSpikeRule {
	if threshold <= 0 {
		threshold = 3.0
	}
	return &TrafficSpikeRule{
		name:      "traffic_spike",
		enabled:   enabled,
		severity:  severity,
		threshold: threshold,
		meanKey:   schema.RollingName(schema.RollNetworkTraffic, schema.StatMean, trafficBaselineWindow),
		stdKey:    schema.RollingName(schema.RollNetworkTraffic, schema.StatStd, trafficBaselineWindow),
		state:     newLatch(),
		logger:    logger,
	}
}

func (r *TrafficSpikeRule) Name() string {
	return r.name
}

func (r *TrafficSpikeRule) IsEnabled() bool {
	return r.enabled
}

func (r *TrafficSpikeRule) Evaluate(ctx context.Context, point *model.DataPoint) []model.Alert {
	if !r.enabled || point == nil {
		return nil
	}

	current := point.Feature(schema.NetworkTrafficMB)
	mean := point.Feature(r.meanKey)
	std := point.Feature(r.stdKey)

	// no baseline yet
	if std <= 0 {
		r.state.trip(schema.NetworkTrafficMB, false)
		return nil
	}

	z := (current - mean) / std
	if !r.state.trip(schema.NetworkTrafficMB, z > r.threshold) {
		return nil
	}

	msg := fmt.Sprintf("Network traffic spike: %.1f MB vs 24h baseline %.1f MB (z=%.2f)", current, mean, z)
	r.logger.Warnf("[Traffic Spike] %s", msg)
	return []model.Alert{{
		Type:      r.name,
		Severity:  r.severity,
		Component: "scada_network",
		Message:   msg,
		Timestamp: point.Timestamp,
		Value:     current,
	}}
}
