package builtin

import (
	"context"
	"fmt"
	"strings"

	"aqua-guard/internal/model"

	"github.com/sirupsen/logrus"
)

// AnomalyScoreRule alerts when the model's anomaly score crosses a threshold.
// The alert takes the severity of the point's anomaly context.
type AnomalyScoreRule struct {
	name      string
	enabled   bool
	severity  string
	threshold float64
	state     *latch
	logger    *logrus.Logger
}

func NewAnomalyScoreRule(enabled bool, severity string, threshold float64, logger *logrus.Logger) *AnomalyScoreRule {
	if threshold <= 0 {
		threshold = 0.6
	}
	return &AnomalyScoreRule{
		name:      "anomaly_score",
		enabled:   enabled,
		severity:  severity,
		threshold: threshold,
		state:     newLatch(),
		logger:    logger,
	}
}

func (r *AnomalyScoreRule) Name() string {
	return r.name
}

func (r *AnomalyScoreRule) IsEnabled() bool {
	return r.enabled
}

func (r *AnomalyScoreRule) Evaluate(ctx context.Context, point *model.DataPoint) []model.Alert {
	if !r.enabled || point == nil || point.AnomalyScore == nil {
		return nil
	}

	score := *point.AnomalyScore
	if !r.state.trip("operator", score >= r.threshold) {
		return nil
	}

	severity := r.severity
	kind := ""
	if ac := point.AnomalyContext; ac != nil {
		severity = strings.ToUpper(string(ac.Severity))
		kind = string(ac.Type)
	}
	if kind == "" {
		kind = "unknown"
	}

	alert := model.Alert{
		Type:      r.name,
		Severity:  severity,
		Component: "operator",
		Message:   fmt.Sprintf("Anomaly score %.2f exceeds %.2f (type: %s)", score, r.threshold, kind),
		Timestamp: point.Timestamp,
		Value:     score,
	}
	r.logger.Warnf("[Anomaly Score] %s", alert.Message)
	return []model.Alert{alert}
}
