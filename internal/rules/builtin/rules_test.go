package builtin

import (
	"context"
	"testing"
	"time"

	"aqua-guard/internal/model"
	"aqua-guard/internal/rules"
	"aqua-guard/internal/schema"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func nominalPoint() *model.DataPoint {
	f := schema.Empty()
	for i := 0; i < schema.TankCount; i++ {
		f[schema.TankLevel(i)] = 60
	}
	for i := range schema.JunctionNames {
		f[schema.Pressure(i)] = 50
	}
	return &model.DataPoint{Timestamp: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), Features: f}
}

func scored(p *model.DataPoint, score float64, sev model.Severity) *model.DataPoint {
	p.AnomalyScore = &score
	p.AnomalyContext = &model.AnomalyContext{IsActive: score > 0.5, Severity: sev, Type: model.AnomalyCyber}
	return p
}

func TestAnomalyScoreRuleEdgeTriggered(t *testing.T) {
	r := NewAnomalyScoreRule(true, "HIGH", 0.6, quietLogger())
	ctx := context.Background()

	assert.Empty(t, r.Evaluate(ctx, nominalPoint()), "unscored points are ignored")
	assert.Empty(t, r.Evaluate(ctx, scored(nominalPoint(), 0.3, model.SeverityMedium)))

	alerts := r.Evaluate(ctx, scored(nominalPoint(), 0.82, model.SeverityCritical))
	require.Len(t, alerts, 1)
	assert.Equal(t, "CRITICAL", alerts[0].Severity)
	assert.Equal(t, 0.82, alerts[0].Value)
	assert.Contains(t, alerts[0].Message, "cyber")

	assert.Empty(t, r.Evaluate(ctx, scored(nominalPoint(), 0.9, model.SeverityCritical)), "still firing")
	assert.Empty(t, r.Evaluate(ctx, scored(nominalPoint(), 0.1, model.SeverityLow)))
	assert.Len(t, r.Evaluate(ctx, scored(nominalPoint(), 0.6, model.SeverityHigh)), 1, "re-armed after recovery")
}

func TestTankLevelRulePerTank(t *testing.T) {
	r := NewTankLevelRule(true, "HIGH", 20, 95, quietLogger())
	ctx := context.Background()

	p := nominalPoint()
	p.Features["L_T2"] = 12
	p.Features["L_T6"] = 97
	alerts := r.Evaluate(ctx, p)
	require.Len(t, alerts, 2)
	assert.Equal(t, "L_T2", alerts[0].Component)
	assert.Equal(t, 12.0, alerts[0].Value)
	assert.Contains(t, alerts[0].Message, "below")
	assert.Equal(t, "L_T6", alerts[1].Component)
	assert.Contains(t, alerts[1].Message, "above")

	p2 := nominalPoint()
	p2.Features["L_T2"] = 11
	assert.Empty(t, r.Evaluate(ctx, p2))
}

func TestPressureBandRule(t *testing.T) {
	r := NewPressureBandRule(true, "MEDIUM", 25, 75, quietLogger())

	p := nominalPoint()
	p.Features[schema.Pressure(0)] = 78
	alerts := r.Evaluate(context.Background(), p)
	require.Len(t, alerts, 1)
	assert.Equal(t, schema.JunctionNames[0], alerts[0].Component)
	assert.Equal(t, "MEDIUM", alerts[0].Severity)
}

func TestSecurityEventsRule(t *testing.T) {
	r := NewSecurityEventsRule(true, "CRITICAL", 40, quietLogger())

	p := nominalPoint()
	p.Features[schema.CriticalSecurityScore] = 45
	p.Features[schema.DataExfiltrationFlag] = 1
	alerts := r.Evaluate(context.Background(), p)
	require.Len(t, alerts, 2)
	assert.Equal(t, schema.CriticalSecurityScore, alerts[0].Component)
	assert.Equal(t, schema.DataExfiltrationFlag, alerts[1].Component)

	p2 := nominalPoint()
	p2.Features[schema.PortScanDetected] = 1
	alerts = r.Evaluate(context.Background(), p2)
	require.Len(t, alerts, 1)
	assert.Equal(t, schema.PortScanDetected, alerts[0].Component)
}

func TestDisabledRuleIsSilent(t *testing.T) {
	r := NewTankLevelRule(false, "HIGH", 20, 95, quietLogger())
	p := nominalPoint()
	p.Features["L_T1"] = 5
	assert.Empty(t, r.Evaluate(context.Background(), p))
}

func TestRegisterFromConfig(t *testing.T) {
	engine := rules.NewEngine(quietLogger())
	cfg := append(DefaultRules(),
		model.Rule{Name: "does_not_exist", Enabled: true},
		model.Rule{Name: "tank_level", Enabled: false},
	)

	n := RegisterFromConfig(engine, cfg, quietLogger())

	assert.Equal(t, 5, n)
	names := make([]string, 0)
	for _, r := range engine.Rules() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"anomaly_score", "tank_level", "pressure_band", "security_events", "traffic_spike"}, names)
}

func TestRegisteredThresholdsComeFromConfig(t *testing.T) {
	engine := rules.NewEngine(quietLogger())
	RegisterFromConfig(engine, []model.Rule{{
		Name: "tank_level", Enabled: true, Severity: "LOW",
		Thresholds: map[string]interface{}{"min": 50, "max": 55},
	}}, quietLogger())

	alerts := engine.Evaluate(context.Background(), nominalPoint())
	assert.Len(t, alerts, schema.TankCount)
}

func TestTrafficSpikeRule(t *testing.T) {
	r := NewTrafficSpikeRule(true, "MEDIUM", 3, quietLogger())
	mean := schema.RollingName(schema.RollNetworkTraffic, schema.StatMean, 24)
	std := schema.RollingName(schema.RollNetworkTraffic, schema.StatStd, 24)

	p := nominalPoint()
	p.Features[schema.NetworkTrafficMB] = 500
	assert.Empty(t, r.Evaluate(context.Background(), p), "no baseline yet")

	p.Features[mean] = 100
	p.Features[std] = 20
	p.Features[schema.NetworkTrafficMB] = 130
	assert.Empty(t, r.Evaluate(context.Background(), p))

	p.Features[schema.NetworkTrafficMB] = 200
	alerts := r.Evaluate(context.Background(), p)
	require.Len(t, alerts, 1)
	assert.Equal(t, "traffic_spike", alerts[0].Type)
	assert.Equal(t, 200.0, alerts[0].Value)

	assert.Empty(t, r.Evaluate(context.Background(), p), "still spiking")

	p.Features[schema.NetworkTrafficMB] = 100
	assert.Empty(t, r.Evaluate(context.Background(), p))
	p.Features[schema.NetworkTrafficMB] = 200
	assert.Len(t, r.Evaluate(context.Background(), p), 1, "re-armed after recovery")
}
