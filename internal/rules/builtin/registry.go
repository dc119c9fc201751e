package builtin

import (
	"aqua-guard/internal/model"
	"aqua-guard/internal/rules"

	"github.com/sirupsen/logrus"
)

// RegisterFromConfig registers the enabled builtin rules described by cfg.
// Unknown rule names are logged and skipped.
func RegisterFromConfig(engine *rules.Engine, cfg []model.Rule, logger *logrus.Logger) int {
	registered := 0
	for _, rc := range cfg {
		if !rc.Enabled {
			continue
		}

		var rule rules.RuleInterface
		switch rc.Name {
		case "anomaly_score":
			rule = NewAnomalyScoreRule(rc.Enabled, rc.Severity, rc.Threshold("score", 0.6), logger)
		case "tank_level":
			rule = NewTankLevelRule(rc.Enabled, rc.Severity, rc.Threshold("min", 20), rc.Threshold("max", 95), logger)
		case "pressure_band":
			rule = NewPressureBandRule(rc.Enabled, rc.Severity, rc.Threshold("low", 25), rc.Threshold("high", 75), logger)
		case "security_events":
			rule = NewSecurityEventsRule(rc.Enabled, rc.Severity, rc.Threshold("critical_score", 40), logger)
		case "traffic_spike":
			rule = NewTrafficSpikeRule(rc.Enabled, rc.Severity, rc.Threshold("z_score", 3), logger)
		default:
			logger.Warnf("Unknown rule type: %s", rc.Name)
			continue
		}

		engine.RegisterRule(rule)
		registered++
	}
	return registered
}

// DefaultRules is the rule set used when no configuration provides one
func DefaultRules() []model.Rule {
	return []model.Rule{
		{
			Name:        "anomaly_score",
			Enabled:     true,
			Severity:    "HIGH",
			Description: "Model anomaly score above threshold",
			Type:        "anomaly",
			Thresholds:  map[string]interface{}{"score": 0.6},
		},
		{
			Name:        "tank_level",
			Enabled:     true,
			Severity:    "HIGH",
			Description: "Tank level outside safe operating range",
			Type:        "physical",
			Thresholds:  map[string]interface{}{"min": 20.0, "max": 95.0},
		},
		{
			Name:        "pressure_band",
			Enabled:     true,
			Severity:    "MEDIUM",
			Description: "Junction pressure outside operating band",
			Type:        "physical",
			Thresholds:  map[string]interface{}{"low": 25.0, "high": 75.0},
		},
		{
			Name:        "security_events",
			Enabled:     true,
			Severity:    "CRITICAL",
			Description: "SCADA network security events",
			Type:        "cyber",
			Thresholds:  map[string]interface{}{"critical_score": 40.0},
		},
		{
			Name:        "traffic_spike",
			Enabled:     true,
			Severity:    "MEDIUM",
			Description: "SCADA network traffic far above its 24h baseline",
			Type:        "cyber",
			Thresholds:  map[string]interface{}{"z_score": 3.0},
		},
	}
}
