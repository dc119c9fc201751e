package inference

import (
	"sort"
	"strings"

	"aqua-guard/internal/model"
	"aqua-guard/internal/schema"
)

const topFeatureCount = 10

// MapScoreToSeverity buckets a score: <0.3 low, <0.6 medium, <0.8 high, else critical
func MapScoreToSeverity(score float64) model.Severity {
	switch {
	case score < 0.3:
		return model.SeverityLow
	case score < 0.6:
		return model.SeverityMedium
	case score < 0.8:
		return model.SeverityHigh
	default:
		return model.SeverityCritical
	}
}

// IsActive reports whether a score counts as an ongoing anomaly
func IsActive(score float64) bool {
	return score > 0.5
}

// DetermineAnomalyType attributes an anomaly from feature importance when the
// model provides it, otherwise from the latest feature vector.
func DetermineAnomalyType(sequence [][]float64, importance []float64) model.AnomalyType {
	if len(importance) == 0 {
		return inferTypeFromSequence(sequence)
	}

	type ranked struct {
		name  string
		score float64
	}
	ranks := make([]ranked, 0, len(importance))
	for i, imp := range importance {
		if name := schema.NameAt(i); name != "" {
			ranks = append(ranks, ranked{name: name, score: imp})
		}
	}
	sort.SliceStable(ranks, func(i, j int) bool { return ranks[i].score > ranks[j].score })
	if len(ranks) > topFeatureCount {
		ranks = ranks[:topFeatureCount]
	}

	var physical bool
	for _, r := range ranks {
		if isSecurityFeature(r.name) {
			return model.AnomalyCyber
		}
		if isPhysicalFeature(r.name) {
			physical = true
		}
	}
	if physical {
		return model.AnomalyPhysical
	}
	return model.AnomalyNetwork
}

func inferTypeFromSequence(sequence [][]float64) model.AnomalyType {
	if len(sequence) == 0 {
		return ""
	}
	last := sequence[len(sequence)-1]

	for i, v := range last {
		if v > 0 && isSecurityFeature(schema.NameAt(i)) {
			return model.AnomalyCyber
		}
	}
	for i, v := range last {
		if v == 0 && strings.HasPrefix(schema.NameAt(i), "S_PU") {
			return model.AnomalyPhysical
		}
	}
	return model.AnomalyNetwork
}

func isSecurityFeature(name string) bool {
	return strings.Contains(name, "security") ||
		strings.Contains(name, "firewall") ||
		strings.Contains(name, "remote_access") ||
		strings.Contains(name, "failed_login")
}

func isPhysicalFeature(name string) bool {
	return strings.HasPrefix(name, "F_PU") ||
		strings.HasPrefix(name, "S_PU") ||
		strings.HasPrefix(name, "L_T") ||
		strings.HasPrefix(name, "P_J")
}
