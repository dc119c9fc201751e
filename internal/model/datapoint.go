package model

import (
	"time"
)

// Severity classifies how serious an anomaly is
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AnomalyType is the subsystem an anomaly is attributed to
type AnomalyType string

const (
	AnomalyChemical AnomalyType = "chemical"
	AnomalyNetwork  AnomalyType = "network"
	AnomalyPhysical AnomalyType = "physical"
	AnomalyCyber    AnomalyType = "cyber"
)

// AnomalyContext annotates an anomaly score with its classification
type AnomalyContext struct {
	IsActive  bool        `json:"isActive"`
	Severity  Severity    `json:"severity"`
	Type      AnomalyType `json:"type,omitempty"`
	StartTime *time.Time  `json:"startTime,omitempty"`
}

// BaseMetrics caches the per-point values the rolling windows are computed over,
// so rolling statistics never have to re-aggregate raw features.
type BaseMetrics struct {
	TotalTankVolume     float64 `json:"-"`
	TotalPumpFlow       float64 `json:"-"`
	AvgPressure         float64 `json:"-"`
	TotalSecurityEvents float64 `json:"-"`
	NetworkTrafficMB    float64 `json:"-"`
}

// DataPoint is one tick of synthesized operator telemetry
type DataPoint struct {
	Seq            uint64             `json:"seq"`
	Timestamp      time.Time          `json:"timestamp"`
	Features       map[string]float64 `json:"features"`
	AnomalyScore   *float64           `json:"anomalyScore,omitempty"`
	AnomalyContext *AnomalyContext    `json:"anomalyContext,omitempty"`
	Base           BaseMetrics        `json:"-"`
}

// Clone returns a deep copy that shares no mutable state with p.
func (p DataPoint) Clone() DataPoint {
	out := p
	if p.Features != nil {
		out.Features = make(map[string]float64, len(p.Features))
		for k, v := range p.Features {
			out.Features[k] = v
		}
	}
	if p.AnomalyScore != nil {
		score := *p.AnomalyScore
		out.AnomalyScore = &score
	}
	if p.AnomalyContext != nil {
		ac := *p.AnomalyContext
		if ac.StartTime != nil {
			st := *ac.StartTime
			ac.StartTime = &st
		}
		out.AnomalyContext = &ac
	}
	return out
}

// Score returns the anomaly score, or 0 when the point is not yet annotated
func (p DataPoint) Score() float64 {
	if p.AnomalyScore == nil {
		return 0
	}
	return *p.AnomalyScore
}

// Feature returns a feature value; missing keys read as 0
func (p DataPoint) Feature(name string) float64 {
	return p.Features[name]
}

// BaseSample is a timestamped BaseMetrics, the unit rolling windows are built from
type BaseSample struct {
	Timestamp time.Time
	BaseMetrics
}
