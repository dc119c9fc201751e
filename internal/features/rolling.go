package features

import (
	"math"
	"time"

	"aqua-guard/internal/model"
	"aqua-guard/internal/schema"
)

// WindowStats are the statistics reported for one metric over one window
type WindowStats struct {
	Mean       float64
	Std        float64
	RateChange float64
}

// BaseSource supplies the cached base metrics of stored points
type BaseSource interface {
	BaseSince(cutoff time.Time) []model.BaseSample
}

// RollingEngine computes windowed mean/std/rate-of-change over history
type RollingEngine struct {
	source BaseSource
}

func NewRollingEngine(source BaseSource) *RollingEngine {
	return &RollingEngine{source: source}
}

// Compute returns the 60 rolling features anchored at now. Windows with no
// samples report zeros.
func (r *RollingEngine) Compute(now time.Time) map[string]float64 {
	var samples []model.BaseSample
	if r.source != nil {
		samples = r.source.BaseSince(now.Add(-windowDuration(maxWindow())))
	}
	return RollingFeatures(now, samples)
}

// RollingFeatures computes every metric/window combination from samples
func RollingFeatures(now time.Time, samples []model.BaseSample) map[string]float64 {
	out := make(map[string]float64, len(schema.RollingMetrics)*len(schema.RollingWindows)*len(schema.RollingStats))
	values := make([]float64, 0, len(samples))

	for _, m := range schema.RollingMetrics {
		for _, w := range schema.RollingWindows {
			cutoff := now.Add(-windowDuration(w))
			values = values[:0]
			for _, s := range samples {
				if s.Timestamp.Before(cutoff) || s.Timestamp.After(now) {
					continue
				}
				values = append(values, MetricValue(s.BaseMetrics, m))
			}

			st := Stats(values)
			out[schema.RollingName(m, schema.StatMean, w)] = Round(st.Mean, 4)
			out[schema.RollingName(m, schema.StatStd, w)] = Round(st.Std, 4)
			out[schema.RollingName(m, schema.StatRateChange, w)] = Round(st.RateChange, 4)
		}
	}
	return out
}

// Stats computes mean, population std and (last-first)/count. Empty input is all zeros.
func Stats(values []float64) WindowStats {
	n := len(values)
	if n == 0 {
		return WindowStats{}
	}
	return WindowStats{
		Mean:       Mean(values),
		Std:        math.Sqrt(Variance(values)),
		RateChange: (values[n-1] - values[0]) / float64(n),
	}
}

// MetricValue picks one base metric out of a cached sample
func MetricValue(b model.BaseMetrics, m schema.RollingMetric) float64 {
	switch m {
	case schema.RollTankVolume:
		return b.TotalTankVolume
	case schema.RollPumpFlow:
		return b.TotalPumpFlow
	case schema.RollAvgPressure:
		return b.AvgPressure
	case schema.RollSecurityEvents:
		return b.TotalSecurityEvents
	case schema.RollNetworkTraffic:
		return b.NetworkTrafficMB
	}
	return 0
}

// BaseFromFeatures reconstructs the base metrics from a point's stored raw
// features. Missing keys read as 0.
func BaseFromFeatures(f map[string]float64) model.BaseMetrics {
	var b model.BaseMetrics
	for i := 0; i < schema.TankCount; i++ {
		b.TotalTankVolume += f[schema.TankLevel(i)]
	}
	for i := 0; i < schema.PumpCount; i++ {
		b.TotalPumpFlow += f[schema.PumpFlow(i)]
	}
	pressure := 0.0
	for i := 0; i < schema.JunctionCount; i++ {
		pressure += f[schema.Pressure(i)]
	}
	b.AvgPressure = pressure / float64(schema.JunctionCount)
	b.TotalSecurityEvents = f[schema.RemoteAccessAttempts] + f[schema.FailedLoginAttempts] +
		f[schema.FirewallAlerts] + f[schema.NetworkAnomalies]
	b.NetworkTrafficMB = f[schema.NetworkTrafficMB]
	return b
}

func windowDuration(hours int) time.Duration {
	return time.Duration(hours) * time.Hour
}

func maxWindow() int {
	w := 0
	for _, h := range schema.RollingWindows {
		if h > w {
			w = h
		}
	}
	return w
}
