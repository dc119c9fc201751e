package features

import (
	"math"
	"time"

	"aqua-guard/internal/model"
	"aqua-guard/internal/schema"
	"aqua-guard/internal/simulator"
)

const (
	ratedPumpFlow = 150.0
	hoursPerDay   = 24
	daysPerWeek   = 7
)

// Input is everything the aggregator needs to build one point
type Input struct {
	State     simulator.PhysicalState
	IT        simulator.ITSample
	Timestamp time.Time
	// PrevScore is the anomaly score of the previous point, 0 if unknown
	PrevScore float64
}

// Aggregator turns physical + IT state into the full feature map
type Aggregator struct {
	rolling *RollingEngine
	loc     *time.Location
}

// NewAggregator builds an aggregator. Calendar features are computed in loc
// (nil means UTC).
func NewAggregator(rolling *RollingEngine, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{rolling: rolling, loc: loc}
}

// Build produces the complete feature map for in plus the base metrics to cache
// on the point.
func (a *Aggregator) Build(in Input) (map[string]float64, model.BaseMetrics) {
	f := schema.Empty()

	for i, l := range in.State.TankLevels {
		f[schema.TankLevel(i)] = Round(l, 2)
	}
	for i := range in.State.PumpFlows {
		f[schema.PumpFlow(i)] = Round(in.State.PumpFlows[i], 2)
		f[schema.PumpStatus(i)] = float64(in.State.PumpStatuses[i])
	}
	for i, p := range in.State.JunctionPressures {
		f[schema.Pressure(i)] = Round(p, 2)
	}

	for k, v := range in.IT.Features() {
		f[k] = v
	}
	f[schema.NetworkTrafficMB] = Round(in.IT.NetworkTrafficMB, 2)

	for k, v := range TimeFeatures(in.Timestamp.In(a.loc)) {
		f[k] = v
	}
	for k, v := range Aggregates(in.State, in.IT, in.PrevScore) {
		f[k] = v
	}
	if a.rolling != nil {
		for k, v := range a.rolling.Compute(in.Timestamp) {
			f[k] = v
		}
	}

	return f, BaseFromFeatures(f)
}

// TimeFeatures encodes the calendar flags and cyclical hour/day-of-week
func TimeFeatures(ts time.Time) map[string]float64 {
	hour := ts.Hour()
	dow := int(ts.Weekday())

	hourRad := float64(hour) * 2 * math.Pi / hoursPerDay
	dowRad := float64(dow) * 2 * math.Pi / daysPerWeek

	return map[string]float64{
		schema.Hour:            float64(hour),
		schema.DayOfWeek:       float64(dow),
		schema.IsWeekend:       boolf(dow == 0 || dow == 6),
		schema.IsNight:         boolf(hour >= 22 || hour < 6),
		schema.IsBusinessHours: boolf(hour >= 9 && hour < 17),
		schema.HourSin:         Round(math.Sin(hourRad), 4),
		schema.HourCos:         Round(math.Cos(hourRad), 4),
		schema.DowSin:          Round(math.Sin(dowRad), 4),
		schema.DowCos:          Round(math.Cos(dowRad), 4),
	}
}

// Aggregates computes the cross-cutting totals, spreads, ratios and composite scores
func Aggregates(st simulator.PhysicalState, it simulator.ITSample, prevScore float64) map[string]float64 {
	tanks := st.TankLevels[:]
	pressures := st.JunctionPressures[:]

	totalTank := Sum(tanks)
	avgTank := Mean(tanks)
	minTank, maxTank := MinMax(tanks)

	totalFlow := st.TotalFlow()
	active := float64(st.ActivePumps())
	avgFlow := SafeDiv(totalFlow, active)
	efficiency := SafeDiv(totalFlow, active*ratedPumpFlow) * 100

	avgPressure := Mean(pressures)
	minPressure, maxPressure := MinMax(pressures)

	events := it.SecurityEvents()
	critical := events*10 + it.UnusualIPDetected*20
	health := 100 - critical/10 - prevScore*20
	operational := (efficiency + avgTank/100*50) / 1.5

	return map[string]float64{
		schema.TotalTankVolume:           Round(totalTank, 2),
		schema.AvgTankLevel:              Round(avgTank, 2),
		schema.TankLevelVariance:         Round(Variance(tanks), 2),
		schema.MinTankLevel:              Round(minTank, 2),
		schema.MaxTankLevel:              Round(maxTank, 2),
		schema.TankLevelRange:            Round(maxTank-minTank, 2),
		schema.TotalPumpFlow:             Round(totalFlow, 2),
		schema.ActivePumps:               active,
		schema.AvgPumpFlow:               Round(avgFlow, 2),
		schema.PumpEfficiency:            Round(efficiency, 2),
		schema.AvgPressure:               Round(avgPressure, 2),
		schema.PressureVariance:          Round(Variance(pressures), 2),
		schema.MinPressure:               Round(minPressure, 2),
		schema.MaxPressure:               Round(maxPressure, 2),
		schema.FlowPressureRatio:         Round(SafeDiv(totalFlow, avgPressure), 4),
		schema.TankFlowRatio:             Round(SafeDiv(totalTank, totalFlow), 4),
		schema.TotalSecurityEvents:       events,
		schema.CriticalSecurityScore:     Round(critical, 2),
		schema.AuthFailureRate:           Round(it.FailedLoginAttempts/(it.RemoteAccessAttempts+1), 4),
		schema.SecurityPumpInteraction:   it.SCADAConfigChanges * active,
		schema.ConfigChangeDuringAnomaly: Round(it.SCADAConfigChanges*prevScore, 4),
		schema.SystemHealthScore:         Round(Clamp(health, 0, 100), 2),
		schema.OperationalEfficiency:     Round(Clamp(operational, 0, 100), 2),
	}
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
