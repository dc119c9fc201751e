// Package schema defines the fixed, ordered feature catalog shared by every
// component that builds or reads feature vectors. Index i of a feature vector
// always refers to Names()[i].
package schema

import "fmt"

const (
	TankCount = 7
	PumpCount = 11
)

// JunctionNames are the monitored network junctions, in catalog order
var JunctionNames = [...]string{
	"J280", "J269", "J300", "J256", "J289", "J415",
	"J302", "J306", "J307", "J317", "J14", "J422",
}

// JunctionCount is len(JunctionNames)
const JunctionCount = len(JunctionNames)

// IT/security counters
const (
	RemoteAccessAttempts    = "remote_access_attempts"
	FailedLoginAttempts     = "failed_login_attempts"
	NetworkAnomalies        = "network_anomalies"
	FirewallAlerts          = "firewall_alerts"
	UnusualIPDetected       = "unusual_ip_detected"
	OffHoursAccess          = "off_hours_access"
	PrivilegedAccountAccess = "privileged_account_access"
	SCADAConfigChanges      = "scada_config_changes"
	NetworkTrafficMB        = "network_traffic_mb"
	PortScanDetected        = "port_scan_detected"
	VPNConnections          = "vpn_connections"
	DataExfiltrationFlag    = "data_exfiltration_flag"
)

// ITFeatures lists the IT/security counters in catalog order
var ITFeatures = [...]string{
	RemoteAccessAttempts,
	FailedLoginAttempts,
	NetworkAnomalies,
	FirewallAlerts,
	UnusualIPDetected,
	OffHoursAccess,
	PrivilegedAccountAccess,
	SCADAConfigChanges,
	NetworkTrafficMB,
	PortScanDetected,
	VPNConnections,
	DataExfiltrationFlag,
}

// Calendar and cyclical time encodings
const (
	Hour            = "hour"
	DayOfWeek       = "day_of_week"
	IsWeekend       = "is_weekend"
	IsNight         = "is_night"
	IsBusinessHours = "is_business_hours"
	HourSin         = "hour_sin"
	HourCos         = "hour_cos"
	DowSin          = "dow_sin"
	DowCos          = "dow_cos"
)

var CalendarFeatures = [...]string{Hour, DayOfWeek, IsWeekend, IsNight, IsBusinessHours}

var CyclicalFeatures = [...]string{HourSin, HourCos, DowSin, DowCos}

// Aggregates
const (
	TotalTankVolume           = "total_tank_volume"
	AvgTankLevel              = "avg_tank_level"
	TankLevelVariance         = "tank_level_variance"
	MinTankLevel              = "min_tank_level"
	MaxTankLevel              = "max_tank_level"
	TankLevelRange            = "tank_level_range"
	TotalPumpFlow             = "total_pump_flow"
	ActivePumps               = "active_pumps"
	AvgPumpFlow               = "avg_pump_flow"
	PumpEfficiency            = "pump_efficiency"
	AvgPressure               = "avg_pressure"
	PressureVariance          = "pressure_variance"
	MinPressure               = "min_pressure"
	MaxPressure               = "max_pressure"
	FlowPressureRatio         = "flow_pressure_ratio"
	TankFlowRatio             = "tank_flow_ratio"
	TotalSecurityEvents       = "total_security_events"
	CriticalSecurityScore     = "critical_security_score"
	AuthFailureRate           = "auth_failure_rate"
	SecurityPumpInteraction   = "security_pump_interaction"
	ConfigChangeDuringAnomaly = "config_change_during_anomaly"
	SystemHealthScore         = "system_health_score"
	OperationalEfficiency     = "operational_efficiency"
)

var AggregateFeatures = [...]string{
	TotalTankVolume,
	AvgTankLevel,
	TankLevelVariance,
	MinTankLevel,
	MaxTankLevel,
	TankLevelRange,
	TotalPumpFlow,
	ActivePumps,
	AvgPumpFlow,
	PumpEfficiency,
	AvgPressure,
	PressureVariance,
	MinPressure,
	MaxPressure,
	FlowPressureRatio,
	TankFlowRatio,
	TotalSecurityEvents,
	CriticalSecurityScore,
	AuthFailureRate,
	SecurityPumpInteraction,
	ConfigChangeDuringAnomaly,
	SystemHealthScore,
	OperationalEfficiency,
}

// RollingMetric identifies one of the base metrics rolling statistics are computed over
type RollingMetric int

const (
	RollTankVolume RollingMetric = iota
	RollPumpFlow
	RollAvgPressure
	RollSecurityEvents
	RollNetworkTraffic
)

// RollingMetrics in catalog order
var RollingMetrics = [...]RollingMetric{
	RollTankVolume,
	RollPumpFlow,
	RollAvgPressure,
	RollSecurityEvents,
	RollNetworkTraffic,
}

func (m RollingMetric) String() string {
	switch m {
	case RollTankVolume:
		return TotalTankVolume
	case RollPumpFlow:
		return TotalPumpFlow
	case RollAvgPressure:
		return AvgPressure
	case RollSecurityEvents:
		return TotalSecurityEvents
	case RollNetworkTraffic:
		return NetworkTrafficMB
	default:
		return "unknown"
	}
}

// RollingWindows are the trailing window sizes in hours (one tick = one hour)
var RollingWindows = [...]int{3, 6, 12, 24}

// Rolling statistic kinds
const (
	StatMean       = "roll_mean"
	StatStd        = "roll_std"
	StatRateChange = "rate_change"
)

var RollingStats = [...]string{StatMean, StatStd, StatRateChange}

func TankLevel(i int) string  { return fmt.Sprintf("L_T%d", i+1) }
func PumpFlow(i int) string   { return fmt.Sprintf("F_PU%d", i+1) }
func PumpStatus(i int) string { return fmt.Sprintf("S_PU%d", i+1) }
func Pressure(i int) string   { return "P_" + JunctionNames[i] }

// RollingName returns e.g. "total_pump_flow_roll_std_12h"
func RollingName(m RollingMetric, stat string, window int) string {
	return fmt.Sprintf("%s_%s_%dh", m, stat, window)
}

type catalog struct {
	names []string
	index map[string]int
}

var defaultCatalog = build()

func build() catalog {
	names := make([]string, 0, 160)

	for i := 0; i < TankCount; i++ {
		names = append(names, TankLevel(i))
	}
	for i := 0; i < PumpCount; i++ {
		names = append(names, PumpFlow(i), PumpStatus(i))
	}
	for i := range JunctionNames {
		names = append(names, Pressure(i))
	}
	names = append(names, ITFeatures[:]...)
	names = append(names, CalendarFeatures[:]...)
	names = append(names, CyclicalFeatures[:]...)
	names = append(names, AggregateFeatures[:]...)
	for _, m := range RollingMetrics {
		for _, w := range RollingWindows {
			for _, stat := range RollingStats {
				names = append(names, RollingName(m, stat, w))
			}
		}
	}

	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}
	return catalog{names: names, index: index}
}

// Names returns a copy of the ordered feature catalog
func Names() []string {
	out := make([]string, len(defaultCatalog.names))
	copy(out, defaultCatalog.names)
	return out
}

// Count is the number of features every point carries
func Count() int {
	return len(defaultCatalog.names)
}

// Index returns the vector position of a feature name
func Index(name string) (int, bool) {
	i, ok := defaultCatalog.index[name]
	return i, ok
}

// NameAt returns the feature name at vector position i, or "" when out of range
func NameAt(i int) string {
	if i < 0 || i >= len(defaultCatalog.names) {
		return ""
	}
	return defaultCatalog.names[i]
}

// Empty returns a feature map holding every catalog key set to 0
func Empty() map[string]float64 {
	m := make(map[string]float64, len(defaultCatalog.names))
	for _, n := range defaultCatalog.names {
		m[n] = 0
	}
	return m
}

// Vector encodes a feature map in catalog order; missing keys encode as 0
func Vector(features map[string]float64) []float64 {
	out := make([]float64, len(defaultCatalog.names))
	for i, n := range defaultCatalog.names {
		out[i] = features[n]
	}
	return out
}
