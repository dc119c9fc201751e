package simulator

import "aqua-guard/internal/schema"

// ITSample is one tick of synthetic IT/security counters. Every field is >= 0.
type ITSample struct {
	RemoteAccessAttempts    float64
	FailedLoginAttempts     float64
	NetworkAnomalies        float64
	FirewallAlerts          float64
	UnusualIPDetected       float64
	OffHoursAccess          float64
	PrivilegedAccountAccess float64
	SCADAConfigChanges      float64
	NetworkTrafficMB        float64
	PortScanDetected        float64
	VPNConnections          float64
	DataExfiltrationFlag    float64
}

// SecurityEvents is the sum of the event counters that feed total_security_events
func (s ITSample) SecurityEvents() float64 {
	return s.RemoteAccessAttempts + s.FailedLoginAttempts + s.FirewallAlerts + s.NetworkAnomalies
}

// Features returns all twelve counters keyed by feature name
func (s ITSample) Features() map[string]float64 {
	return map[string]float64{
		schema.RemoteAccessAttempts:    s.RemoteAccessAttempts,
		schema.FailedLoginAttempts:     s.FailedLoginAttempts,
		schema.NetworkAnomalies:        s.NetworkAnomalies,
		schema.FirewallAlerts:          s.FirewallAlerts,
		schema.UnusualIPDetected:       s.UnusualIPDetected,
		schema.OffHoursAccess:          s.OffHoursAccess,
		schema.PrivilegedAccountAccess: s.PrivilegedAccountAccess,
		schema.SCADAConfigChanges:      s.SCADAConfigChanges,
		schema.NetworkTrafficMB:        s.NetworkTrafficMB,
		schema.PortScanDetected:        s.PortScanDetected,
		schema.VPNConnections:          s.VPNConnections,
		schema.DataExfiltrationFlag:    s.DataExfiltrationFlag,
	}
}

// ITGenerator samples IT/security counters. It keeps no memory across ticks.
type ITGenerator struct {
	rng Source
}

func NewITGenerator(rng Source) *ITGenerator {
	return &ITGenerator{rng: rng}
}

// Sample draws one tick of counters
func (g *ITGenerator) Sample() ITSample {
	rng := g.rng
	baseEvents := float64(intn(rng, 3))
	baseTraffic := uniform(rng, 500, 700)

	var s ITSample
	s.RemoteAccessAttempts = baseEvents
	if chance(rng, 0.1) {
		s.RemoteAccessAttempts += float64(intn(rng, 5))
	}
	s.FailedLoginAttempts = float64(intn(rng, 2))
	s.NetworkAnomalies = flag(rng, 0.05)
	if chance(rng, 0.08) {
		s.FirewallAlerts = float64(intn(rng, 3))
	}
	s.UnusualIPDetected = flag(rng, 0.03)
	s.OffHoursAccess = flag(rng, 0.15)
	s.PrivilegedAccountAccess = flag(rng, 0.1)
	s.SCADAConfigChanges = flag(rng, 0.02)
	s.NetworkTrafficMB = baseTraffic + uniform(rng, -50, 50)
	s.PortScanDetected = flag(rng, 0.02)
	s.VPNConnections = float64(5 + intn(rng, 10))
	s.DataExfiltrationFlag = flag(rng, 0.01)
	return s
}

func flag(rng Source, p float64) float64 {
	if chance(rng, p) {
		return 1
	}
	return 0
}
