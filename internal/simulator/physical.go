package simulator

import "aqua-guard/internal/schema"

// Physical bounds enforced after every tick
const (
	MinTankLevel = 10.0
	MaxTankLevel = 100.0
	MinPumpFlow  = 50.0
	MaxPumpFlow  = 200.0
	MinPressure  = 20.0
	MaxPressure  = 80.0

	tankSetpoint      = 60.0
	tankDriftRate     = 0.01
	tankFillRate      = 0.5
	tankDrainRate     = -0.3
	pumpStartChance   = 0.1
	pumpStopChance    = 0.05
	pressureBase      = 40.0
	pressureFlowScale = 10.0

	initialActivePumps = 5
)

// PhysicalState is the simulated plant: tanks, pumps and junction pressures
type PhysicalState struct {
	TankLevels        [schema.TankCount]float64     `json:"tankLevels"`
	PumpFlows         [schema.PumpCount]float64     `json:"pumpFlows"`
	PumpStatuses      [schema.PumpCount]int         `json:"pumpStatuses"`
	JunctionPressures [schema.JunctionCount]float64 `json:"junctionPressures"`
}

// ActivePumps counts pumps whose status bit is set
func (s PhysicalState) ActivePumps() int {
	n := 0
	for _, st := range s.PumpStatuses {
		n += st
	}
	return n
}

// TotalFlow sums all pump flows
func (s PhysicalState) TotalFlow() float64 {
	total := 0.0
	for _, f := range s.PumpFlows {
		total += f
	}
	return total
}

// Simulator advances PhysicalState one tick at a time. It is not safe for
// concurrent use; the generator is its only caller.
type Simulator struct {
	state PhysicalState
	rng   Source
}

// NewSimulator builds a simulator with a randomized starting state: tanks in
// [50,80), pressures in [40,60) and the first five pumps running at [80,140).
func NewSimulator(rng Source) *Simulator {
	var st PhysicalState
	for i := range st.TankLevels {
		st.TankLevels[i] = uniform(rng, 50, 80)
	}
	for i := range st.JunctionPressures {
		st.JunctionPressures[i] = uniform(rng, 40, 60)
	}
	for i := 0; i < initialActivePumps; i++ {
		st.PumpStatuses[i] = 1
		st.PumpFlows[i] = uniform(rng, 80, 140)
	}
	return &Simulator{state: st, rng: rng}
}

// NewSimulatorFromState starts from a known state, for reproducible runs
func NewSimulatorFromState(state PhysicalState, rng Source) *Simulator {
	return &Simulator{state: state, rng: rng}
}

// State returns a copy of the current physical state
func (s *Simulator) State() PhysicalState {
	return s.state
}

// Step advances tanks, then pumps, then junction pressures by one tick
func (s *Simulator) Step() PhysicalState {
	s.stepTanks()
	s.stepPumps()
	s.stepPressures()
	return s.state
}

func (s *Simulator) stepTanks() {
	baseChange := tankDrainRate
	if s.state.ActivePumps() > 0 {
		baseChange = tankFillRate
	}

	for i, level := range s.state.TankLevels {
		drift := (tankSetpoint - level) * tankDriftRate
		walk := uniform(s.rng, -0.4, 0.4)
		s.state.TankLevels[i] = clamp(level+baseChange+drift+walk, MinTankLevel, MaxTankLevel)
	}
}

func (s *Simulator) stepPumps() {
	// The stop check sees the status after the start check, so a pump can
	// start and stop within one tick.
	for i := range s.state.PumpStatuses {
		if s.state.PumpStatuses[i] == 1 {
			flow := uniform(s.rng, 100, 150) + uniform(s.rng, -5, 5)
			s.state.PumpFlows[i] = clamp(flow, MinPumpFlow, MaxPumpFlow)
		} else if chance(s.rng, pumpStartChance) {
			s.state.PumpStatuses[i] = 1
			s.state.PumpFlows[i] = uniform(s.rng, 80, 120)
		} else {
			s.state.PumpFlows[i] = 0
		}

		if s.state.PumpStatuses[i] == 1 && chance(s.rng, pumpStopChance) {
			s.state.PumpStatuses[i] = 0
			s.state.PumpFlows[i] = 0
		}
	}
}

func (s *Simulator) stepPressures() {
	base := pressureBase + s.state.TotalFlow()/pressureFlowScale
	for i := range s.state.JunctionPressures {
		s.state.JunctionPressures[i] = clamp(base+uniform(s.rng, -2.5, 2.5), MinPressure, MaxPressure)
	}
}
