package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for one rollout tick.
const (
	PhaseControl = "control"
	PhasePhysics = "physics"
	PhaseScoring = "scoring"
)

// stepSample holds timing data for a single tick.
type stepSample struct {
	tick   time.Duration
	phases map[string]time.Duration
}

// StepTimer tracks tick timing over a rolling window.
type StepTimer struct {
	windowSize  int
	samples     []stepSample
	writeIndex  int
	sampleCount int

	current    map[string]time.Duration
	tickStart  time.Time
	phaseStart time.Time
	lastPhase  string
}

// NewStepTimer creates a timer averaging over windowSize ticks.
func NewStepTimer(windowSize int) *StepTimer {
	if windowSize < 1 {
		windowSize = 60
	}
	return &StepTimer{
		windowSize: windowSize,
		samples:    make([]stepSample, windowSize),
		current:    make(map[string]time.Duration),
	}
}

// StartTick begins timing a new tick.
func (p *StepTimer) StartTick() {
	if p == nil {
		return
	}
	p.tickStart = time.Now()
	p.current = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase ends the running phase, if any, and starts timing phase.
func (p *StepTimer) StartPhase(phase string) {
	if p == nil {
		return
	}
	now := time.Now()
	if p.lastPhase != "" {
		p.current[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndTick finishes timing the current tick and records the sample.
func (p *StepTimer) EndTick() {
	if p == nil {
		return
	}
	now := time.Now()
	if p.lastPhase != "" {
		p.current[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.samples[p.writeIndex] = stepSample{tick: now.Sub(p.tickStart), phases: p.current}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
	p.lastPhase = ""
}

// StepStats holds aggregated tick timing.
type StepStats struct {
	AvgTick        time.Duration
	MinTick        time.Duration
	MaxTick        time.Duration
	PhaseAvg       map[string]time.Duration
	PhasePct       map[string]float64
	TicksPerSecond float64
}

// Stats computes aggregated statistics over the current window.
func (p *StepTimer) Stats() StepStats {
	out := StepStats{
		PhaseAvg: make(map[string]time.Duration),
		PhasePct: make(map[string]float64),
	}
	if p == nil || p.sampleCount == 0 {
		return out
	}

	var total time.Duration
	sums := make(map[string]time.Duration)
	for i := range p.sampleCount {
		s := p.samples[i]
		total += s.tick
		if i == 0 || s.tick < out.MinTick {
			out.MinTick = s.tick
		}
		out.MaxTick = max(out.MaxTick, s.tick)
		for phase, d := range s.phases {
			sums[phase] += d
		}
	}

	out.AvgTick = total / time.Duration(p.sampleCount)
	for phase, sum := range sums {
		out.PhaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if out.AvgTick > 0 {
			out.PhasePct[phase] = float64(out.PhaseAvg[phase]) / float64(out.AvgTick) * 100
		}
	}
	if out.AvgTick > 0 {
		out.TicksPerSecond = float64(time.Second) / float64(out.AvgTick)
	}
	return out
}

// LogValue implements slog.LogValuer for structured logging.
func (s StepStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTick.Microseconds()),
		slog.Int64("min_tick_us", s.MinTick.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTick.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}
	for _, phase := range []string{PhaseControl, PhasePhysics, PhaseScoring} {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}
