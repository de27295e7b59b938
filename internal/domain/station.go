package domain

import (
	"math"
	"math/rand/v2"
	"sync"
)

const (
	// EventProbability is the per-step chance that an extreme event fires.
	EventProbability = 0.05

	tempNoiseSD     = 0.5
	humidityNoiseSD = 1.0
	pressureNoiseSD = 0.2
	windSpeedSD     = 0.3
	windDirSD       = 5.0
)

// Rand is the random source a Station draws from. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	NormFloat64() float64
	IntN(n int) int
}

// NewRand returns a PCG-backed generator seeded from seed. The same seed
// always yields the same stream.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Station is the evolving state of one simulated weather station together
// with its append-only log of snapshots. It is safe for one writer calling
// Advance and any number of concurrent readers.
type Station struct {
	location string
	rng      Rand

	mu      sync.RWMutex
	current Conditions
	history []Snapshot
}

// StationOption customizes a Station at construction.
type StationOption func(*Station)

// WithInitialConditions overrides DefaultConditions. Humidity, wind speed and
// wind direction are normalized the same way Advance normalizes them.
func WithInitialConditions(c Conditions) StationOption {
	return func(s *Station) {
		s.current = normalize(c)
	}
}

// NewStation creates a station at location that draws all randomness from rng.
func NewStation(location string, rng Rand, opts ...StationOption) *Station {
	s := &Station{
		location: location,
		rng:      rng,
		current:  DefaultConditions,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the immutable station label.
func (s *Station) Location() string { return s.location }

// Advance moves the simulation forward one step and returns the recorded snapshot.
//
// An extreme event, if drawn, is applied before the baseline noise so the
// event's deltas are themselves perturbed by the same step's noise.
func (s *Station) Advance() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	event := s.drawEvent()
	applyEvent(&next, event, s.rng)

	next.Temperature += s.rng.NormFloat64() * tempNoiseSD
	next.Humidity += s.rng.NormFloat64() * humidityNoiseSD
	next.Pressure += s.rng.NormFloat64() * pressureNoiseSD
	next.WindSpeed += s.rng.NormFloat64() * windSpeedSD
	next.WindDirection += s.rng.NormFloat64() * windDirSD

	s.current = normalize(next)

	snap := Snapshot{
		Step:       len(s.history) + 1,
		RecordedAt: clock.Now().UTC(),
		Conditions: s.current,
		Event:      event,
	}
	s.history = append(s.history, snap)
	return snap
}

func (s *Station) drawEvent() EventKind {
	if s.rng.Float64() >= EventProbability {
		return EventNone
	}
	return extremeEvents[s.rng.IntN(len(extremeEvents))]
}

func applyEvent(c *Conditions, event EventKind, rng Rand) {
	switch event {
	case EventStorm:
		c.WindSpeed += uniform(rng, 5, 15)
		c.Pressure -= uniform(rng, 10, 20)
		c.Humidity += uniform(rng, 10, 30)
	case EventHeatwave:
		c.Temperature += uniform(rng, 3, 7)
		c.Humidity -= uniform(rng, 5, 15)
	case EventColdSnap:
		c.Temperature -= uniform(rng, 3, 7)
		c.Humidity += uniform(rng, 5, 15)
	}
}

// uniform draws from [a, b).
func uniform(rng Rand, a, b float64) float64 {
	return a + (b-a)*rng.Float64()
}

// normalize clamps humidity to [0,100], wind speed to >= 0 and wraps the
// wind direction into [0,360). Temperature and pressure are unbounded.
func normalize(c Conditions) Conditions {
	c.Humidity = math.Max(0, math.Min(100, c.Humidity))
	c.WindSpeed = math.Max(0, c.WindSpeed)
	c.WindDirection = wrapDegrees(c.WindDirection)
	return c
}

func wrapDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	// -1e-15 + 360 rounds to 360.
	if d >= 360 {
		d = 0
	}
	return d
}

// Current returns the latest conditions.
func (s *Station) Current() Conditions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Latest returns the most recent snapshot, or false before the first step.
func (s *Station) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.history) == 0 {
		return Snapshot{}, false
	}
	return s.history[len(s.history)-1], true
}

// Len returns the number of recorded snapshots.
func (s *Station) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// History returns a copy of all snapshots in step order.
func (s *Station) History() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, len(s.history))
	copy(out, s.history)
	return out
}

// Series returns the recorded values of one variable, oldest first.
func (s *Station) Series(v Variable) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return series(s.history, v)
}

func series(history []Snapshot, v Variable) []float64 {
	out := make([]float64, len(history))
	for i := range history {
		out[i] = history[i].Value(v)
	}
	return out
}
