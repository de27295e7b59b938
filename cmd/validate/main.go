// Command validate checks a simulator CSV export against the constraints every
// recorded snapshot must hold: row count, clamped and wrapped ranges, event
// frequency and step-to-step continuity.
//
// Usage:
//
//	go run ./cmd/validate -csv out/run.csv -steps 500
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/couchcryptid/weather-station-sim/internal/domain"
	"github.com/couchcryptid/weather-station-sim/internal/export"
)

// Largest per-step change a snapshot may show: eight noise standard
// deviations plus, for event rows, the largest shift an event can apply.
var (
	noiseJump = domain.Conditions{Temperature: 4, Humidity: 8, Pressure: 1.6, WindSpeed: 2.4, WindDirection: 40}
	eventJump = domain.Conditions{Temperature: 7, Humidity: 30, Pressure: 20, WindSpeed: 15}
)

// minRowsForRate is the smallest export whose event rate is worth checking.
const minRowsForRate = 1000

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvPath := flag.String("csv", "", "path to a simulator CSV export")
	steps := flag.Int("steps", -1, "expected number of rows (-1 skips the check)")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*csvPath, *steps, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(path string, expectedSteps int, out io.Writer) int {
	fmt.Fprintln(out, "=== Weather Station Export Validation ===")
	fmt.Fprintln(out)

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(out, "FATAL: open export: %v\n", err)
		return 1
	}
	defer f.Close()

	snapshots, err := export.ReadCSV(f)
	if err != nil {
		fmt.Fprintf(out, "FATAL: parse export: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateRowCount(snapshots, expectedSteps),
		validateRanges(snapshots),
		validateEventRate(snapshots),
		validateContinuity(snapshots),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintf(out, "\nRows: %d, events: %d\n", len(snapshots), countEvents(snapshots))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func countEvents(snapshots []domain.Snapshot) int {
	n := 0
	for i := range snapshots {
		if snapshots[i].Event.IsEvent() {
			n++
		}
	}
	return n
}

// ── Phase 1: Row Count ──

func validateRowCount(snapshots []domain.Snapshot, expected int) *phase {
	p := &phase{name: "Phase 1: Row Count"}
	if expected >= 0 && len(snapshots) != expected {
		p.errorf("expected %d rows, got %d", expected, len(snapshots))
	}
	return p
}

// ── Phase 2: Ranges ──
// Humidity in [0,100], wind speed >= 0, wind direction in [0,360), all finite.

func validateRanges(snapshots []domain.Snapshot) *phase {
	p := &phase{name: "Phase 2: Ranges (clamp and wrap)"}
	for i := range snapshots {
		s := &snapshots[i]
		for _, v := range domain.Variables {
			if x := s.Value(v); math.IsNaN(x) || math.IsInf(x, 0) {
				p.errorf("step %d: %s is not finite", s.Step, v)
			}
		}
		if s.Humidity < 0 || s.Humidity > 100 {
			p.errorf("step %d: humidity %g outside [0,100]", s.Step, s.Humidity)
		}
		if s.WindSpeed < 0 {
			p.errorf("step %d: wind speed %g is negative", s.Step, s.WindSpeed)
		}
		if s.WindDirection < 0 || s.WindDirection >= 360 {
			p.errorf("step %d: wind direction %g outside [0,360)", s.Step, s.WindDirection)
		}
	}
	return p
}

// ── Phase 3: Event Rate ──
// Long runs must fire events close to EventProbability (five sigma band).

func validateEventRate(snapshots []domain.Snapshot) *phase {
	p := &phase{name: "Phase 3: Event Rate"}
	n := len(snapshots)
	if n < minRowsForRate {
		return p
	}
	rate := float64(countEvents(snapshots)) / float64(n)
	tolerance := 5 * math.Sqrt(domain.EventProbability*(1-domain.EventProbability)/float64(n))
	if math.Abs(rate-domain.EventProbability) > tolerance {
		p.errorf("event rate %.4f outside %.2f ± %.4f over %d rows", rate, domain.EventProbability, tolerance, n)
	}
	return p
}

// ── Phase 4: Continuity ──
// Consecutive rows may only differ by noise, plus an event's shift on event rows.

func validateContinuity(snapshots []domain.Snapshot) *phase {
	p := &phase{name: "Phase 4: Step Continuity"}
	for i := 1; i < len(snapshots); i++ {
		prev, cur := &snapshots[i-1], &snapshots[i]
		for _, v := range domain.Variables {
			limit := noiseJump.Value(v)
			if cur.Event.IsEvent() {
				limit += eventJump.Value(v)
			}
			if d := jump(v, prev.Value(v), cur.Value(v)); d > limit {
				p.errorf("step %d: %s moved %.3f (limit %.3f, event %q)", cur.Step, v, d, limit, cur.Event)
			}
		}
	}
	return p
}

// jump is the absolute change between two readings; wind direction uses the
// shorter arc around the compass.
func jump(v domain.Variable, from, to float64) float64 {
	d := math.Abs(to - from)
	if v == domain.VarWindDirection && d > 180 {
		d = 360 - d
	}
	return d
}
