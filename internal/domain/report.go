package domain

import (
	"fmt"
	"strings"
)

// Report renders the fixed multi-line console summary of one snapshot.
func Report(location string, snap Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Location: %s\n", location)
	fmt.Fprintf(&b, "Temperature: %.1f°C\n", snap.Temperature)
	fmt.Fprintf(&b, "Humidity: %.0f%%\n", snap.Humidity)
	fmt.Fprintf(&b, "Pressure: %.2f hPa\n", snap.Pressure)
	fmt.Fprintf(&b, "Wind: %.1f m/s @ %.0f°\n", snap.WindSpeed, snap.WindDirection)
	if snap.Event.IsEvent() {
		fmt.Fprintf(&b, "Event: %s\n", snap.Event)
	}
	return b.String()
}

// Report renders the latest snapshot, or the initial conditions before the first step.
func (s *Station) Report() string {
	snap, ok := s.Latest()
	if !ok {
		snap = Snapshot{Conditions: s.Current()}
	}
	return Report(s.location, snap)
}
