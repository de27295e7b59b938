package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	snap := Snapshot{
		Step: 3,
		Conditions: Conditions{
			Temperature:   21.46,
			Humidity:      49.6,
			Pressure:      1012.987,
			WindSpeed:     4.25,
			WindDirection: 357.4,
		},
	}

	t.Run("without event", func(t *testing.T) {
		want := "Location: London\n" +
			"Temperature: 21.5°C\n" +
			"Humidity: 50%\n" +
			"Pressure: 1012.99 hPa\n" +
			"Wind: 4.2 m/s @ 357°\n"
		assert.Equal(t, want, Report("London", snap))
	})

	t.Run("with event", func(t *testing.T) {
		snap.Event = EventColdSnap
		out := Report("London", snap)
		assert.Contains(t, out, "Event: cold_snap\n")
	})
}

func TestStation_ReportBeforeFirstStep(t *testing.T) {
	s := NewStation("Oslo", NewRand(1))
	out := s.Report()
	assert.Contains(t, out, "Location: Oslo\n")
	assert.Contains(t, out, "Temperature: 20.0°C\n")
	assert.Contains(t, out, "Pressure: 1013.25 hPa\n")
	assert.NotContains(t, out, "Event:")
}

func TestEventKind_RoundTrip(t *testing.T) {
	for _, kind := range []EventKind{EventNone, EventStorm, EventHeatwave, EventColdSnap} {
		parsed, err := ParseEventKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}

	_, err := ParseEventKind("tornado")
	assert.Error(t, err)
}

func TestSnapshot_JSON(t *testing.T) {
	snap := Snapshot{Step: 1, Conditions: DefaultConditions, Event: EventStorm}

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"storm"`)
	assert.Contains(t, string(data), `"pressure_hpa":1013.25`)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, EventStorm, decoded.Event)
	assert.Equal(t, DefaultConditions, decoded.Conditions)
}
