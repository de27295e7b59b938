package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind tags a snapshot with the extreme event that fired on that step.
// The zero value is EventNone.
type EventKind int

const (
	EventNone EventKind = iota
	EventStorm
	EventHeatwave
	EventColdSnap
)

// extremeEvents lists the kinds eligible for selection, in draw order.
var extremeEvents = [...]EventKind{EventStorm, EventHeatwave, EventColdSnap}

// String returns the wire name of the event. EventNone renders as "".
func (k EventKind) String() string {
	switch k {
	case EventStorm:
		return "storm"
	case EventHeatwave:
		return "heatwave"
	case EventColdSnap:
		return "cold_snap"
	default:
		return ""
	}
}

// IsEvent reports whether k is an actual extreme event.
func (k EventKind) IsEvent() bool { return k != EventNone }

// ParseEventKind is the inverse of String.
func ParseEventKind(s string) (EventKind, error) {
	switch s {
	case "":
		return EventNone, nil
	case "storm":
		return EventStorm, nil
	case "heatwave":
		return EventHeatwave, nil
	case "cold_snap":
		return EventColdSnap, nil
	default:
		return EventNone, fmt.Errorf("unknown event kind %q", s)
	}
}

func (k EventKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *EventKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseEventKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Conditions holds the five scalar weather variables.
type Conditions struct {
	Temperature   float64 `json:"temperature_c"`
	Humidity      float64 `json:"humidity_pct"`
	Pressure      float64 `json:"pressure_hpa"`
	WindSpeed     float64 `json:"wind_speed_ms"`
	WindDirection float64 `json:"wind_direction_deg"`
}

// DefaultConditions are the starting values of a freshly built station.
var DefaultConditions = Conditions{
	Temperature:   20.0,
	Humidity:      50.0,
	Pressure:      1013.25,
	WindSpeed:     5.0,
	WindDirection: 0,
}

// Snapshot is the post-update state recorded after one step.
type Snapshot struct {
	Step       int       `json:"step"`
	RecordedAt time.Time `json:"recorded_at"`
	Conditions
	Event EventKind `json:"event"`
}

// Variable selects one of the snapshot's weather variables.
type Variable int

const (
	VarTemperature Variable = iota
	VarHumidity
	VarPressure
	VarWindSpeed
	VarWindDirection
)

// Variables lists every Variable in column order.
var Variables = []Variable{VarTemperature, VarHumidity, VarPressure, VarWindSpeed, VarWindDirection}

func (v Variable) String() string {
	switch v {
	case VarTemperature:
		return "temperature"
	case VarHumidity:
		return "humidity"
	case VarPressure:
		return "pressure"
	case VarWindSpeed:
		return "wind_speed"
	case VarWindDirection:
		return "wind_direction"
	default:
		return fmt.Sprintf("variable(%d)", int(v))
	}
}

// Value extracts the variable from c.
func (c Conditions) Value(v Variable) float64 {
	switch v {
	case VarTemperature:
		return c.Temperature
	case VarHumidity:
		return c.Humidity
	case VarPressure:
		return c.Pressure
	case VarWindSpeed:
		return c.WindSpeed
	case VarWindDirection:
		return c.WindDirection
	default:
		return 0
	}
}
