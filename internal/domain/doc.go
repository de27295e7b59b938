// Package domain models a single simulated weather station.
//
// # State
//
// A [Station] carries five scalar variables:
//
//	temperature     °C, unbounded
//	humidity        %, clamped to [0, 100]
//	pressure        hPa, unbounded
//	wind speed      m/s, clamped to >= 0
//	wind direction  degrees, wrapped to [0, 360)
//
// Every call to [Station.Advance] records one [Snapshot]. The history is
// append-only: its length always equals the number of Advance calls.
//
// # Update Rule
//
// Each step first rolls for an extreme event with probability 0.05. When one
// fires, one of storm, heatwave or cold snap is chosen uniformly and applies a
// one-shot shift drawn from a uniform range:
//
//	storm:      wind +U(5,15)   pressure -U(10,20)   humidity +U(10,30)
//	heatwave:   temp +U(3,7)    humidity -U(5,15)
//	cold_snap:  temp -U(3,7)    humidity +U(5,15)
//
// Baseline Gaussian noise is then added to every variable (σ = 0.5, 1.0, 0.2,
// 0.3 and 5 in the order above) and the bounded variables are normalized.
//
// # Randomness
//
// A Station never touches process-wide random state. All draws come from the
// [Rand] passed to [NewStation], so two stations built from [NewRand] with the
// same seed produce identical histories (timestamps aside, see [SetClock]).
//
// # Forecast
//
// [Forecast] is a naive least-squares trend over the last [ForecastWindow]
// samples, projected one step ahead. It is not a weather forecast.
package domain
