package domain

// ForecastWindow is the number of most recent samples a trend is fitted to.
const ForecastWindow = 10

// Forecast projects the next value of a series one step ahead using an
// ordinary least-squares line over the last ForecastWindow samples.
//
// An empty series forecasts 0 and a single sample forecasts itself.
func Forecast(values []float64) float64 {
	if len(values) > ForecastWindow {
		values = values[len(values)-ForecastWindow:]
	}
	n := len(values)
	switch n {
	case 0:
		return 0
	case 1:
		return values[0]
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX

	var slope float64
	if denom != 0 {
		slope = (fn*sumXY - sumX*sumY) / denom
	}
	intercept := (sumY - slope*sumX) / fn
	return intercept + slope*fn
}

// Projection is a one-step-ahead forecast of every variable.
type Projection struct {
	Step int `json:"step"`
	Conditions
}

// Forecast projects one variable of the station's history.
func (s *Station) Forecast(v Variable) float64 {
	return Forecast(s.Series(v))
}

// ForecastAll projects every variable from a single consistent view of the history.
func (s *Station) ForecastAll() Projection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Projection{
		Step: len(s.history) + 1,
		Conditions: Conditions{
			Temperature:   Forecast(series(s.history, VarTemperature)),
			Humidity:      Forecast(series(s.history, VarHumidity)),
			Pressure:      Forecast(series(s.history, VarPressure)),
			WindSpeed:     Forecast(series(s.history, VarWindSpeed)),
			WindDirection: Forecast(series(s.history, VarWindDirection)),
		},
	}
}
