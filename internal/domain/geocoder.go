package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Geocoder resolves a station's free-form location label to coordinates.
type Geocoder interface {
	ForwardGeocode(ctx context.Context, query string) (GeocodingResult, error)
}

// StationInfo describes where a simulated station sits. Coordinates are zero
// when geocoding is disabled or found nothing.
type StationInfo struct {
	Location         string  `json:"location"`
	Lat              float64 `json:"lat,omitempty"`
	Lon              float64 `json:"lon,omitempty"`
	FormattedAddress string  `json:"formatted_address,omitempty"`
	GeoSource        string  `json:"geo_source"` // "forward", "failed", "none"
}

// ResolveStation geocodes the location label. A nil geocoder or a failed
// lookup is not an error: the station is simply reported without coordinates.
func ResolveStation(ctx context.Context, location string, g Geocoder) (StationInfo, error) {
	info := StationInfo{Location: location, GeoSource: "none"}
	if g == nil || location == "" {
		return info, nil
	}
	result, err := g.ForwardGeocode(ctx, location)
	if err != nil {
		info.GeoSource = "failed"
		return info, err
	}
	if result.FormattedAddress == "" {
		info.GeoSource = "failed"
		return info, nil
	}
	info.Lat = result.Lat
	info.Lon = result.Lon
	info.FormattedAddress = result.FormattedAddress
	info.GeoSource = "forward"
	return info, nil
}
