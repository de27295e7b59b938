package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGeocoder struct {
	result GeocodingResult
	err    error
	calls  int
}

func (m *mockGeocoder) ForwardGeocode(_ context.Context, _ string) (GeocodingResult, error) {
	m.calls++
	return m.result, m.err
}

func TestResolveStation(t *testing.T) {
	t.Run("nil geocoder", func(t *testing.T) {
		info, err := ResolveStation(context.Background(), "London", nil)
		require.NoError(t, err)
		assert.Equal(t, "none", info.GeoSource)
		assert.Equal(t, "London", info.Location)
	})

	t.Run("found", func(t *testing.T) {
		g := &mockGeocoder{result: GeocodingResult{Lat: 51.5, Lon: -0.12, FormattedAddress: "London, England, United Kingdom"}}
		info, err := ResolveStation(context.Background(), "London", g)
		require.NoError(t, err)
		assert.Equal(t, "forward", info.GeoSource)
		assert.Equal(t, 51.5, info.Lat)
		assert.Equal(t, -0.12, info.Lon)
		assert.Equal(t, 1, g.calls)
	})

	t.Run("no match", func(t *testing.T) {
		info, err := ResolveStation(context.Background(), "Nowhere", &mockGeocoder{})
		require.NoError(t, err)
		assert.Equal(t, "failed", info.GeoSource)
		assert.Zero(t, info.Lat)
	})

	t.Run("error", func(t *testing.T) {
		info, err := ResolveStation(context.Background(), "London", &mockGeocoder{err: errors.New("timeout")})
		require.Error(t, err)
		assert.Equal(t, "failed", info.GeoSource)
		assert.Equal(t, "London", info.Location)
	})
}
