package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Reference sample from the encoded polyline algorithm documentation.
const samplePolyline = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

func TestDecodePolyline(t *testing.T) {
	pts, err := DecodePolyline(samplePolyline)
	require.NoError(t, err)
	require.Len(t, pts, 3)

	want := []Point{
		{Lat: 38.5, Lon: -120.2},
		{Lat: 40.7, Lon: -120.95},
		{Lat: 43.252, Lon: -126.453},
	}
	for i := range want {
		assert.InDelta(t, want[i].Lat, pts[i].Lat, 1e-9)
		assert.InDelta(t, want[i].Lon, pts[i].Lon, 1e-9)
	}
}

func TestEncodePolyline(t *testing.T) {
	pts := []Point{
		{Lat: 38.5, Lon: -120.2},
		{Lat: 40.7, Lon: -120.95},
		{Lat: 43.252, Lon: -126.453},
	}
	assert.Equal(t, samplePolyline, EncodePolyline(pts))
}

func TestDecodePolyline_Edges(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		pts, err := DecodePolyline("")
		assert.NoError(t, err)
		assert.Empty(t, pts)
	})

	t.Run("Truncated", func(t *testing.T) {
		// Drop the trailing chunk of the last longitude.
		_, err := DecodePolyline(samplePolyline[:len(samplePolyline)-1])
		assert.ErrorIs(t, err, ErrMalformedPolyline)
	})

	t.Run("LatWithoutLon", func(t *testing.T) {
		_, err := DecodePolyline("_p~iF")
		assert.ErrorIs(t, err, ErrMalformedPolyline)
	})

	t.Run("InvalidByte", func(t *testing.T) {
		_, err := DecodePolyline("_p~iF ps|U")
		assert.ErrorIs(t, err, ErrMalformedPolyline)
	})
}

func TestPolyline_RoundTripKarachi(t *testing.T) {
	pts := []Point{
		{Lat: 24.86073, Lon: 67.00112},
		{Lat: 24.86101, Lon: 67.00250},
		{Lat: 24.85990, Lon: 67.00399},
	}
	decoded, err := DecodePolyline(EncodePolyline(pts))
	require.NoError(t, err)
	require.Len(t, decoded, len(pts))
	for i := range pts {
		assert.InDelta(t, pts[i].Lat, decoded[i].Lat, 1e-9)
		assert.InDelta(t, pts[i].Lon, decoded[i].Lon, 1e-9)
	}
}
