package geo

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineString_LonLatOrder(t *testing.T) {
	ls := LineString([]Point{{Lat: 1, Lon: 2}, {Lat: 3, Lon: 4}})
	require.Len(t, ls, 2)
	assert.Equal(t, orb.Point{2, 1}, ls[0])
	assert.Equal(t, orb.Point{4, 3}, ls[1])
}

func TestPathLength(t *testing.T) {
	assert.Equal(t, 0.0, PathLength(nil))
	assert.Equal(t, 0.0, PathLength([]Point{{Lat: 1, Lon: 1}}))

	pts := Interpolate(Point{Lat: 0, Lon: 0}, Point{Lat: 0, Lon: 1}, 5)
	// Orb uses a slightly different earth radius; 0.5% is plenty.
	assert.InEpsilon(t, Distance(pts[0], pts[4]), PathLength(pts), 0.005)
}

func TestRouteFeatureCollection(t *testing.T) {
	pts := []Point{{Lat: 24.86, Lon: 67.00}, {Lat: 24.87, Lon: 67.01}}
	fc := RouteFeatureCollection(pts, map[string]interface{}{"source": "synthetic"})
	require.Len(t, fc.Features, 1)

	f := fc.Features[0]
	assert.Equal(t, "synthetic", f.Properties["source"])
	_, ok := f.Geometry.(orb.LineString)
	assert.True(t, ok, "geometry should be a LineString")

	raw, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"FeatureCollection"`)
	assert.Contains(t, string(raw), `"LineString"`)
}
