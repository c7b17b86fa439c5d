package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	orbgeo "github.com/paulmach/orb/geo"
)

// ToOrb converts a Point to an orb.Point (lon, lat order).
func ToOrb(p Point) orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// LineString converts a polyline to an orb.LineString.
func LineString(pts []Point) orb.LineString {
	ls := make(orb.LineString, len(pts))
	for i, p := range pts {
		ls[i] = ToOrb(p)
	}
	return ls
}

// PathLength returns the geodesic length of a polyline in meters.
func PathLength(pts []Point) float64 {
	if len(pts) < 2 {
		return 0
	}
	return orbgeo.Length(LineString(pts))
}

// RouteFeatureCollection wraps a polyline as a single LineString feature.
func RouteFeatureCollection(pts []Point, props map[string]interface{}) *geojson.FeatureCollection {
	f := geojson.NewFeature(LineString(pts))
	for k, v := range props {
		f.Properties[k] = v
	}
	if len(pts) > 0 {
		b := LineString(pts).Bound()
		f.BBox = geojson.NewBBox(b)
	}

	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return fc
}
