package api

import (
	"fmt"
	"math"
	"net/url"
	"strconv"

	"musallago/pkg/geo"
)

// parsePoint reads a coordinate pair from the query and rejects anything out of range.
func parsePoint(q url.Values, latKey, lonKey string) (geo.Point, error) {
	latStr, lonStr := q.Get(latKey), q.Get(lonKey)
	if latStr == "" || lonStr == "" {
		return geo.Point{}, fmt.Errorf("%s and %s are required", latKey, lonKey)
	}
	lat, err1 := strconv.ParseFloat(latStr, 64)
	lon, err2 := strconv.ParseFloat(lonStr, 64)
	if err1 != nil || err2 != nil {
		return geo.Point{}, fmt.Errorf("invalid %s/%s", latKey, lonKey)
	}
	p := geo.Point{Lat: lat, Lon: lon}
	if err := geo.ValidatePoint(p); err != nil {
		return geo.Point{}, err
	}
	return p, nil
}

// parseRadius reads a positive finite radius in metres, or returns def when absent.
func parseRadius(q url.Values, key string, def float64) (float64, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	r, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive number of metres", key)
	}
	return r, nil
}
