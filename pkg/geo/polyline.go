package geo

import (
	"errors"
	"math"
	"strings"
)

// ErrMalformedPolyline is returned when an encoded polyline ends mid-value.
var ErrMalformedPolyline = errors.New("malformed polyline")

const polylinePrecision = 1e5

// DecodePolyline decodes a Google encoded polyline (precision 1e-5) into points.
// Each value is a zig-zag signed delta split into 5-bit chunks offset by 63,
// with 0x20 marking continuation.
func DecodePolyline(encoded string) ([]Point, error) {
	var (
		pts      []Point
		lat, lon int64
		idx      int
	)

	next := func() (int64, error) {
		var result int64
		var shift uint
		for {
			if idx >= len(encoded) {
				return 0, ErrMalformedPolyline
			}
			b := int64(encoded[idx]) - 63
			idx++
			if b < 0 || b > 0x3f {
				return 0, ErrMalformedPolyline
			}
			result |= (b & 0x1f) << shift
			shift += 5
			if b < 0x20 {
				break
			}
		}
		if result&1 != 0 {
			return ^(result >> 1), nil
		}
		return result >> 1, nil
	}

	for idx < len(encoded) {
		dLat, err := next()
		if err != nil {
			return nil, err
		}
		dLon, err := next()
		if err != nil {
			return nil, err
		}
		lat += dLat
		lon += dLon
		pts = append(pts, Point{
			Lat: float64(lat) / polylinePrecision,
			Lon: float64(lon) / polylinePrecision,
		})
	}

	return pts, nil
}

// EncodePolyline is the inverse of DecodePolyline.
func EncodePolyline(pts []Point) string {
	var sb strings.Builder
	var prevLat, prevLon int64

	for _, p := range pts {
		lat := int64(math.Round(p.Lat * polylinePrecision))
		lon := int64(math.Round(p.Lon * polylinePrecision))
		encodeValue(&sb, lat-prevLat)
		encodeValue(&sb, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return sb.String()
}

func encodeValue(sb *strings.Builder, v int64) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte((0x20 | (u & 0x1f)) + 63))
		u >>= 5
	}
	sb.WriteByte(byte(u + 63))
}
