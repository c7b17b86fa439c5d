package model

import (
	"encoding/json"
	"sort"
	"time"

	"musallago/pkg/geo"
)

// PlaceType classifies a prayer space.
type PlaceType string

const (
	PlaceMasjid  PlaceType = "masjid"
	PlaceMusalla PlaceType = "musalla"
	PlaceHome    PlaceType = "home"
	PlaceOffice  PlaceType = "office"
	PlaceShop    PlaceType = "shop"
	PlaceOther   PlaceType = "other"
)

// ParsePlaceType maps a raw type string to a PlaceType. Unknown values map to PlaceOther.
func ParsePlaceType(s string) PlaceType {
	switch t := PlaceType(s); t {
	case PlaceMasjid, PlaceMusalla, PlaceHome, PlaceOffice, PlaceShop:
		return t
	default:
		return PlaceOther
	}
}

// Amenity is a facility available at a place.
type Amenity string

const (
	AmenityWuzu      Amenity = "wuzu"
	AmenityWashroom  Amenity = "washroom"
	AmenityWomenArea Amenity = "women_area"
)

func knownAmenity(a Amenity) bool {
	return a == AmenityWuzu || a == AmenityWashroom || a == AmenityWomenArea
}

// Amenities is a set of amenities. It serializes as a sorted JSON array.
type Amenities map[Amenity]struct{}

// NewAmenities builds a set from raw values, dropping unknown entries.
func NewAmenities(vals ...string) Amenities {
	set := make(Amenities, len(vals))
	for _, v := range vals {
		if a := Amenity(v); knownAmenity(a) {
			set[a] = struct{}{}
		}
	}
	return set
}

// Has reports whether the set contains a.
func (a Amenities) Has(am Amenity) bool {
	_, ok := a[am]
	return ok
}

// List returns the amenities in sorted order.
func (a Amenities) List() []Amenity {
	out := make([]Amenity, 0, len(a))
	for am := range a {
		out = append(out, am)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (a Amenities) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.List())
}

func (a *Amenities) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = NewAmenities(raw...)
	return nil
}

// Place is a prayer space as served to the UI.
type Place struct {
	ID        string    `json:"id"` // UUID
	Title     string    `json:"title"`
	Type      PlaceType `json:"type"`
	Lat       float64   `json:"latitude"`
	Lon       float64   `json:"longitude"`
	City      string    `json:"city"`
	Capacity  *int      `json:"capacity,omitempty"`
	Amenities Amenities `json:"amenities"`
	Photo     string    `json:"photo,omitempty"`
	AvgRating *float64  `json:"avg_rating,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// DistanceM is relative to whatever coordinate the place was last served for.
	// It is recomputed on every serve and never trusted from cache.
	DistanceM *float64 `json:"distance_m,omitempty"`
}

// Point returns the place coordinate.
func (p *Place) Point() geo.Point {
	return geo.Point{Lat: p.Lat, Lon: p.Lon}
}

// WithDistanceFrom returns a copy annotated with its distance from origin.
func (p Place) WithDistanceFrom(origin geo.Point) Place {
	d := geo.Distance(origin, p.Point())
	p.DistanceM = &d
	return p
}

// Distance returns DistanceM and whether it has been computed.
func (p *Place) Distance() (float64, bool) {
	if p.DistanceM == nil {
		return 0, false
	}
	return *p.DistanceM, true
}

// CacheStats describes the offline place cache for the diagnostics screen.
type CacheStats struct {
	PlacesCount    int        `json:"placesCount"`
	LastUpdate     *time.Time `json:"lastUpdate"`
	CacheSizeBytes int64      `json:"cacheSize"`
}
