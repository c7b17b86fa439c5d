package config

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Cache TTLs are naturally expressed in days and weeks, which time.ParseDuration lacks.
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// Duration is a time.Duration that reads and writes "7d", "2w" or any Go duration in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML writes whole weeks and days with their own unit.
func (d Duration) MarshalYAML() (interface{}, error) {
	return FormatDuration(time.Duration(d)), nil
}

// FormatDuration is the inverse of ParseDuration for whole weeks and days.
func FormatDuration(d time.Duration) string {
	switch {
	case d != 0 && d%Week == 0:
		return fmt.Sprintf("%dw", d/Week)
	case d != 0 && d%Day == 0:
		return fmt.Sprintf("%dd", d/Day)
	default:
		return d.String()
	}
}

var (
	durationUnits = map[string]time.Duration{
		"ns": time.Nanosecond,
		"us": time.Microsecond,
		"µs": time.Microsecond,
		"ms": time.Millisecond,
		"s":  time.Second,
		"m":  time.Minute,
		"h":  time.Hour,
		"d":  Day,
		"w":  Week,
	}
	durationPart = regexp.MustCompile(`^([0-9]*\.?[0-9]+)([a-zµ]+)`)
)

// ParseDuration parses Go durations extended with d (day) and w (week), e.g. "1w2d" or "36h".
// An empty string is zero. Negative durations are rejected.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if !strings.ContainsAny(s, "dw") {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, err
		}
		if d < 0 {
			return 0, fmt.Errorf("negative duration: %s", s)
		}
		return d, nil
	}

	var total time.Duration
	rest := s
	for rest != "" {
		m := durationPart.FindStringSubmatch(rest)
		if m == nil {
			return 0, fmt.Errorf("invalid duration format: %s", s)
		}
		val, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number in duration %s: %w", s, err)
		}
		unit, ok := durationUnits[m[2]]
		if !ok {
			return 0, fmt.Errorf("unknown unit %q in duration %s", m[2], s)
		}
		total += time.Duration(val * float64(unit))
		rest = rest[len(m[0]):]
	}
	return total, nil
}

// Distance is a length in metres. YAML accepts plain numbers or "800m", "5km", "2mi".
type Distance float64

func (d *Distance) UnmarshalYAML(value *yaml.Node) error {
	var f float64
	if err := value.Decode(&f); err == nil {
		if f < 0 {
			return fmt.Errorf("negative distance: %v", f)
		}
		*d = Distance(f)
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	m, err := ParseDistance(s)
	if err != nil {
		return err
	}
	*d = Distance(m)
	return nil
}

// MarshalYAML writes whole kilometres as "km", everything else in metres.
func (d Distance) MarshalYAML() (interface{}, error) {
	m := float64(d)
	if m >= 1000 && math.Mod(m, 1000) == 0 {
		return fmt.Sprintf("%gkm", m/1000), nil
	}
	return fmt.Sprintf("%gm", m), nil
}

var distanceUnits = []struct {
	suffix string
	meters float64
}{
	// Longer suffixes first so "km" is not read as "m".
	{"km", 1000},
	{"mi", 1609.344},
	{"m", 1},
}

// ParseDistance parses "500", "500m", "1.5km" or "2mi" into metres.
func ParseDistance(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	mult, num := 1.0, s
	for _, u := range distanceUnits {
		if strings.HasSuffix(s, u.suffix) {
			mult, num = u.meters, strings.TrimSuffix(s, u.suffix)
			break
		}
	}

	val, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid distance %q: %w", s, err)
	}
	if val < 0 || math.IsNaN(val) || math.IsInf(val, 0) {
		return 0, fmt.Errorf("invalid distance %q: must be a finite non-negative number", s)
	}
	return val * mult, nil
}
