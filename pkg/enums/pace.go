package enums

import "fmt"

// Pace describes the intended effort level of a ride.
type Pace string

const (
	PaceChill Pace = "chill"
	PaceSpeed Pace = "speed"
	PaceRace  Pace = "race"
)

var validPaces = []Pace{PaceChill, PaceSpeed, PaceRace}

// String implements fmt.Stringer.
func (p Pace) String() string {
	return string(p)
}

// IsValid reports whether the value is a known Pace.
func (p Pace) IsValid() bool {
	for _, candidate := range validPaces {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePace converts raw input into a Pace.
func ParsePace(value string) (Pace, error) {
	for _, candidate := range validPaces {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pace %q", value)
}
