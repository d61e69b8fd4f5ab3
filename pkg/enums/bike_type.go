package enums

import "fmt"

// BikeType identifies the kind of bike a ride is planned for.
type BikeType string

const (
	BikeTypeRoad BikeType = "road"
	BikeTypeMTB  BikeType = "mtb"
)

var validBikeTypes = []BikeType{BikeTypeRoad, BikeTypeMTB}

// String implements fmt.Stringer.
func (b BikeType) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BikeType.
func (b BikeType) IsValid() bool {
	for _, candidate := range validBikeTypes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBikeType converts raw input into a BikeType.
func ParseBikeType(value string) (BikeType, error) {
	for _, candidate := range validBikeTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bike type %q", value)
}
