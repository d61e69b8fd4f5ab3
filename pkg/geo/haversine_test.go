package geo

import (
	"math"
	"testing"
)

func TestDistanceKMZeroForSamePoint(t *testing.T) {
	d := DistanceKM(40.4168, -3.7038, 40.4168, -3.7038)
	if d != 0 {
		t.Fatalf("expected 0 distance, got %f", d)
	}
}

func TestDistanceKMKnownPair(t *testing.T) {
	// Madrid -> Barcelona, roughly 505 km.
	d := DistanceKM(40.4168, -3.7038, 41.3874, 2.1686)
	if math.Abs(d-505) > 10 {
		t.Fatalf("expected ~505km, got %f", d)
	}
}

func TestWithinRadiusKM(t *testing.T) {
	lat, lon := 40.4168, -3.7038
	nearbyLat, nearbyLon := 40.45, -3.70

	if !WithinRadiusKM(lat, lon, nearbyLat, nearbyLon, 10) {
		t.Fatal("expected nearby point within 10km")
	}
	if WithinRadiusKM(lat, lon, 41.3874, 2.1686, 10) {
		t.Fatal("expected Barcelona outside 10km of Madrid")
	}
	if WithinRadiusKM(lat, lon, lat, lon, 0) {
		t.Fatal("expected zero radius to reject everything")
	}
}
