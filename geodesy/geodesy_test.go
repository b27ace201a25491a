package geodesy

import (
	"errors"
	"math"
	"testing"
)

func TestMoveByBearingRoundTrip(t *testing.T) {
	origin := LatLon{Lat: 50, Lon: 5}

	for _, meters := range []float64{0.3, 3, 10, 50} {
		for bearing := 0.0; bearing < 360; bearing += 45 {
			moved := MoveByBearing(origin.Lat, origin.Lon, bearing, meters)

			distance, err := DistanceBetween(moved, origin)
			if err != nil {
				t.Fatalf("DistanceBetween failed: %v", err)
			}
			if math.Abs(distance-meters) >= 0.03 {
				t.Errorf("bearing %v, %v m: measured %v m, difference more than 3 cm", bearing, meters, distance)
			}
		}
	}
}

func TestMoveByBearingDirection(t *testing.T) {
	movedLat1 := MoveByBearing(50, 5, 0, 10).Lat
	movedLon1 := MoveByBearing(50, 5, 90, 10).Lon
	movedLat2 := MoveByBearing(50, 5, 0, 20).Lat
	movedLon2 := MoveByBearing(50, 5, 90, 20).Lon
	movedLon3 := MoveByBearing(80, 5, 90, 20).Lon

	if !(movedLon1 < movedLon2 && movedLon2 < movedLon3) {
		t.Errorf("Expected increasing longitudes, got %v, %v, %v", movedLon1, movedLon2, movedLon3)
	}
	if !(movedLat1 < movedLat2) {
		t.Errorf("Expected increasing latitudes, got %v, %v", movedLat1, movedLat2)
	}
	if movedLat1 <= 50 {
		t.Errorf("Expected a move north to increase latitude, got %v", movedLat1)
	}
}

func TestBearingFromVector(t *testing.T) {
	tests := []struct {
		name   string
		dx, dy float64
		want   float64
	}{
		{"zero", 0, 0, 0},
		{"north", 0, 1, 0},
		{"east", 1, 0, math.Pi / 2},
		{"south", 0, -3, math.Pi},
		{"west", -2, 0, 3 * math.Pi / 2},
		{"north-east", 1, 1, math.Pi / 4},
		{"north-west", -1, 1, 7 * math.Pi / 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BearingFromVector(tt.dx, tt.dy)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("BearingFromVector(%v, %v) = %v, want %v", tt.dx, tt.dy, got, tt.want)
			}
			if got < 0 || got >= 2*math.Pi {
				t.Errorf("bearing %v outside [0, 2π)", got)
			}
		})
	}
}

func TestMoveByVectorZero(t *testing.T) {
	origin := LatLon{Lat: 12.5, Lon: -3.25}
	moved := MoveByVector(origin, 0, 0)

	if math.Abs(moved.Lat-origin.Lat) > 1e-12 || math.Abs(moved.Lon-origin.Lon) > 1e-12 {
		t.Errorf("Expected %v, got %v", origin, moved)
	}
}

func TestDistanceBetweenRejectsInvalidLatitude(t *testing.T) {
	cases := []struct {
		a, b LatLon
	}{
		{LatLon{Lat: 91, Lon: 0}, LatLon{Lat: 0, Lon: 0}},
		{LatLon{Lat: 0, Lon: 0}, LatLon{Lat: -90.5, Lon: 0}},
		{LatLon{Lat: math.NaN(), Lon: 0}, LatLon{Lat: 0, Lon: 0}},
	}

	for _, c := range cases {
		if _, err := DistanceBetween(c.a, c.b); !errors.Is(err, ErrInvalidLatitude) {
			t.Errorf("DistanceBetween(%v, %v): expected ErrInvalidLatitude, got %v", c.a, c.b, err)
		}
	}
}

func TestDistanceBetweenPoles(t *testing.T) {
	d, err := DistanceBetween(LatLon{Lat: 90, Lon: 0}, LatLon{Lat: -90, Lon: 0})
	if err != nil {
		t.Fatalf("DistanceBetween failed: %v", err)
	}
	want := math.Pi * EarthRadiusKm * 1000
	if math.Abs(d-want) > 1e-3 {
		t.Errorf("Expected %v, got %v", want, d)
	}
}

func TestLatLonFromSlice(t *testing.T) {
	if _, err := LatLonFromSlice([]float64{1, 2, 3}); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("Expected ErrInvalidDimension, got %v", err)
	}
	p, err := LatLonFromSlice([]float64{52, 5})
	if err != nil {
		t.Fatalf("LatLonFromSlice failed: %v", err)
	}
	if p.Lat != 52 || p.Lon != 5 {
		t.Errorf("Expected (52, 5), got %v", p)
	}
}

func TestToRijksdriehoek(t *testing.T) {
	ref := ToRijksdriehoek(LatLon{Lat: rdRefLat, Lon: rdRefLon})
	if math.Abs(ref.X-rdRefX) > 1e-6 || math.Abs(ref.Y-rdRefY) > 1e-6 {
		t.Errorf("Expected Amersfoort at (155000, 463000), got (%f, %f)", ref.X, ref.Y)
	}

	east := ToRijksdriehoek(LatLon{Lat: rdRefLat, Lon: rdRefLon + 0.01})
	north := ToRijksdriehoek(LatLon{Lat: rdRefLat + 0.01, Lon: rdRefLon})
	if east.X <= ref.X {
		t.Errorf("Expected moving east to increase X, got %f <= %f", east.X, ref.X)
	}
	if north.Y <= ref.Y {
		t.Errorf("Expected moving north to increase Y, got %f <= %f", north.Y, ref.Y)
	}

	// 0.01 degree of latitude is roughly 1.1 km
	if dy := north.Y - ref.Y; dy < 1100 || dy > 1125 {
		t.Errorf("Expected about 1112 m northing per 0.01 degree, got %f", dy)
	}
}
