package geodesy

import (
	"math"

	"github.com/boyangli/sentinelmap-positioner/models"
)

// Reference point of the RD New grid (Amersfoort).
const (
	rdRefLat = 52.15517440
	rdRefLon = 5.38720621
	rdRefX   = 155000.0
	rdRefY   = 463000.0
)

type rdTerm struct {
	p, q int
	c    float64
}

// Polynomial approximation of WGS-84 -> RD (Schreutelkamp, Strang van Hees).
// Accurate to about a meter inside the Netherlands.
var (
	rdXTerms = []rdTerm{
		{0, 1, 190094.945},
		{1, 1, -11832.228},
		{2, 1, -114.221},
		{0, 3, -32.391},
		{1, 0, -0.705},
		{3, 1, -2.340},
		{1, 3, -0.608},
		{0, 2, -0.008},
		{2, 3, 0.148},
	}
	rdYTerms = []rdTerm{
		{1, 0, 309056.544},
		{0, 2, 3638.893},
		{2, 0, 73.077},
		{1, 2, -157.984},
		{3, 0, 59.788},
		{0, 1, 0.433},
		{2, 2, -6.439},
		{1, 1, -0.032},
		{0, 4, 0.092},
		{1, 4, -0.054},
	}
)

// ToRijksdriehoek projects a WGS-84 position onto the RD grid.
func ToRijksdriehoek(p LatLon) models.LocalGridPosition {
	dLat := 0.36 * (p.Lat - rdRefLat)
	dLon := 0.36 * (p.Lon - rdRefLon)

	x := rdRefX
	for _, t := range rdXTerms {
		x += t.c * math.Pow(dLat, float64(t.p)) * math.Pow(dLon, float64(t.q))
	}
	y := rdRefY
	for _, t := range rdYTerms {
		y += t.c * math.Pow(dLat, float64(t.p)) * math.Pow(dLon, float64(t.q))
	}

	return models.LocalGridPosition{X: x, Y: y}
}
