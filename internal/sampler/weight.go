package sampler

// Weighter converts a site's distance from the seed into inclusion
// probability mass. The decay is inverse-square with a half-distance scale:
//
//	mass(d) = 1 / (1 + (d/HalfDistance)^2)
//
// so mass is 1 at the seed, 1/2 at HalfDistance, and monotonically
// non-increasing but strictly positive everywhere — every candidate keeps a
// nonzero chance. Masses are normalized over the candidate pool at draw
// time; the seed itself is included deterministically and never competes in
// the weighted draw.
type Weighter struct {
	HalfDistance float64
}

// Mass returns the unnormalized inclusion mass for a candidate at distance
// d from the seed. A non-positive HalfDistance disables weighting (equal
// mass for all candidates).
func (w Weighter) Mass(d float64) float64 {
	if w.HalfDistance <= 0 {
		return 1
	}
	r := d / w.HalfDistance
	return 1 / (1 + r*r)
}
