// Package geom provides the geometric and graph primitives shared by the
// subsampling strategies: pairwise distance, minimum spanning trees, and
// point-set summaries. All kernels are deterministic: loops have fixed
// orders and ties resolve by input position, so results are bit-stable
// across runs.
package geom

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geosample/internal/model"
)

// ErrDegenerateInput is returned when a geometric operation receives fewer
// than two points.
var ErrDegenerateInput = eris.New("geom: fewer than 2 points")

// earthRadiusKm is the WGS84 mean Earth radius. Geographic distances are
// reported in kilometers.
const earthRadiusKm = 6371.0088

// Distance returns the distance between two sites: great-circle kilometers
// for geographic datasets, Euclidean units for planar ones. It is
// non-negative and zero iff the points coincide.
func Distance(crs model.CRS, a, b model.Site) float64 {
	if crs == model.CRSPlanar {
		dx := a.X - b.X
		dy := a.Y - b.Y
		return math.Hypot(dx, dy)
	}
	return haversine(a.X, a.Y, b.X, b.Y)
}

// haversine computes the great-circle distance in kilometers between two
// lon/lat points in decimal degrees.
func haversine(lon1, lat1, lon2, lat2 float64) float64 {
	if lon1 == lon2 && lat1 == lat2 {
		return 0
	}
	const rad = math.Pi / 180
	phi1 := lat1 * rad
	phi2 := lat2 * rad
	dPhi := (lat2 - lat1) * rad
	dLambda := (lon2 - lon1) * rad

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// PairwiseMatrix returns the symmetric pairwise distance matrix for the
// given sites, with a zero diagonal.
func PairwiseMatrix(crs model.CRS, sites []model.Site) [][]float64 {
	n := len(sites)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := Distance(crs, sites[i], sites[j])
			m[i][j] = d
			m[j][i] = d
		}
	}
	return m
}

// Diameter returns the maximum pairwise distance over the sites, zero for
// fewer than two sites.
func Diameter(crs model.CRS, sites []model.Site) float64 {
	max := 0.0
	for i := 0; i < len(sites); i++ {
		for j := i + 1; j < len(sites); j++ {
			if d := Distance(crs, sites[i], sites[j]); d > max {
				max = d
			}
		}
	}
	return max
}

// NearestAttachCost returns the distance from candidate to its closest
// member of cluster. Under nearest-neighbor growth this is exactly the
// increment a new member adds to the cluster's minimum spanning tree total.
func NearestAttachCost(crs model.CRS, cluster []model.Site, candidate model.Site) (float64, error) {
	if len(cluster) == 0 {
		return 0, eris.Wrap(ErrDegenerateInput, "nearest attach cost of empty cluster")
	}
	best := math.Inf(1)
	for _, m := range cluster {
		if d := Distance(crs, m, candidate); d < best {
			best = d
		}
	}
	return best, nil
}
