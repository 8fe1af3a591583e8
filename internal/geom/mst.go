package geom

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geosample/internal/model"
)

// Edge is one minimum-spanning-tree edge, indexing into the input site
// slice.
type Edge struct {
	From   int
	To     int
	Weight float64
}

// MST computes the minimum spanning tree of the complete pairwise distance
// graph over the sites using Prim's algorithm, starting from index 0.
// Equal-weight candidates resolve to the earliest input position, so the
// edge set is deterministic; the total length is invariant to input
// permutation regardless.
func MST(crs model.CRS, sites []model.Site) ([]Edge, float64, error) {
	n := len(sites)
	if n < 2 {
		return nil, 0, eris.Wrapf(ErrDegenerateInput, "mst over %d site(s)", n)
	}

	inTree := make([]bool, n)
	bestDist := make([]float64, n)
	bestFrom := make([]int, n)
	for i := range bestDist {
		bestDist[i] = math.Inf(1)
		bestFrom[i] = -1
	}

	inTree[0] = true
	for j := 1; j < n; j++ {
		bestDist[j] = Distance(crs, sites[0], sites[j])
		bestFrom[j] = 0
	}

	edges := make([]Edge, 0, n-1)
	total := 0.0

	for len(edges) < n-1 {
		// Strict < keeps the first-seen minimum: input-order tie-break.
		next := -1
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			if next == -1 || bestDist[j] < bestDist[next] {
				next = j
			}
		}

		edges = append(edges, Edge{From: bestFrom[next], To: next, Weight: bestDist[next]})
		total += bestDist[next]
		inTree[next] = true

		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			if d := Distance(crs, sites[next], sites[j]); d < bestDist[j] {
				bestDist[j] = d
				bestFrom[j] = next
			}
		}
	}

	return edges, total, nil
}

// MSTTotal returns only the total edge length of the minimum spanning tree.
func MSTTotal(crs model.CRS, sites []model.Site) (float64, error) {
	_, total, err := MST(crs, sites)
	return total, err
}
