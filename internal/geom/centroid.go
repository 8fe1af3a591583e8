package geom

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/geosample/internal/model"
)

// Centroid returns the arithmetic mean point of the sites.
func Centroid(sites []model.Site) (x, y float64, err error) {
	if len(sites) < 2 {
		return 0, 0, eris.Wrapf(ErrDegenerateInput, "centroid over %d site(s)", len(sites))
	}
	for _, s := range sites {
		x += s.X
		y += s.Y
	}
	n := float64(len(sites))
	return x / n, y / n, nil
}

// LatRange returns the spread of the y coordinate (latitude for geographic
// datasets) across the sites, zero for fewer than two sites.
func LatRange(sites []model.Site) float64 {
	if len(sites) < 2 {
		return 0
	}
	min, max := sites[0].Y, sites[0].Y
	for _, s := range sites[1:] {
		if s.Y < min {
			min = s.Y
		}
		if s.Y > max {
			max = s.Y
		}
	}
	return max - min
}
