package sampler

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geosample/internal/geom"
	"github.com/sells-group/geosample/internal/model"
	"github.com/sells-group/geosample/internal/rng"
)

// CookiesParams configures radius-constrained subsampling.
type CookiesParams struct {
	// Radius is the fixed disc radius around the seed site, in the
	// dataset's distance units (km for geographic, planar units otherwise).
	Radius float64 `json:"radius"`
	// SiteQuota is the exact number of sites per subsample, seed included.
	SiteQuota int `json:"site_quota"`
	// Iterations is the number of independent replicate draws.
	Iterations int `json:"iterations"`
	// Weighted selects distance-decay companion selection instead of
	// uniform.
	Weighted bool `json:"weighted"`
	// Workers bounds the replicate worker pool; 0 means NumCPU.
	Workers int `json:"workers,omitempty"`
	// Output selects site locations or full occurrence records.
	Output model.OutputMode `json:"output"`
}

func (p CookiesParams) validate(ds *model.Dataset) error {
	switch {
	case ds == nil || ds.NSites() == 0:
		return eris.Wrap(ErrInvalidConfiguration, "cookies: empty dataset")
	case p.Radius <= 0:
		return eris.Wrapf(ErrInvalidConfiguration, "cookies: radius %v", p.Radius)
	case p.SiteQuota <= 0:
		return eris.Wrapf(ErrInvalidConfiguration, "cookies: site quota %d", p.SiteQuota)
	case p.Iterations <= 0:
		return eris.Wrapf(ErrInvalidConfiguration, "cookies: iterations %d", p.Iterations)
	}
	return nil
}

// Cookies draws radius-constrained subsamples. Each iteration picks a seed
// site uniformly at random, pools every site within Radius of it, and
// rarefies the pool to exactly SiteQuota sites with the seed always first.
// Iterations whose pool falls short of the quota are reported as omitted
// draws, not errors.
func Cookies(ctx context.Context, ds *model.Dataset, p CookiesParams, seed uint64) (model.Collection, error) {
	if err := p.validate(ds); err != nil {
		return model.Collection{}, err
	}

	pool := ds.SitePool()
	weighter := Weighter{}
	if p.Weighted {
		// Mass falls to 1/2 halfway to the disc edge.
		weighter.HalfDistance = p.Radius / 2
	}

	coll, err := runIterations(ctx, p.Iterations, p.Workers, seed, 0, func(i int, s *rng.Stream) model.Draw {
		seedSite := pool[s.IntN(len(pool))]

		// Candidate pool: every site within the disc, pool order. The seed
		// is at distance 0 and always a member; coincident sites with
		// distinct IDs are distinct candidates.
		var candidates []model.Site
		var dists []float64
		for _, site := range pool {
			d := geom.Distance(ds.CRS, seedSite, site)
			if d <= p.Radius {
				candidates = append(candidates, site)
				dists = append(dists, d)
			}
		}

		if len(candidates) < p.SiteQuota {
			return model.Draw{Index: i, Omitted: model.OmitSmallPool}
		}

		// Companions exclude the seed from the draw.
		companions := make([]model.Site, 0, len(candidates)-1)
		masses := make([]float64, 0, len(candidates)-1)
		for j, site := range candidates {
			if site.ID == seedSite.ID {
				continue
			}
			companions = append(companions, site)
			masses = append(masses, weighter.Mass(dists[j]))
		}

		var picked []int
		var err error
		if p.Weighted {
			picked, err = drawWeighted(s, masses, p.SiteQuota-1)
		} else {
			picked, err = drawUniform(s, len(companions), p.SiteQuota-1)
		}
		if err != nil {
			// Quota minus seed exceeds companion count only when the quota
			// equals the pool plus one; covered above, but stay safe.
			return model.Draw{Index: i, Omitted: model.OmitSmallPool}
		}

		sites := make([]model.Site, 0, p.SiteQuota)
		sites = append(sites, seedSite)
		for _, j := range picked {
			sites = append(sites, companions[j])
		}
		return model.Draw{Index: i, Subsample: emit(ds, &seedSite, sites, p.Output)}
	})
	if err != nil {
		return model.Collection{}, err
	}

	zap.L().Debug("cookies sampling complete",
		zap.Int("iterations", p.Iterations),
		zap.Int("omitted", coll.Omitted()),
		zap.Float64("radius", p.Radius),
		zap.Bool("weighted", p.Weighted),
	)
	return coll, nil
}
