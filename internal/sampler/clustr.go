package sampler

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geosample/internal/geom"
	"github.com/sells-group/geosample/internal/model"
	"github.com/sells-group/geosample/internal/rng"
)

// ClustrParams configures nearest-neighbor cluster subsampling.
type ClustrParams struct {
	// MaxDiameter caps the cluster's spanning-tree total span, in the
	// dataset's distance units.
	MaxDiameter float64 `json:"max_diameter"`
	// SiteQuota, when positive, rarefies each cluster to exactly this many
	// sites by uniform selection with no seed privilege. Zero keeps the
	// whole cluster.
	SiteQuota int `json:"site_quota,omitempty"`
	// MinSites is the minimum realized cluster size; smaller clusters are
	// omitted.
	MinSites int `json:"min_sites"`
	// Iterations is the number of independent replicate draws.
	Iterations int `json:"iterations"`
	// Workers bounds the replicate worker pool; 0 means NumCPU.
	Workers int `json:"workers,omitempty"`
	// Output selects site locations or full occurrence records.
	Output model.OutputMode `json:"output"`
}

func (p ClustrParams) validate(ds *model.Dataset) error {
	switch {
	case ds == nil || ds.NSites() == 0:
		return eris.Wrap(ErrInvalidConfiguration, "clustr: empty dataset")
	case p.MaxDiameter <= 0:
		return eris.Wrapf(ErrInvalidConfiguration, "clustr: max diameter %v", p.MaxDiameter)
	case p.SiteQuota < 0:
		return eris.Wrapf(ErrInvalidConfiguration, "clustr: site quota %d", p.SiteQuota)
	case p.MinSites < 1:
		return eris.Wrapf(ErrInvalidConfiguration, "clustr: min sites %d", p.MinSites)
	case p.Iterations <= 0:
		return eris.Wrapf(ErrInvalidConfiguration, "clustr: iterations %d", p.Iterations)
	}
	return nil
}

// Clustr draws nearest-neighbor-cluster subsamples. Each iteration grows a
// connected cluster from a uniformly chosen seed by repeatedly attaching
// the unattached site closest to any current member, while the running
// attachment-tree total stays within MaxDiameter. The attachment tree is a
// spanning tree of the cluster, so its total bounds the cluster's minimum
// spanning tree total from above and the MST span never exceeds the cap.
//
// Equidistant candidates resolve to the smaller site ID, then input order,
// keeping growth deterministic for a fixed seed site.
func Clustr(ctx context.Context, ds *model.Dataset, p ClustrParams, seed uint64) (model.Collection, error) {
	if err := p.validate(ds); err != nil {
		return model.Collection{}, err
	}

	pool := ds.SitePool()

	coll, err := runIterations(ctx, p.Iterations, p.Workers, seed, 0, func(i int, s *rng.Stream) model.Draw {
		seedIdx := s.IntN(len(pool))
		seedSite := pool[seedIdx]

		cluster := []model.Site{seedSite}
		attached := make(map[int]bool, len(pool))
		attached[seedIdx] = true
		span := 0.0

		for len(cluster) < len(pool) {
			best := -1
			bestDist := math.Inf(1)
			for j, site := range pool {
				if attached[j] {
					continue
				}
				d, aerr := geom.NearestAttachCost(ds.CRS, cluster, site)
				if aerr != nil {
					continue
				}
				if d < bestDist || (d == bestDist && best >= 0 && site.ID < pool[best].ID) {
					best = j
					bestDist = d
				}
			}
			if best < 0 || span+bestDist > p.MaxDiameter {
				break
			}
			span += bestDist
			attached[best] = true
			cluster = append(cluster, pool[best])
		}

		if len(cluster) < p.MinSites {
			return model.Draw{Index: i, Omitted: model.OmitSmallCluster}
		}

		sites := cluster
		if p.SiteQuota > 0 {
			if p.SiteQuota > len(cluster) {
				return model.Draw{Index: i, Omitted: model.OmitSmallPool}
			}
			picked, derr := drawUniform(s, len(cluster), p.SiteQuota)
			if derr != nil {
				return model.Draw{Index: i, Omitted: model.OmitSmallPool}
			}
			sites = make([]model.Site, 0, p.SiteQuota)
			for _, j := range picked {
				sites = append(sites, cluster[j])
			}
		}

		return model.Draw{Index: i, Subsample: emit(ds, &seedSite, sites, p.Output)}
	})
	if err != nil {
		return model.Collection{}, err
	}

	zap.L().Debug("clustr sampling complete",
		zap.Int("iterations", p.Iterations),
		zap.Int("omitted", coll.Omitted()),
		zap.Float64("max_diameter", p.MaxDiameter),
	)
	return coll, nil
}
