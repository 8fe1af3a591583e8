package sampler

import (
	"context"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geosample/internal/model"
	"github.com/sells-group/geosample/internal/rng"
)

// BanditParams configures latitude-band subsampling.
type BanditParams struct {
	// BandWidth is the band height in degrees of latitude.
	BandWidth float64 `json:"band_width"`
	// SiteQuota is the exact number of sites per subsample.
	SiteQuota int `json:"site_quota"`
	// Iterations is the number of replicate draws per qualifying band.
	Iterations int `json:"iterations"`
	// AbsoluteLatitude folds the southern hemisphere onto the northern one
	// before band assignment.
	AbsoluteLatitude bool `json:"absolute_latitude"`
	// Workers bounds the replicate worker pool; 0 means NumCPU.
	Workers int `json:"workers,omitempty"`
	// Output selects site locations or full occurrence records.
	Output model.OutputMode `json:"output"`
}

func (p BanditParams) validate(ds *model.Dataset) error {
	switch {
	case ds == nil || ds.NSites() == 0:
		return eris.Wrap(ErrInvalidConfiguration, "bandit: empty dataset")
	case ds.CRS != model.CRSGeographic:
		return eris.Wrap(ErrInvalidConfiguration, "bandit: latitude bands require a geographic dataset")
	case p.BandWidth <= 0 || p.BandWidth > 180:
		return eris.Wrapf(ErrInvalidConfiguration, "bandit: band width %v", p.BandWidth)
	case p.SiteQuota <= 0:
		return eris.Wrapf(ErrInvalidConfiguration, "bandit: site quota %d", p.SiteQuota)
	case p.Iterations <= 0:
		return eris.Wrapf(ErrInvalidConfiguration, "bandit: iterations %d", p.Iterations)
	}
	return nil
}

// band is one latitude interval [Lo, Hi) with its member sites in pool
// order. The northernmost band is closed at the top so latitude 90 has a
// home.
type band struct {
	Lo, Hi float64
	Sites  []model.Site
}

// label formats the band's interval, e.g. "[20,40)".
func (b band) label() string {
	return fmt.Sprintf("[%g,%g)", b.Lo, b.Hi)
}

// Bandit draws latitude-band subsamples: the latitude axis is partitioned
// into contiguous bands of BandWidth degrees, every site falls in exactly
// one band, and each band holding at least SiteQuota sites yields
// Iterations uniform draws of exactly SiteQuota sites (no weighting, no
// seed privilege). Bands with fewer sites are left out of the result
// entirely. Keys are band interval labels, southernmost first in ascending
// order.
func Bandit(ctx context.Context, ds *model.Dataset, p BanditParams, seed uint64) (map[string]model.Collection, error) {
	if err := p.validate(ds); err != nil {
		return nil, err
	}

	bands := assignBands(ds.SitePool(), p.BandWidth, p.AbsoluteLatitude)

	out := make(map[string]model.Collection)
	for bandIdx, b := range bands {
		if len(b.Sites) < p.SiteQuota {
			continue
		}

		// Give every (band, iteration) pair a globally unique stream index
		// so results stay reproducible per draw.
		base := bandIdx * p.Iterations
		sites := b.Sites
		coll, err := runIterations(ctx, p.Iterations, p.Workers, seed, base, func(i int, s *rng.Stream) model.Draw {
			picked, derr := drawUniform(s, len(sites), p.SiteQuota)
			if derr != nil {
				return model.Draw{Index: i, Omitted: model.OmitSmallPool}
			}
			chosen := make([]model.Site, 0, p.SiteQuota)
			for _, j := range picked {
				chosen = append(chosen, sites[j])
			}
			return model.Draw{Index: i, Subsample: emit(ds, nil, chosen, p.Output)}
		})
		if err != nil {
			return nil, eris.Wrapf(err, "bandit: band %s", b.label())
		}
		out[b.label()] = coll
	}

	zap.L().Debug("bandit sampling complete",
		zap.Int("bands_sampled", len(out)),
		zap.Int("bands_total", len(bands)),
		zap.Float64("band_width", p.BandWidth),
	)
	return out, nil
}

// assignBands partitions the latitude axis into BandWidth-degree intervals
// and buckets every site into exactly one of them. Folding maps southern
// latitudes onto northern ones first. Sites at exactly the top of the range
// fall into the northernmost band.
func assignBands(pool []model.Site, width float64, fold bool) []band {
	lo, hi := -90.0, 90.0
	if fold {
		lo = 0
	}
	n := int(math.Ceil((hi - lo) / width))
	bands := make([]band, n)
	for i := range bands {
		bands[i].Lo = lo + float64(i)*width
		bands[i].Hi = math.Min(bands[i].Lo+width, hi)
	}

	for _, s := range pool {
		lat := s.Y
		if fold {
			lat = math.Abs(lat)
		}
		idx := int(math.Floor((lat - lo) / width))
		if idx < 0 {
			idx = 0
		}
		if idx >= n {
			idx = n - 1
		}
		bands[idx].Sites = append(bands[idx].Sites, s)
	}
	return bands
}
