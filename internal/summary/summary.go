// Package summary computes per-subsample spatial and taxonomic diversity
// statistics, delegating richness standardization to a rarefaction
// estimator.
package summary

import (
	"context"
	"runtime"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geosample/internal/geom"
	"github.com/sells-group/geosample/internal/model"
	"github.com/sells-group/geosample/internal/rarefaction"
)

// Params configures one summary computation.
type Params struct {
	// ClassicalQuota, when positive, requests count-based rarefied richness
	// at this occurrence count.
	ClassicalQuota int `json:"classical_quota,omitempty"`
	// CoverageQuota, when in (0,1), requests coverage-based rarefied
	// richness at this sample completeness.
	CoverageQuota float64 `json:"coverage_quota,omitempty"`
	// OmitMostCommon excludes the single most frequent taxon before
	// rarefaction (dominance control). Raw taxon and occurrence counts are
	// unaffected.
	OmitMostCommon bool `json:"omit_most_common,omitempty"`
	// Workers bounds the per-row worker pool in SummarizeCollection; 0
	// means NumCPU.
	Workers int `json:"workers,omitempty"`
}

// Summarizer computes diversity summaries. The zero value is not usable;
// construct with New.
type Summarizer struct {
	estimator rarefaction.Estimator
}

// New builds a summarizer. A nil estimator selects the analytic default.
func New(est rarefaction.Estimator) *Summarizer {
	if est == nil {
		est = rarefaction.Analytic{}
	}
	return &Summarizer{estimator: est}
}

// Summarize computes one summary row for a subsample. Spatial metrics come
// from the subsample's sites; taxonomic metrics require occurrence records
// (samplers emit them under OutputRecords) and stay zero without them.
// Infeasible rarefaction quotas flag the row instead of failing it; the
// spatial fields remain valid.
func (sz *Summarizer) Summarize(crs model.CRS, sub *model.Subsample, p Params) (model.DiversitySummary, error) {
	if sub == nil {
		return model.DiversitySummary{}, eris.New("summary: nil subsample")
	}

	sites := uniqueSites(sub)
	row := model.DiversitySummary{NSites: len(sites)}

	switch {
	case len(sites) == 1:
		row.CentroidX = sites[0].X
		row.CentroidY = sites[0].Y
	case len(sites) > 1:
		x, y, err := geom.Centroid(sites)
		if err != nil {
			return row, eris.Wrap(err, "summary: centroid")
		}
		row.CentroidX = x
		row.CentroidY = y
		row.LatRange = geom.LatRange(sites)
		row.Diameter = geom.Diameter(crs, sites)

		total, err := geom.MSTTotal(crs, sites)
		if err != nil {
			return row, eris.Wrap(err, "summary: mst")
		}
		row.TotalMST = total
	}

	counts := taxonCounts(sub.Occurrences)
	row.NTaxa = len(counts)
	row.NOccurrences = len(sub.Occurrences)
	if len(counts) == 0 {
		return row, nil
	}

	vector := abundanceVector(counts, p.OmitMostCommon)
	row.Evenness = rarefaction.PielouEvenness(vector)

	if p.ClassicalQuota > 0 {
		res, err := sz.estimator.EstimateRichness(vector, rarefaction.Quota{
			Type:  rarefaction.QuotaSize,
			Value: float64(p.ClassicalQuota),
		})
		if err != nil {
			if !eris.Is(err, rarefaction.ErrInfeasibleQuota) {
				return row, eris.Wrap(err, "summary: classical rarefaction")
			}
			row.Flagged = "classical quota infeasible"
		} else {
			row.ClassicalRichness = &model.RarefiedRichness{
				Estimate: res.Estimate, LowerCI: res.LowerCI, UpperCI: res.UpperCI, Coverage: res.Coverage,
			}
		}
	}

	if p.CoverageQuota > 0 {
		res, err := sz.estimator.EstimateRichness(vector, rarefaction.Quota{
			Type:  rarefaction.QuotaCoverage,
			Value: p.CoverageQuota,
		})
		if err != nil {
			if !eris.Is(err, rarefaction.ErrInfeasibleQuota) {
				return row, eris.Wrap(err, "summary: coverage rarefaction")
			}
			if row.Flagged != "" {
				row.Flagged += "; "
			}
			row.Flagged += "coverage quota infeasible"
		} else {
			row.CoverageRichness = &model.RarefiedRichness{
				Estimate: res.Estimate, LowerCI: res.LowerCI, UpperCI: res.UpperCI, Coverage: res.Coverage,
			}
		}
	}

	return row, nil
}

// SummarizeCollection returns one row per valid subsample, preserving
// collection order. Rows are independent and computed in parallel; a
// failed row aborts the batch only for non-rarefaction errors, and
// cancellation between rows leaves completed rows valid.
func (sz *Summarizer) SummarizeCollection(ctx context.Context, crs model.CRS, coll model.Collection, p Params) ([]model.DiversitySummary, error) {
	subs := coll.Subsamples()
	rows := make([]model.DiversitySummary, len(subs))

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sub := range subs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row, err := sz.Summarize(crs, sub, p)
			if err != nil {
				return eris.Wrapf(err, "summary: row %d", i)
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	flagged := 0
	for _, r := range rows {
		if r.Flagged != "" {
			flagged++
		}
	}
	zap.L().Debug("collection summarized",
		zap.Int("rows", len(rows)),
		zap.Int("flagged", flagged),
	)
	return rows, nil
}

// uniqueSites returns the subsample's sites, deriving them first-seen from
// occurrence records when the site list is absent.
func uniqueSites(sub *model.Subsample) []model.Site {
	if len(sub.Sites) > 0 {
		return sub.Sites
	}
	seen := make(map[string]bool)
	var sites []model.Site
	for _, occ := range sub.Occurrences {
		if seen[occ.SiteID] {
			continue
		}
		seen[occ.SiteID] = true
		sites = append(sites, model.Site{ID: occ.SiteID, X: occ.X, Y: occ.Y})
	}
	return sites
}

// taxonCounts tallies occurrences per taxon.
func taxonCounts(occs []model.Occurrence) map[string]int {
	counts := make(map[string]int)
	for _, occ := range occs {
		counts[occ.TaxonID]++
	}
	return counts
}

// abundanceVector flattens the taxon tally into a deterministic vector,
// optionally dropping the single most frequent taxon (ties resolve to the
// lexicographically smallest ID so the choice is stable).
func abundanceVector(counts map[string]int, omitMostCommon bool) []int {
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if omitMostCommon && len(ids) > 1 {
		top := ids[0]
		for _, id := range ids[1:] {
			if counts[id] > counts[top] {
				top = id
			}
		}
		filtered := ids[:0]
		for _, id := range ids {
			if id != top {
				filtered = append(filtered, id)
			}
		}
		ids = filtered
	}

	vector := make([]int, len(ids))
	for i, id := range ids {
		vector[i] = counts[id]
	}
	return vector
}
