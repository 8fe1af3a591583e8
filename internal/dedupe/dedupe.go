// Package dedupe collapses duplicate taxon-at-location occurrence records.
package dedupe

import "github.com/sells-group/geosample/internal/model"

// Uniqify collapses occurrences sharing the same (taxon, x, y) into one,
// keeping the first occurrence's remaining fields. It is pure,
// order-preserving with respect to first appearance, and idempotent.
func Uniqify(ds *model.Dataset) *model.Dataset {
	type key struct {
		taxon string
		x, y  float64
	}
	seen := make(map[key]bool, len(ds.Occurrences))
	out := make([]model.Occurrence, 0, len(ds.Occurrences))
	for _, occ := range ds.Occurrences {
		k := key{taxon: occ.TaxonID, x: occ.X, y: occ.Y}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, occ)
	}
	return model.NewDataset(ds.CRS, out)
}

// UniqifyBySite collapses occurrences sharing the same (taxon, site ID),
// ignoring raw coordinates. The summarizer uses this keying so jittered
// coordinates inside one grid cell do not inflate occurrence counts.
func UniqifyBySite(ds *model.Dataset) *model.Dataset {
	type key struct {
		taxon, site string
	}
	seen := make(map[key]bool, len(ds.Occurrences))
	out := make([]model.Occurrence, 0, len(ds.Occurrences))
	for _, occ := range ds.Occurrences {
		k := key{taxon: occ.TaxonID, site: occ.SiteID}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, occ)
	}
	return model.NewDataset(ds.CRS, out)
}
