package model

// OutputMode selects what a sampler emits per draw.
type OutputMode string

const (
	// OutputLocations emits the chosen sites only.
	OutputLocations OutputMode = "locations"
	// OutputRecords emits the occurrence records at the chosen sites.
	OutputRecords OutputMode = "records"
)

// OmitReason explains why a draw produced no subsample.
type OmitReason string

const (
	// OmitSmallPool: the candidate pool was smaller than the site quota.
	OmitSmallPool OmitReason = "pool_below_quota"
	// OmitSmallCluster: cluster growth stalled below the minimum site count.
	OmitSmallCluster OmitReason = "cluster_below_min_sites"
)

// Subsample is one replicate draw of sites. For weighted draws the seed site
// is always Sites[0]; order is otherwise the draw order. Occurrences is
// populated only under OutputRecords.
type Subsample struct {
	Seed        *Site        `json:"seed,omitempty"`
	Sites       []Site       `json:"sites"`
	Occurrences []Occurrence `json:"occurrences,omitempty"`
}

// SiteIDs returns the site IDs in draw order.
func (s *Subsample) SiteIDs() []string {
	ids := make([]string, len(s.Sites))
	for i, site := range s.Sites {
		ids[i] = site.ID
	}
	return ids
}

// SiteIDSet returns the site IDs as a membership set.
func (s *Subsample) SiteIDSet() map[string]bool {
	set := make(map[string]bool, len(s.Sites))
	for _, site := range s.Sites {
		set[site.ID] = true
	}
	return set
}

// Draw is the outcome of one sampling iteration: either a populated
// subsample or an explicit omission, never an ambiguous empty value.
type Draw struct {
	Index     int        `json:"index"`
	Subsample *Subsample `json:"subsample,omitempty"`
	Omitted   OmitReason `json:"omitted,omitempty"`
}

// Collection is an ordered sequence of independent draws from one sampler
// invocation. Draw i is reproducible from the run seed and i alone.
type Collection struct {
	Draws []Draw `json:"draws"`
}

// Subsamples returns the populated subsamples in iteration order.
func (c Collection) Subsamples() []*Subsample {
	var out []*Subsample
	for _, d := range c.Draws {
		if d.Subsample != nil {
			out = append(out, d.Subsample)
		}
	}
	return out
}

// Omitted counts the draws that yielded no subsample.
func (c Collection) Omitted() int {
	n := 0
	for _, d := range c.Draws {
		if d.Subsample == nil {
			n++
		}
	}
	return n
}
