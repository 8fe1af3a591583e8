// Package model defines the typed records shared across the sampling engine.
package model

// CRS identifies the coordinate reference system of a dataset.
type CRS string

const (
	// CRSGeographic means x is longitude and y is latitude, in decimal degrees.
	CRSGeographic CRS = "geographic"
	// CRSPlanar means x and y are projected planar units (e.g. meters).
	CRSPlanar CRS = "planar"
)

// Occurrence is one occurrence record: a taxon observed at a site.
// SiteID groups records at the same spatial unit even when their raw
// coordinates differ slightly.
type Occurrence struct {
	TaxonID      string  `json:"taxon_id"`
	SiteID       string  `json:"site_id"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	CollectionID string  `json:"collection_id,omitempty"`
	ReferenceID  string  `json:"reference_id,omitempty"`
}

// Site is the representative point for one unique site ID. Coordinates are
// those of the first occurrence seen for that ID.
type Site struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Dataset is an immutable set of occurrence records in one declared CRS.
// The site pool is derived once at construction and is read-only for the
// duration of sampling.
type Dataset struct {
	CRS         CRS
	Occurrences []Occurrence

	pool  []Site
	index map[string]int // site ID -> pool position
}

// NewDataset builds a dataset and derives its site pool in first-seen order.
func NewDataset(crs CRS, occurrences []Occurrence) *Dataset {
	ds := &Dataset{
		CRS:         crs,
		Occurrences: occurrences,
		index:       make(map[string]int),
	}
	for _, occ := range occurrences {
		if _, ok := ds.index[occ.SiteID]; ok {
			continue
		}
		ds.index[occ.SiteID] = len(ds.pool)
		ds.pool = append(ds.pool, Site{ID: occ.SiteID, X: occ.X, Y: occ.Y})
	}
	return ds
}

// SitePool returns the unique sites in first-seen order. Callers must not
// mutate the returned slice.
func (ds *Dataset) SitePool() []Site {
	return ds.pool
}

// NSites returns the number of unique sites.
func (ds *Dataset) NSites() int {
	return len(ds.pool)
}

// SiteByID returns the representative site for an ID, if present.
func (ds *Dataset) SiteByID(id string) (Site, bool) {
	i, ok := ds.index[id]
	if !ok {
		return Site{}, false
	}
	return ds.pool[i], true
}

// RecordsAt returns the occurrences whose site ID is in ids, preserving
// input record order.
func (ds *Dataset) RecordsAt(ids map[string]bool) []Occurrence {
	var out []Occurrence
	for _, occ := range ds.Occurrences {
		if ids[occ.SiteID] {
			out = append(out, occ)
		}
	}
	return out
}
