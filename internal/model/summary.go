package model

// RarefiedRichness holds one rarefaction estimate with its 95% confidence
// interval and the sample coverage at the standardized effort.
type RarefiedRichness struct {
	Estimate float64 `json:"estimate"`
	LowerCI  float64 `json:"lower_ci"`
	UpperCI  float64 `json:"upper_ci"`
	Coverage float64 `json:"coverage"`
}

// DiversitySummary is one row of per-subsample spatial and taxonomic
// statistics. Rows are computed on demand and never mutated after creation.
type DiversitySummary struct {
	NSites       int     `json:"n_sites"`
	CentroidX    float64 `json:"centroid_x"`
	CentroidY    float64 `json:"centroid_y"`
	LatRange     float64 `json:"lat_range"`
	Diameter     float64 `json:"diameter"`
	TotalMST     float64 `json:"total_mst"`
	NTaxa        int     `json:"n_taxa"`
	NOccurrences int     `json:"n_occurrences"`

	ClassicalRichness *RarefiedRichness `json:"classical_richness,omitempty"`
	CoverageRichness  *RarefiedRichness `json:"coverage_richness,omitempty"`
	Evenness          float64           `json:"evenness"`

	// Flagged records a per-row rarefaction failure (e.g. an infeasible
	// quota). The spatial fields above are still valid when set.
	Flagged string `json:"flagged,omitempty"`
}
