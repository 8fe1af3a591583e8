package model

import "time"

// RunStatus represents the current state of a sampling run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusSampling RunStatus = "sampling"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// SamplerKind names a subsampling strategy.
type SamplerKind string

const (
	SamplerCookies SamplerKind = "cookies"
	SamplerClustr  SamplerKind = "clustr"
	SamplerBandit  SamplerKind = "bandit"
)

// Run records one sampler invocation: which strategy ran against which
// dataset, with which parameters and seed, and what it achieved.
type Run struct {
	ID        string      `json:"id"`
	DatasetID string      `json:"dataset_id"`
	Sampler   SamplerKind `json:"sampler"`
	Params    string      `json:"params"` // JSON-encoded sampler parameters
	Seed      uint64      `json:"seed"`
	Status    RunStatus   `json:"status"`
	Draws     int         `json:"draws"`
	Omissions int         `json:"omissions"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// DatasetInfo is the stored metadata for an imported dataset.
type DatasetInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CRS       CRS       `json:"crs"`
	NRecords  int       `json:"n_records"`
	NSites    int       `json:"n_sites"`
	CreatedAt time.Time `json:"created_at"`
}
