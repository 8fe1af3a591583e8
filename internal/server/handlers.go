package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geosample/internal/model"
	"github.com/sells-group/geosample/internal/sampler"
	"github.com/sells-group/geosample/internal/store"
	"github.com/sells-group/geosample/internal/summary"
)

// errBadRequest marks malformed request bodies.
var errBadRequest = eris.New("server: bad request")

func isBadRequest(err error) bool {
	return eris.Is(err, errBadRequest) || eris.Is(err, sampler.ErrInvalidConfiguration)
}

// sampleRequest carries a sampling invocation: a stored dataset reference
// or inline records, the sampler parameters, and a seed.
type sampleRequest struct {
	DatasetID string             `json:"dataset_id,omitempty"`
	CRS       model.CRS          `json:"crs,omitempty"`
	Records   []model.Occurrence `json:"records,omitempty"`
	Seed      *uint64            `json:"seed,omitempty"`
	Params    json.RawMessage    `json:"params"`
}

// sampleResponse is the collection produced by one sampling invocation.
// RunID is present when the dataset was a stored reference.
type sampleResponse struct {
	RunID     string       `json:"run_id,omitempty"`
	Draws     []model.Draw `json:"draws"`
	Omissions int          `json:"omissions"`
}

// banditResponse groups collections by band label.
type banditResponse struct {
	RunID     string                  `json:"run_id,omitempty"`
	Bands     map[string][]model.Draw `json:"bands"`
	Omissions int                     `json:"omissions"`
}

// resolveDataset materializes the request's dataset, from the store or
// from inline records.
func (s *Server) resolveDataset(ctx context.Context, req *sampleRequest) (*model.Dataset, error) {
	switch {
	case req.DatasetID != "" && len(req.Records) > 0:
		return nil, eris.Wrap(errBadRequest, "dataset_id and records are mutually exclusive")
	case req.DatasetID != "":
		if s.store == nil {
			return nil, errStoreRequired
		}
		_, ds, err := s.store.GetDataset(ctx, req.DatasetID)
		return ds, err
	case len(req.Records) > 0:
		crs := req.CRS
		if crs == "" {
			crs = model.CRSGeographic
		}
		return model.NewDataset(crs, req.Records), nil
	default:
		return nil, eris.Wrap(errBadRequest, "dataset_id or records is required")
	}
}

func (s *Server) seedOf(req *sampleRequest) uint64 {
	if req.Seed != nil {
		return *req.Seed
	}
	return uint64(s.sampling.Seed)
}

// decodeSample parses the common request envelope and the sampler-specific
// params, applying configured defaults for iterations and workers.
func decodeSample[P any](r *http.Request, defaults func(*P)) (*sampleRequest, P, error) {
	var req sampleRequest
	var params P
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, params, eris.Wrap(errBadRequest, "invalid request body")
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, params, eris.Wrap(errBadRequest, "invalid params")
		}
	}
	defaults(&params)
	return &req, params, nil
}

// recordRun persists run bookkeeping for stored datasets. A nil store or
// an inline dataset records nothing.
func (s *Server) recordRun(ctx context.Context, req *sampleRequest, kind model.SamplerKind, params any, seed uint64, draws, omissions int) string {
	if s.store == nil || req.DatasetID == "" {
		return ""
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		s.log.Warn("marshal run params", zap.Error(err))
		return ""
	}
	run, err := s.store.CreateRun(ctx, req.DatasetID, kind, string(paramsJSON), seed)
	if err != nil {
		s.log.Warn("record run", zap.Error(err))
		return ""
	}
	if err := s.store.CompleteRun(ctx, run.ID, draws, omissions); err != nil {
		s.log.Warn("complete run", zap.Error(err))
	}
	return run.ID
}

func (s *Server) handleCookies(w http.ResponseWriter, r *http.Request) {
	req, params, err := decodeSample(r, func(p *sampler.CookiesParams) {
		if p.Iterations == 0 {
			p.Iterations = s.sampling.Iterations
		}
		if p.Workers == 0 {
			p.Workers = s.sampling.Workers
		}
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	ds, err := s.resolveDataset(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	seed := s.seedOf(req)
	coll, err := sampler.Cookies(r.Context(), ds, params, seed)
	if err != nil {
		s.writeError(w, err)
		return
	}

	omitted := coll.Omitted()
	runID := s.recordRun(r.Context(), req, model.SamplerCookies, params, seed, len(coll.Draws), omitted)
	writeJSON(w, http.StatusOK, sampleResponse{RunID: runID, Draws: coll.Draws, Omissions: omitted})
}

func (s *Server) handleClustr(w http.ResponseWriter, r *http.Request) {
	req, params, err := decodeSample(r, func(p *sampler.ClustrParams) {
		if p.Iterations == 0 {
			p.Iterations = s.sampling.Iterations
		}
		if p.Workers == 0 {
			p.Workers = s.sampling.Workers
		}
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	ds, err := s.resolveDataset(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	seed := s.seedOf(req)
	coll, err := sampler.Clustr(r.Context(), ds, params, seed)
	if err != nil {
		s.writeError(w, err)
		return
	}

	omitted := coll.Omitted()
	runID := s.recordRun(r.Context(), req, model.SamplerClustr, params, seed, len(coll.Draws), omitted)
	writeJSON(w, http.StatusOK, sampleResponse{RunID: runID, Draws: coll.Draws, Omissions: omitted})
}

func (s *Server) handleBandit(w http.ResponseWriter, r *http.Request) {
	req, params, err := decodeSample(r, func(p *sampler.BanditParams) {
		if p.Iterations == 0 {
			p.Iterations = s.sampling.Iterations
		}
		if p.Workers == 0 {
			p.Workers = s.sampling.Workers
		}
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	ds, err := s.resolveDataset(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	seed := s.seedOf(req)
	bands, err := sampler.Bandit(r.Context(), ds, params, seed)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := banditResponse{Bands: make(map[string][]model.Draw, len(bands))}
	draws := 0
	for label, coll := range bands {
		resp.Bands[label] = coll.Draws
		draws += len(coll.Draws)
		resp.Omissions += coll.Omitted()
	}
	resp.RunID = s.recordRun(r.Context(), req, model.SamplerBandit, params, seed, draws, resp.Omissions)
	writeJSON(w, http.StatusOK, resp)
}

// summaryRequest summarizes an already-drawn collection. RunID, when set,
// persists the rows against that run.
type summaryRequest struct {
	CRS    model.CRS      `json:"crs"`
	Draws  []model.Draw   `json:"draws"`
	Params summary.Params `json:"params"`
	RunID  string         `json:"run_id,omitempty"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, eris.Wrap(errBadRequest, "invalid request body"))
		return
	}
	if len(req.Draws) == 0 {
		s.writeError(w, eris.Wrap(errBadRequest, "draws is required"))
		return
	}
	crs := req.CRS
	if crs == "" {
		crs = model.CRSGeographic
	}
	if req.Params.Workers == 0 {
		req.Params.Workers = s.summary.Workers
	}

	sz := summary.New(nil)
	rows, err := sz.SummarizeCollection(r.Context(), crs, model.Collection{Draws: req.Draws}, req.Params)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if req.RunID != "" && s.store != nil {
		if err := s.store.SaveSummaries(r.Context(), req.RunID, rows); err != nil {
			s.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

// createDatasetRequest imports inline records as a stored dataset.
type createDatasetRequest struct {
	Name    string             `json:"name"`
	CRS     model.CRS          `json:"crs"`
	Records []model.Occurrence `json:"records"`
}

func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errStoreRequired)
		return
	}
	var req createDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, eris.Wrap(errBadRequest, "invalid request body"))
		return
	}
	if req.Name == "" || len(req.Records) == 0 {
		s.writeError(w, eris.Wrap(errBadRequest, "name and records are required"))
		return
	}
	crs := req.CRS
	if crs == "" {
		crs = model.CRSGeographic
	}

	info, err := s.store.CreateDataset(r.Context(), req.Name, model.NewDataset(crs, req.Records))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errStoreRequired)
		return
	}
	infos, err := s.store.ListDatasets(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": infos})
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errStoreRequired)
		return
	}
	info, _, err := s.store.GetDataset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errStoreRequired)
		return
	}
	filter := store.RunFilter{
		Status:    model.RunStatus(r.URL.Query().Get("status")),
		DatasetID: r.URL.Query().Get("dataset_id"),
	}
	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errStoreRequired)
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunSummaries(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, errStoreRequired)
		return
	}
	rows, err := s.store.ListSummaries(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}
