// Package sampler implements the three spatially standardized subsampling
// strategies: radius-constrained discs (cookies), nearest-neighbor clusters
// bounded by a spatial diameter cap (clustr), and latitude bands (bandit).
//
// All strategies draw their replicates from a shared, immutable site pool.
// Replicates are mutually independent: iteration i derives its own random
// sub-stream from (run seed, i) and writes to its own output slot, so a run
// is bit-identical whether it executes sequentially or across workers.
package sampler

import (
	"context"
	"runtime"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geosample/internal/model"
	"github.com/sells-group/geosample/internal/rng"
)

var (
	// ErrInvalidConfiguration marks contradictory parameters. It is fatal
	// and raised before any sampling begins.
	ErrInvalidConfiguration = eris.New("sampler: invalid configuration")

	// ErrInsufficientPool marks a draw request that exceeds its candidate
	// pool. Per-iteration shortfalls surface as draw omissions instead.
	ErrInsufficientPool = eris.New("sampler: candidate pool below quota")
)

// runIterations executes n independent draws under a bounded worker pool.
// Draw i uses the sub-stream at streamOffset+i, so callers running several
// pools under one seed (bandit's bands) can keep stream indices globally
// unique. Each draw writes to its own pre-allocated slot, preserving
// iteration order. Cancellation is honored between iterations; completed
// slots remain valid.
func runIterations(ctx context.Context, n, workers int, seed uint64, streamOffset int, draw func(i int, s *rng.Stream) model.Draw) (model.Collection, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	draws := make([]model.Draw, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			draws[i] = draw(i, rng.Split(seed, streamOffset+i))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return model.Collection{}, eris.Wrap(err, "sampler: run iterations")
	}
	return model.Collection{Draws: draws}, nil
}

// emit assembles a subsample in the requested output mode.
func emit(ds *model.Dataset, seedSite *model.Site, sites []model.Site, mode model.OutputMode) *model.Subsample {
	sub := &model.Subsample{Seed: seedSite, Sites: sites}
	if mode == model.OutputRecords {
		ids := make(map[string]bool, len(sites))
		for _, s := range sites {
			ids[s.ID] = true
		}
		sub.Occurrences = ds.RecordsAt(ids)
	}
	return sub
}

// drawUniform selects k distinct indices from [0, n) uniformly without
// replacement, in draw order (partial Fisher-Yates).
func drawUniform(s *rng.Stream, n, k int) ([]int, error) {
	if k > n {
		return nil, eris.Wrapf(ErrInsufficientPool, "draw %d of %d", k, n)
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + s.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k], nil
}

// drawWeighted selects k distinct indices without replacement with
// probability proportional to mass, renormalizing after each pick.
func drawWeighted(s *rng.Stream, masses []float64, k int) ([]int, error) {
	n := len(masses)
	if k > n {
		return nil, eris.Wrapf(ErrInsufficientPool, "draw %d of %d", k, n)
	}

	remaining := make([]float64, n)
	total := 0.0
	for i, m := range masses {
		remaining[i] = m
		total += m
	}

	out := make([]int, 0, k)
	for len(out) < k {
		u := s.Float64() * total
		pick := -1
		acc := 0.0
		for i, m := range remaining {
			if m == 0 {
				continue
			}
			acc += m
			if u < acc {
				pick = i
				break
			}
		}
		// Guard against accumulated floating-point shortfall at u ~ total.
		if pick == -1 {
			for i := n - 1; i >= 0; i-- {
				if remaining[i] > 0 {
					pick = i
					break
				}
			}
		}
		out = append(out, pick)
		total -= remaining[pick]
		remaining[pick] = 0
	}
	return out, nil
}
