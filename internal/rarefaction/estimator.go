// Package rarefaction standardizes taxonomic richness to a common sampling
// effort: classical (count-based) rarefaction to a fixed number of
// occurrences, and coverage-based rarefaction to a fixed estimated sample
// completeness. The Estimator interface is the seam consumed by the
// diversity summarizer; Analytic is the default implementation.
package rarefaction

import (
	"math"

	"github.com/rotisserie/eris"
)

// QuotaType selects the standardization target.
type QuotaType string

const (
	// QuotaSize rarefies to a fixed occurrence count.
	QuotaSize QuotaType = "size"
	// QuotaCoverage rarefies to a fixed estimated sample coverage.
	QuotaCoverage QuotaType = "coverage"
)

// Quota is one rarefaction target.
type Quota struct {
	Type  QuotaType `json:"type"`
	Value float64   `json:"value"`
}

// Result is one richness estimate with its 95% confidence interval and the
// sample coverage realized at the standardized effort.
type Result struct {
	Estimate float64 `json:"estimate"`
	LowerCI  float64 `json:"lower_ci"`
	UpperCI  float64 `json:"upper_ci"`
	Coverage float64 `json:"coverage"`
}

// ErrInfeasibleQuota is returned when a quota exceeds what the observed
// sample supports without extrapolation.
var ErrInfeasibleQuota = eris.New("rarefaction: quota exceeds feasible range without extrapolation")

// Estimator estimates rarefied richness from a taxon abundance vector.
type Estimator interface {
	EstimateRichness(counts []int, q Quota) (Result, error)
}

// Analytic implements Estimator with closed-form hypergeometric
// interpolation (Heck et al. variance for the interval) and Chao-corrected
// Good-Turing coverage.
type Analytic struct{}

// EstimateRichness standardizes the abundance vector to the quota.
func (Analytic) EstimateRichness(counts []int, q Quota) (Result, error) {
	abund, n, err := cleanCounts(counts)
	if err != nil {
		return Result{}, err
	}

	switch q.Type {
	case QuotaSize:
		m := int(q.Value)
		if m < 1 {
			return Result{}, eris.Errorf("rarefaction: size quota %v below 1", q.Value)
		}
		if m > n {
			return Result{}, eris.Wrapf(ErrInfeasibleQuota, "size quota %d of %d occurrences", m, n)
		}
		return rarefyToSize(abund, n, m), nil

	case QuotaCoverage:
		if q.Value <= 0 || q.Value >= 1 {
			return Result{}, eris.Errorf("rarefaction: coverage quota %v outside (0,1)", q.Value)
		}
		feasible := GoodsCoverage(abund)
		if q.Value > feasible {
			return Result{}, eris.Wrapf(ErrInfeasibleQuota, "coverage quota %.4f above observed coverage %.4f", q.Value, feasible)
		}
		m := sizeForCoverage(abund, n, q.Value)
		return rarefyToSize(abund, n, m), nil

	default:
		return Result{}, eris.Errorf("rarefaction: unknown quota type %q", q.Type)
	}
}

// cleanCounts drops zeros, rejects negatives, and totals the vector.
func cleanCounts(counts []int) ([]int, int, error) {
	abund := make([]int, 0, len(counts))
	n := 0
	for _, c := range counts {
		if c < 0 {
			return nil, 0, eris.Errorf("rarefaction: negative abundance %d", c)
		}
		if c > 0 {
			abund = append(abund, c)
			n += c
		}
	}
	if n == 0 {
		return nil, 0, eris.New("rarefaction: empty abundance vector")
	}
	return abund, n, nil
}

// rarefyToSize computes the expected richness of a uniform subsample of m
// occurrences, with the Heck et al. analytic variance and a 95% normal
// interval. The reported coverage is the expected coverage at m.
func rarefyToSize(abund []int, n, m int) Result {
	// r[i] = P(taxon i entirely missed at effort m)
	//      = C(n - x_i, m) / C(n, m).
	r := make([]float64, len(abund))
	est := float64(len(abund))
	for i, x := range abund {
		r[i] = chooseRatio(n-x, n, m)
		est -= r[i]
	}

	variance := 0.0
	for i := range abund {
		variance += r[i] * (1 - r[i])
	}
	for i := 0; i < len(abund); i++ {
		for j := i + 1; j < len(abund); j++ {
			rij := chooseRatio(n-abund[i]-abund[j], n, m)
			variance += 2 * (rij - r[i]*r[j])
		}
	}
	if variance < 0 {
		variance = 0
	}
	half := 1.96 * math.Sqrt(variance)

	return Result{
		Estimate: est,
		LowerCI:  math.Max(0, est-half),
		UpperCI:  est + half,
		Coverage: expectedCoverage(abund, n, m),
	}
}

// chooseRatio computes C(top, m) / C(n, m) in log space. Zero when top < m.
func chooseRatio(top, n, m int) float64 {
	if top < m {
		return 0
	}
	return math.Exp(lchoose(top, m) - lchoose(n, m))
}

func lchoose(n, k int) float64 {
	if k < 0 || k > n {
		return math.Inf(-1)
	}
	a, _ := math.Lgamma(float64(n + 1))
	b, _ := math.Lgamma(float64(k + 1))
	c, _ := math.Lgamma(float64(n - k + 1))
	return a - b - c
}
