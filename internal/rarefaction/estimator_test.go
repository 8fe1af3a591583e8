package rarefaction

import (
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateRichness_SizeWorkedExample(t *testing.T) {
	// counts [2,1], n=3, m=2:
	//   r1 = C(1,2)/C(3,2) = 0
	//   r2 = C(2,2)/C(3,2) = 1/3
	//   E[S_2] = 2 - 1/3 = 5/3
	//   var = 0 + (1/3)(2/3) + 2*(C(0,2)/C(3,2) - 0) = 2/9
	est := Analytic{}
	res, err := est.EstimateRichness([]int{2, 1}, Quota{Type: QuotaSize, Value: 2})
	require.NoError(t, err)

	assert.InDelta(t, 5.0/3.0, res.Estimate, 1e-9)
	half := 1.96 * math.Sqrt(2.0/9.0)
	assert.InDelta(t, 5.0/3.0-half, res.LowerCI, 1e-9)
	assert.InDelta(t, 5.0/3.0+half, res.UpperCI, 1e-9)
	// Expected coverage at m=2 is 2/3.
	assert.InDelta(t, 2.0/3.0, res.Coverage, 1e-9)
}

func TestEstimateRichness_FullSizeReturnsObserved(t *testing.T) {
	est := Analytic{}
	res, err := est.EstimateRichness([]int{4, 3, 2, 1}, Quota{Type: QuotaSize, Value: 10})
	require.NoError(t, err)
	assert.InDelta(t, 4.0, res.Estimate, 1e-9)
	// Rarefying to the full sample has no uncertainty.
	assert.InDelta(t, res.Estimate, res.LowerCI, 1e-6)
	assert.InDelta(t, res.Estimate, res.UpperCI, 1e-6)
}

func TestEstimateRichness_SizeQuotaInfeasible(t *testing.T) {
	est := Analytic{}
	_, err := est.EstimateRichness([]int{2, 1}, Quota{Type: QuotaSize, Value: 4})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInfeasibleQuota))
}

func TestEstimateRichness_MonotoneInEffort(t *testing.T) {
	est := Analytic{}
	counts := []int{10, 5, 3, 2, 1, 1}
	prev := 0.0
	for m := 1; m <= 22; m++ {
		res, err := est.EstimateRichness(counts, Quota{Type: QuotaSize, Value: float64(m)})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Estimate, prev)
		prev = res.Estimate
	}
	assert.InDelta(t, 6.0, prev, 1e-9)
}

func TestEstimateRichness_CoverageWorkedExample(t *testing.T) {
	// counts [2,1]: observed coverage = 1 - (1/3)*(2/(2+2)) = 5/6.
	// Target 0.5 resolves to m=2 (C(1)=1/3, C(2)=2/3), so the estimate is
	// the size-based value at m=2.
	est := Analytic{}
	res, err := est.EstimateRichness([]int{2, 1}, Quota{Type: QuotaCoverage, Value: 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 5.0/3.0, res.Estimate, 1e-9)
	assert.InDelta(t, 2.0/3.0, res.Coverage, 1e-9)
}

func TestEstimateRichness_CoverageInfeasible(t *testing.T) {
	est := Analytic{}
	_, err := est.EstimateRichness([]int{2, 1}, Quota{Type: QuotaCoverage, Value: 0.99})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInfeasibleQuota))
}

func TestEstimateRichness_BadInputs(t *testing.T) {
	est := Analytic{}

	_, err := est.EstimateRichness(nil, Quota{Type: QuotaSize, Value: 1})
	require.Error(t, err)

	_, err = est.EstimateRichness([]int{0, 0}, Quota{Type: QuotaSize, Value: 1})
	require.Error(t, err)

	_, err = est.EstimateRichness([]int{3, -1}, Quota{Type: QuotaSize, Value: 1})
	require.Error(t, err)

	_, err = est.EstimateRichness([]int{3, 1}, Quota{Type: QuotaCoverage, Value: 1.5})
	require.Error(t, err)

	_, err = est.EstimateRichness([]int{3, 1}, Quota{Type: "banana", Value: 1})
	require.Error(t, err)
}

func TestGoodsCoverage(t *testing.T) {
	// [2,1]: n=3, f1=1, f2=1 -> 1 - (1/3)*((2*1)/((2*1)+2)) = 1 - 1/6.
	assert.InDelta(t, 5.0/6.0, GoodsCoverage([]int{2, 1}), 1e-9)
	// No singletons: coverage 1.
	assert.Equal(t, 1.0, GoodsCoverage([]int{5, 3, 2}))
	// Empty: degenerate, defined as 1.
	assert.Equal(t, 1.0, GoodsCoverage(nil))
}

func TestPielouEvenness(t *testing.T) {
	// Perfectly even two-taxon sample: J = 1.
	assert.InDelta(t, 1.0, PielouEvenness([]int{5, 5}), 1e-9)
	// Single taxon: defined as 0.
	assert.Equal(t, 0.0, PielouEvenness([]int{7}))
	// Skew lowers evenness.
	assert.Less(t, PielouEvenness([]int{99, 1}), PielouEvenness([]int{60, 40}))
}
