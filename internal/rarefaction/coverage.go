package rarefaction

import "math"

// GoodsCoverage estimates the sample coverage of the full abundance vector
// using Good's u with the Chao correction for the singleton/doubleton
// ratio:
//
//	C = 1 - (f1/n) * ((n-1)f1 / ((n-1)f1 + 2 f2))
//
// where f1 and f2 are the singleton and doubleton counts. A sample with no
// singletons has estimated coverage 1.
func GoodsCoverage(counts []int) float64 {
	n, f1, f2 := 0, 0, 0
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		n += c
		switch c {
		case 1:
			f1++
		case 2:
			f2++
		}
	}
	if n == 0 || f1 == 0 {
		return 1
	}
	nf := float64(n)
	a := float64(n-1) * float64(f1)
	return 1 - (float64(f1)/nf)*(a/(a+2*float64(f2)))
}

// expectedCoverage is the expected sample coverage of a uniform subsample
// of m occurrences drawn from the observed vector:
//
//	C(m) = 1 - sum_i (x_i/n) * C(n-x_i, m) / C(n-1, m)
//
// which interpolates from C(0) ~ 0 up to the Good-Turing coverage at m = n.
func expectedCoverage(abund []int, n, m int) float64 {
	if m >= n {
		return GoodsCoverage(abund)
	}
	miss := 0.0
	for _, x := range abund {
		if n-x < m {
			continue
		}
		miss += (float64(x) / float64(n)) * math.Exp(lchoose(n-x, m)-lchoose(n-1, m))
	}
	c := 1 - miss
	if c < 0 {
		return 0
	}
	return c
}

// sizeForCoverage returns the smallest subsample size whose expected
// coverage reaches the target. Feasibility is checked by the caller, so a
// result of n is the upper bound.
func sizeForCoverage(abund []int, n int, target float64) int {
	lo, hi := 1, n
	for lo < hi {
		mid := (lo + hi) / 2
		if expectedCoverage(abund, n, mid) >= target {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// PielouEvenness returns Pielou's J: Shannon entropy of the abundance
// distribution over its maximum ln(S). Zero for a single taxon.
func PielouEvenness(counts []int) float64 {
	n := 0
	s := 0
	for _, c := range counts {
		if c > 0 {
			n += c
			s++
		}
	}
	if s <= 1 || n == 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		p := float64(c) / float64(n)
		h -= p * math.Log(p)
	}
	return h / math.Log(float64(s))
}
