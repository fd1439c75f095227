// Package poisson implements the exact Poisson point-mass computations used
// by the feature builder and the scoring engine. Probabilities are computed
// in log space so large means and counts stay numerically stable.
package poisson

import "math"

// PMF returns P(X = k) for X ~ Poisson(lambda).
func PMF(lambda float64, k int) float64 {
	if k < 0 {
		return 0
	}
	if lambda <= 0 {
		if k == 0 {
			return 1
		}
		return 0
	}
	// exp(k*ln(lambda) - lambda - ln(k!))
	return math.Exp(float64(k)*math.Log(lambda) - lambda - logFactorial(k))
}

// logFactorial returns ln(k!).
func logFactorial(k int) float64 {
	var sum float64
	for i := 2; i <= k; i++ {
		sum += math.Log(float64(i))
	}
	return sum
}

// OverProb returns P(H + A > threshold) for independent H ~ Poisson(lambdaHome)
// and A ~ Poisson(lambdaAway), by exact summation of the joint mass over all
// integer pairs with h + a <= threshold. For the over-2.5 market the threshold
// is 2.5, so the pairs summed are those totalling 0, 1, or 2.
func OverProb(lambdaHome, lambdaAway, threshold float64) float64 {
	limit := int(math.Floor(threshold))
	if limit < 0 {
		return 1
	}

	var under float64
	for h := 0; h <= limit; h++ {
		for a := 0; h+a <= limit; a++ {
			under += PMF(lambdaHome, h) * PMF(lambdaAway, a)
		}
	}
	return 1 - under
}
