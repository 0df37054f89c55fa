package format

import "math"

// DefaultEpsilon is the precision used by Visibility when approximating fractions.
const DefaultEpsilon = 1.0e-6

// RationalApproximation returns num/den approximating x by continued fraction expansion. The
// expansion stops once the error drops below eps scaled by den².
func RationalApproximation(x float64, eps float64) (int, int) {
	if eps <= 0 {
		eps = DefaultEpsilon
	}

	negative := x < 0
	x = math.Abs(x)

	remainder := x
	term := math.Floor(remainder)
	prevNum, num := 1.0, term
	prevDen, den := 0.0, 1.0

	for remainder-term > eps*den*den {
		remainder = 1.0 / (remainder - term)
		term = math.Floor(remainder)
		prevNum, num = num, term*num+prevNum
		prevDen, den = den, term*den+prevDen
	}

	if negative {
		num = -num
	}
	return int(num), int(den)
}
