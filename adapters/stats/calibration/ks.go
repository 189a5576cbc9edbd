package calibration

import (
	"math"

	"gocalib/domain/elicitation"
	"gocalib/domain/scoring"

	"gonum.org/v1/gonum/mat"
)

// KSScorer tests the PIT sample against Uniform(0,1) with the two-sided
// one-sample Kolmogorov–Smirnov test; the score is the p-value.
type KSScorer struct{}

// NewKSScorer creates a Kolmogorov–Smirnov scorer
func NewKSScorer() *KSScorer {
	return &KSScorer{}
}

// Method returns the calibration method
func (s *KSScorer) Method() scoring.CalibrationMethod {
	return scoring.MethodKS
}

// Score computes D_n against the identity CDF and its exact p-value
func (s *KSScorer) Score(pit []float64, _ elicitation.Levels) (scoring.CalibrationResult, error) {
	if err := checkSample(s.Method(), pit); err != nil {
		return scoring.CalibrationResult{}, err
	}

	u := sortedCopy(pit)
	n := float64(len(u))
	d := 0.0
	for i, v := range u {
		d = math.Max(d, math.Max(float64(i+1)/n-v, v-float64(i)/n))
	}

	return finalize(scoring.CalibrationResult{
		Method:     s.Method(),
		Score:      clamp01(1 - KolmogorovCDF(len(u), d)),
		Statistic:  d,
		SampleSize: len(u),
	})
}

// KolmogorovCDF returns P(D_n < d) using the Marsaglia–Tsang–Wang (2003)
// matrix method, switching to their tail approximation when n·d² is large.
func KolmogorovCDF(n int, d float64) float64 {
	if d <= 0 {
		return 0
	}
	if d >= 1 {
		return 1
	}
	nf := float64(n)
	s := d * d * nf
	if s > 7.24 || (s > 3.76 && n > 99) {
		return 1 - 2*math.Exp(-(2.000071+0.331/math.Sqrt(nf)+1.409/nf)*s)
	}

	k := int(nf*d) + 1
	m := 2*k - 1
	h := float64(k) - nf*d

	H := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			if i-j+1 >= 0 {
				H.Set(i, j, 1)
			}
		}
	}
	for i := 0; i < m; i++ {
		H.Set(i, 0, H.At(i, 0)-math.Pow(h, float64(i+1)))
		H.Set(m-1, i, H.At(m-1, i)-math.Pow(h, float64(m-i)))
	}
	if 2*h-1 > 0 {
		H.Set(m-1, 0, H.At(m-1, 0)+math.Pow(2*h-1, float64(m)))
	}
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			if i-j+1 > 0 {
				v := H.At(i, j)
				for g := 1; g <= i-j+1; g++ {
					v /= float64(g)
				}
				H.Set(i, j, v)
			}
		}
	}

	q, eq := matrixPower(H, 0, n)
	p := q.At(k-1, k-1)
	for i := 1; i <= n; i++ {
		p = p * float64(i) / nf
		if p < 1e-140 {
			p *= 1e140
			eq -= 140
		}
	}
	return p * math.Pow(10, float64(eq))
}

// matrixPower raises a to the n-th power, carrying a decimal exponent so the
// entries never overflow.
func matrixPower(a *mat.Dense, ea, n int) (*mat.Dense, int) {
	if n == 1 {
		return mat.DenseCopyOf(a), ea
	}
	v, ev := matrixPower(a, ea, n/2)

	var sq mat.Dense
	sq.Mul(v, v)
	out, eo := &sq, 2*ev
	if n%2 == 1 {
		var odd mat.Dense
		odd.Mul(a, &sq)
		out, eo = &odd, ea+2*ev
	}

	m, _ := out.Dims()
	if out.At(m/2, m/2) > 1e140 {
		out.Scale(1e-140, out)
		eo += 140
	}
	return out, eo
}
