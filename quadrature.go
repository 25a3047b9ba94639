package trapr

// Integrand is the function being integrated. The integrator places no
// constraint on it beyond accepting and returning a float64.
type Integrand func(x float64) float64

// Trapezoid computes the composite trapezoidal estimate of the integral
// over share, using the global step h:
//
//	h * ( (f(lower) + f(upper))/2 + f(lower+h) + ... + f(upper-h) )
//
// An empty share contributes exactly zero. Interior points are advanced by
// repeated addition of h rather than recomputed as lower + i*h, so that
// partial sums accumulate rounding the same way across runs and worker
// counts.
func Trapezoid(share Share, h float64, f Integrand) float64 {
	if share.Subintervals == 0 {
		return 0
	}

	sum := (f(share.Lower) + f(share.Upper)) / 2
	x := share.Lower
	for i := int64(1); i < share.Subintervals; i++ {
		x += h
		sum += f(x)
	}
	return sum * h
}
