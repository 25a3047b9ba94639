package trapr

// Share describes the contiguous slice of the integration domain owned by
// a single worker. Shares are derived deterministically from the global
// problem and never mutated after creation.
type Share struct {
	Rank         int     // index of the owning worker
	Lower        float64 // left endpoint of the local interval
	Upper        float64 // right endpoint of the local interval
	Subintervals int64   // number of trapezoids assigned to this worker
}

// Width returns the length of the share's interval.
func (s Share) Width() float64 {
	return s.Upper - s.Lower
}

// Partition assigns rank its slice of the n global subintervals over
// [lower, upper], split across size workers.
//
// The base assignment is n/size subintervals per worker; the n%size
// leftover subintervals go to the lowest ranks, one each, so that no
// worker carries more than one extra. Taken over all ranks, the shares
// exactly tile [lower, upper]: each share starts where the previous one
// ends, the first starts at lower and the last ends at upper.
//
// n may be smaller than size, in which case the high ranks receive an
// empty share (zero subintervals, zero width) positioned at upper.
func Partition(n int64, size, rank int, lower, upper float64) Share {
	if n <= 0 {
		return Share{Rank: rank, Lower: lower, Upper: lower}
	}

	h := (upper - lower) / float64(n)
	base := n / int64(size)
	remainder := n % int64(size)

	r := int64(rank)
	local := base
	start := lower + float64(r)*float64(base)*h
	if r < remainder {
		// Heavy worker: one extra subinterval, shifted by the extras
		// of the heavy workers before it.
		local++
		start += float64(r) * h
	} else {
		// Light worker: shifted past all remainder extras.
		start += float64(remainder) * h
	}

	return Share{
		Rank:         rank,
		Lower:        start,
		Upper:        start + float64(local)*h,
		Subintervals: local,
	}
}
