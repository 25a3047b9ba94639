package comm

import (
	"context"
	"fmt"
	"sync"
)

// group is the shared wiring behind a set of in-process endpoints.
type group struct {
	size    int
	deliver []chan []byte // broadcast delivery, one channel per rank
	partial chan float64  // reduction contributions, consumed by the root

	abortOnce sync.Once
	aborted   chan struct{}
	abortErr  *AbortError
}

// local is one rank's endpoint into an in-process group.
type local struct {
	rank int
	g    *group
}

// NewGroup wires size in-process endpoints together. The returned slice is
// indexed by rank; each endpoint must be used by exactly one goroutine.
func NewGroup(size int) ([]Communicator, error) {
	if size < 1 {
		return nil, fmt.Errorf("group size must be at least 1, got %d", size)
	}

	g := &group{
		size:    size,
		deliver: make([]chan []byte, size),
		partial: make(chan float64), // unbuffered: contributors block until folded
		aborted: make(chan struct{}),
	}
	for i := range g.deliver {
		g.deliver[i] = make(chan []byte, 1)
	}

	endpoints := make([]Communicator, size)
	for rank := range endpoints {
		endpoints[rank] = &local{rank: rank, g: g}
	}
	return endpoints, nil
}

func (l *local) Rank() int { return l.rank }
func (l *local) Size() int { return l.g.size }

func (l *local) Broadcast(ctx context.Context, data []byte, root int) ([]byte, error) {
	if l.rank == root {
		for rank := 0; rank < l.g.size; rank++ {
			if rank == root {
				continue
			}
			payload := make([]byte, len(data))
			copy(payload, data)
			select {
			case l.g.deliver[rank] <- payload:
			case <-l.g.aborted:
				return nil, l.g.abortErr
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return data, nil
	}

	select {
	case payload := <-l.g.deliver[l.rank]:
		return payload, nil
	case <-l.g.aborted:
		return nil, l.g.abortErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *local) Reduce(ctx context.Context, value float64, root int) (float64, error) {
	if l.rank != root {
		select {
		case l.g.partial <- value:
			return 0, nil
		case <-l.g.aborted:
			return 0, l.g.abortErr
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	total := value
	for received := 1; received < l.g.size; received++ {
		select {
		case v := <-l.g.partial:
			total += v
		case <-l.g.aborted:
			return 0, l.g.abortErr
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return total, nil
}

func (l *local) Abort(code int, reason string) {
	l.g.abortOnce.Do(func() {
		l.g.abortErr = &AbortError{Code: code, Reason: reason}
		close(l.g.aborted)
	})
}
