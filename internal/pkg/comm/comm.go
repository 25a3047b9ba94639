// Package comm provides the collective operations workers use to
// cooperate: a broadcast of the global parameters, a sum reduction of the
// partial results, and a whole-run abort. Implementations exist for
// in-process channel groups and for NATS-connected processes; workers are
// written against the Communicator interface and do not care which one
// they run on.
package comm

import (
	"context"
	"errors"
	"fmt"
)

// Communicator is one worker's endpoint into the collective group. A
// communicator is good for a single run: one broadcast followed by one
// reduction.
type Communicator interface {
	// Rank returns this worker's index in [0, Size).
	Rank() int

	// Size returns the fixed number of workers in the group.
	Size() int

	// Broadcast distributes data from the root rank to every rank.
	// It blocks until this rank holds the payload (or the run aborts)
	// and returns an identical copy on every rank.
	Broadcast(ctx context.Context, data []byte, root int) ([]byte, error)

	// Reduce folds every rank's value into a single sum delivered to
	// the root rank. Each contribution is incorporated exactly once;
	// the result does not depend on arrival order beyond floating-point
	// summation order. Non-root ranks receive zero.
	Reduce(ctx context.Context, value float64, root int) (float64, error)

	// Abort terminates every pending and future collective in the
	// group with an *AbortError carrying code and reason.
	Abort(code int, reason string)
}

// AbortError is returned by collectives on every rank once any rank
// aborts the run.
type AbortError struct {
	Code   int
	Reason string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("run aborted (code %d): %s", e.Code, e.Reason)
}

// IsAbort reports whether err indicates an aborted run.
func IsAbort(err error) bool {
	var ae *AbortError
	return errors.As(err, &ae)
}
