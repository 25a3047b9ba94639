package trapr

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/cjordan/trapr/internal/pkg/comm"
)

// rootRank is the designated worker: it validates the problem, receives
// the reduced total and reports the result.
const rootRank = 0

// abortBadConfig is the status code used when the root rejects the
// problem's parameters.
const abortBadConfig = 1

// Job pairs an integrand with a run of the distributed integration. The
// integrand may be nil, in which case the driver resolves one from
// configuration before running.
type Job struct {
	F Integrand
}

// NewJob creates a Job that integrates f.
func NewJob(f Integrand) *Job {
	return &Job{F: f}
}

// runWorker executes the per-rank protocol against a communicator:
// validate (root only), receive the broadcast problem, derive this rank's
// share, integrate it, and fold the partial into the global reduction.
// The returned total is meaningful only on the root rank; every other
// rank returns zero on success.
func (j *Job) runWorker(ctx context.Context, c comm.Communicator, prob Problem) (float64, error) {
	rank, size := c.Rank(), c.Size()
	logger := log.WithFields(log.Fields{"rank": rank, "workers": size})

	// A single bad parameter has to stop every rank, not just the
	// root; otherwise the reduction hangs waiting on a partner that
	// never computes its share.
	if rank == rootRank {
		if err := prob.Validate(); err != nil {
			logger.Errorf("Rejecting problem: %s", err)
			c.Abort(abortBadConfig, err.Error())
			return 0, err
		}
	}

	prob, err := j.exchangeProblem(ctx, c, prob)
	if err != nil {
		return 0, err
	}
	logger.WithField("phase", "parameters").Debugf("Holding problem [%f, %f] n=%d", prob.Lower, prob.Upper, prob.Subintervals)

	share := Partition(prob.Subintervals, size, rank, prob.Lower, prob.Upper)
	logger.WithField("phase", "share").Debugf("Assigned %d subintervals on [%f, %f]", share.Subintervals, share.Lower, share.Upper)

	partial := Trapezoid(share, prob.Step(), j.F)
	logger.WithField("phase", "partial").Debugf("Local estimate %f", partial)

	total, err := c.Reduce(ctx, partial, rootRank)
	if err != nil {
		return 0, err
	}

	if rank == rootRank {
		logger.WithField("phase", "reduced").Debugf("Global estimate %f", total)
		return total, nil
	}
	return 0, nil
}

// exchangeProblem broadcasts the root's problem so that every rank ends up
// holding a bit-identical copy. Ranks other than the root discard whatever
// local problem they were constructed with.
func (j *Job) exchangeProblem(ctx context.Context, c comm.Communicator, prob Problem) (Problem, error) {
	var data []byte
	if c.Rank() == rootRank {
		var err error
		data, err = json.Marshal(prob)
		if err != nil {
			return Problem{}, fmt.Errorf("encoding problem: %w", err)
		}
	}

	data, err := c.Broadcast(ctx, data, rootRank)
	if err != nil {
		return Problem{}, err
	}

	var received Problem
	if err := json.Unmarshal(data, &received); err != nil {
		return Problem{}, fmt.Errorf("decoding broadcast problem: %w", err)
	}
	return received, nil
}
