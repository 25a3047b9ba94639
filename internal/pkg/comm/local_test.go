package comm

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewGroupRejectsEmptyGroups(t *testing.T) {
	for _, size := range []int{0, -3} {
		_, err := NewGroup(size)
		assert.Error(t, err)
	}
}

func TestGroupIdentity(t *testing.T) {
	endpoints, err := NewGroup(3)
	assert.NoError(t, err)
	assert.Len(t, endpoints, 3)

	for rank, endpoint := range endpoints {
		assert.Equal(t, rank, endpoint.Rank())
		assert.Equal(t, 3, endpoint.Size())
	}
}

func TestGroupBroadcastDeliversIdenticalCopies(t *testing.T) {
	endpoints, err := NewGroup(4)
	assert.NoError(t, err)

	payload := []byte(`{"lower":0,"upper":1,"subintervals":1024}`)
	received := make([][]byte, len(endpoints))

	var wg sync.WaitGroup
	for rank, endpoint := range endpoints {
		wg.Add(1)
		go func(rank int, endpoint Communicator) {
			defer wg.Done()
			var data []byte
			if rank == 0 {
				data = payload
			}
			out, err := endpoint.Broadcast(context.Background(), data, 0)
			assert.NoError(t, err)
			received[rank] = out
		}(rank, endpoint)
	}
	wg.Wait()

	for rank, data := range received {
		assert.Equal(t, payload, data, "rank %d", rank)
	}
}

func TestGroupReduceSumsEveryContributionOnce(t *testing.T) {
	endpoints, err := NewGroup(5)
	assert.NoError(t, err)

	// Powers of two make any dropped or duplicated contribution show
	// up as a distinct total.
	values := []float64{1, 2, 4, 8, 16}
	totals := make([]float64, len(endpoints))

	var wg sync.WaitGroup
	for rank, endpoint := range endpoints {
		wg.Add(1)
		go func(rank int, endpoint Communicator) {
			defer wg.Done()
			total, err := endpoint.Reduce(context.Background(), values[rank], 0)
			assert.NoError(t, err)
			totals[rank] = total
		}(rank, endpoint)
	}
	wg.Wait()

	assert.Equal(t, 31.0, totals[0])
	for rank := 1; rank < len(totals); rank++ {
		assert.Zero(t, totals[rank], "non-root rank %d receives no total", rank)
	}
}

func TestGroupAbortUnblocksPendingCollectives(t *testing.T) {
	endpoints, err := NewGroup(3)
	assert.NoError(t, err)

	errs := make([]error, len(endpoints))

	var wg sync.WaitGroup
	for rank, endpoint := range endpoints {
		wg.Add(1)
		go func(rank int, endpoint Communicator) {
			defer wg.Done()
			if rank == 0 {
				// The root never broadcasts; it aborts instead.
				endpoint.Abort(1, "subinterval count must be positive")
				return
			}
			_, errs[rank] = endpoint.Broadcast(context.Background(), nil, 0)
		}(rank, endpoint)
	}
	wg.Wait()

	for rank := 1; rank < len(errs); rank++ {
		assert.True(t, IsAbort(errs[rank]), "rank %d", rank)
		var abort *AbortError
		assert.ErrorAs(t, errs[rank], &abort)
		assert.Equal(t, 1, abort.Code)
	}
}

func TestGroupCollectivesHonorContext(t *testing.T) {
	endpoints, err := NewGroup(2)
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = endpoints[1].Broadcast(ctx, nil, 0)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = endpoints[1].Reduce(ctx, 1.5, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
