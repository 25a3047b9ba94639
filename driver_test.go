package trapr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDriverKnownIntegral(t *testing.T) {
	job := NewJob(func(x float64) float64 { return x * x })
	driver := NewDriver(job,
		WithBounds(0, 1),
		WithSubintervals(1024),
		WithWorkers(4),
	)

	total, err := driver.Run(context.Background())
	assert.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, total, 1e-4)
}

func TestDriverSingleWorkerMatchesDirectComputation(t *testing.T) {
	f := func(x float64) float64 { return x * x }
	prob := Problem{Lower: 0, Upper: 1, Subintervals: 1024}

	driver := NewDriver(NewJob(f), WithWorkers(1))
	total, err := driver.Integrate(context.Background(), prob)
	assert.NoError(t, err)

	direct := Trapezoid(Share{Lower: 0, Upper: 1, Subintervals: 1024}, prob.Step(), f)
	assert.Equal(t, direct, total)
}

func TestDriverDegenerateInterval(t *testing.T) {
	job := NewJob(func(x float64) float64 { return x * x })
	driver := NewDriver(job,
		WithBounds(2, 2),
		WithSubintervals(64),
		WithWorkers(3),
	)

	total, err := driver.Run(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, total)
}

func TestDriverRejectsBadSubintervalCounts(t *testing.T) {
	for _, n := range []int64{0, -5} {
		driver := NewDriver(NewJob(func(x float64) float64 { return x }),
			WithSubintervals(n),
			WithWorkers(4),
		)

		total, err := driver.Run(context.Background())
		assert.Error(t, err)
		assert.True(t, IsConfigurationError(err), "n=%d", n)
		assert.Zero(t, total)
	}
}

func TestDriverRejectsInvertedBounds(t *testing.T) {
	driver := NewDriver(NewJob(func(x float64) float64 { return x }),
		WithBounds(5, 1),
		WithWorkers(2),
	)

	_, err := driver.Run(context.Background())
	assert.True(t, IsConfigurationError(err))
}

func TestDriverMoreWorkersThanSubintervals(t *testing.T) {
	job := NewJob(func(x float64) float64 { return 2*x + 1 })
	driver := NewDriver(job,
		WithBounds(0, 2),
		WithSubintervals(3),
		WithWorkers(8),
	)

	// Five of the eight workers hold empty shares; the run still
	// completes and the rule stays exact for a linear integrand.
	total, err := driver.Run(context.Background())
	assert.NoError(t, err)
	assert.InDelta(t, 6.0, total, 1e-12)
}

func TestDriverResolvesNamedIntegrand(t *testing.T) {
	driver := NewDriver(NewJob(nil),
		WithBounds(0, 1),
		WithSubintervals(1024),
		WithWorkers(2),
	)
	driver.config.Function = "x^2"

	total, err := driver.Run(context.Background())
	assert.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, total, 1e-4)
}

func TestDriverUnknownIntegrand(t *testing.T) {
	driver := NewDriver(NewJob(nil), WithWorkers(2))
	driver.config.Function = "sinc(x)"

	_, err := driver.Run(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown integrand")
}

func TestDriverMemoizedIntegrand(t *testing.T) {
	job := NewJob(func(x float64) float64 { return x * x })
	driver := NewDriver(job,
		WithBounds(0, 1),
		WithSubintervals(512),
		WithWorkers(4),
		WithMemoization(1024),
	)

	total, err := driver.Run(context.Background())
	assert.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, total, 1e-4)
}

func TestDriverClampsWorkerCount(t *testing.T) {
	driver := NewDriver(NewJob(func(x float64) float64 { return x }), WithWorkers(0))
	assert.Equal(t, 1, driver.config.Workers)
}
