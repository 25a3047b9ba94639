package trapr

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"golang.org/x/sync/errgroup"

	humanize "github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/cjordan/trapr/internal/pkg/comm"
	"github.com/cjordan/trapr/internal/pkg/integrand"
)

// Transports a Driver can run workers on.
const (
	TransportLocal = "local"
	TransportNATS  = "nats"
)

// Driver controls the execution of an integration Job
type Driver struct {
	job    *Job
	config *config

	// namedIntegrand is set when the integrand came from the registry,
	// making the configured function name trustworthy for reporting.
	namedIntegrand bool
}

// config configures a Driver's execution of jobs
type config struct {
	Lower         float64
	Upper         float64
	Subintervals  int64
	Workers       int
	Function      string
	Transport     string
	NATSURL       string
	Rank          int
	MemoizePoints int
	Progress      bool
	Verbose       bool
}

func newConfig() *config {
	loadConfig() // Load viper config from settings file(s) and environment
	return &config{
		Lower:         viper.GetFloat64("lower"),
		Upper:         viper.GetFloat64("upper"),
		Subintervals:  viper.GetInt64("subintervals"),
		Workers:       viper.GetInt("workers"),
		Function:      viper.GetString("function"),
		Transport:     viper.GetString("transport"),
		NATSURL:       viper.GetString("nats_url"),
		Rank:          viper.GetInt("rank"),
		MemoizePoints: viper.GetInt("memoize_points"),
		Progress:      viper.GetBool("progress"),
		Verbose:       viper.GetBool("verbose"),
	}
}

// Option allows configuration of a Driver
type Option func(*config)

// NewDriver creates a new Driver with the provided job and optional configuration
func NewDriver(job *Job, options ...Option) *Driver {
	d := &Driver{job: job}

	c := newConfig()
	for _, f := range options {
		f(c)
	}

	if c.Workers < 1 {
		log.Warnf("Configured worker count %d is invalid; using 1", c.Workers)
		c.Workers = 1
	}

	d.config = c
	d.applyLogLevel()
	log.Debugf("Loaded config: %#v", c)

	return d
}

func (d *Driver) applyLogLevel() {
	if d.config.Verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// WithWorkers sets the number of workers the problem is split across
func WithWorkers(workers int) Option {
	return func(c *config) {
		c.Workers = workers
	}
}

// WithBounds sets the global integration interval
func WithBounds(lower, upper float64) Option {
	return func(c *config) {
		c.Lower = lower
		c.Upper = upper
	}
}

// WithSubintervals sets the global trapezoid count
func WithSubintervals(n int64) Option {
	return func(c *config) {
		c.Subintervals = n
	}
}

// WithTransport selects how workers communicate (TransportLocal or TransportNATS)
func WithTransport(transport string) Option {
	return func(c *config) {
		c.Transport = transport
	}
}

// WithProgress toggles the progress bar over worker completions
func WithProgress(progress bool) Option {
	return func(c *config) {
		c.Progress = progress
	}
}

// WithMemoization caches up to points integrand evaluations in an LRU
func WithMemoization(points int) Option {
	return func(c *config) {
		c.MemoizePoints = points
	}
}

// Run integrates the problem described by the Driver's configuration and
// returns the global estimate. The estimate is meaningful only on the
// designated root worker; with the local transport the caller always is
// the root.
func (d *Driver) Run(ctx context.Context) (float64, error) {
	prob := Problem{
		Lower:        d.config.Lower,
		Upper:        d.config.Upper,
		Subintervals: d.config.Subintervals,
	}
	return d.Integrate(ctx, prob)
}

// Integrate runs the distributed integration of prob.
func (d *Driver) Integrate(ctx context.Context, prob Problem) (float64, error) {
	if err := d.resolveIntegrand(); err != nil {
		return 0, err
	}

	switch d.config.Transport {
	case TransportNATS:
		return d.runNATS(ctx, prob)
	default:
		return d.runLocal(ctx, prob)
	}
}

// resolveIntegrand fills in the job's integrand from configuration when
// the caller did not supply one, and applies memoization if requested.
func (d *Driver) resolveIntegrand() error {
	if d.job.F == nil {
		f, ok := integrand.Lookup(d.config.Function)
		if !ok {
			return fmt.Errorf("unknown integrand %q (available: %s)",
				d.config.Function, strings.Join(integrand.Names(), ", "))
		}
		d.job.F = Integrand(f)
		d.namedIntegrand = true
	}

	if d.config.MemoizePoints > 0 {
		memoized, err := integrand.Memoize(integrand.Func(d.job.F), d.config.MemoizePoints)
		if err != nil {
			return err
		}
		d.job.F = Integrand(memoized)
	}
	return nil
}

// runLocal executes every worker as a goroutine wired through an
// in-process communicator group.
func (d *Driver) runLocal(ctx context.Context, prob Problem) (float64, error) {
	endpoints, err := comm.NewGroup(d.config.Workers)
	if err != nil {
		return 0, err
	}

	log.Infof("Integrating %s subintervals across %d workers",
		humanize.Comma(prob.Subintervals), d.config.Workers)

	var bar *pb.ProgressBar
	if d.config.Progress {
		bar = pb.New(len(endpoints)).Prefix("Integrate").Start()
	}

	var total float64
	var rootErr error

	g, ctx := errgroup.WithContext(ctx)
	for _, endpoint := range endpoints {
		endpoint := endpoint
		g.Go(func() error {
			result, err := d.job.runWorker(ctx, endpoint, prob)
			if bar != nil {
				bar.Increment()
			}
			if endpoint.Rank() == rootRank {
				total, rootErr = result, err
			}
			return err
		})
	}
	err = g.Wait()
	if bar != nil {
		bar.Finish()
	}

	// The root's error names the actual failure; the other ranks only
	// ever see the secondary abort it triggered.
	if rootErr != nil {
		return 0, rootErr
	}
	if err != nil {
		return 0, err
	}
	return total, nil
}

// runNATS executes this process's single rank against a NATS-connected
// group. Rank and group size come from configuration.
func (d *Driver) runNATS(ctx context.Context, prob Problem) (float64, error) {
	endpoint, err := comm.DialNATS(comm.NATSConfig{
		URL:  d.config.NATSURL,
		Rank: d.config.Rank,
		Size: d.config.Workers,
	})
	if err != nil {
		return 0, err
	}
	defer endpoint.Close()

	return d.job.runWorker(ctx, endpoint, prob)
}

func init() {
	pflag.Float64("lower", 0.0, "Lower integration bound")
	pflag.Float64("upper", 1.0, "Upper integration bound")
	pflag.Int64P("subintervals", "n", 1024, "Number of trapezoids")
	pflag.IntP("workers", "w", 4, "Number of workers")
	pflag.String("function", "x^2", "Named integrand to integrate")
	pflag.String("transport", TransportLocal, "Worker transport (local or nats)")
	pflag.String("nats_url", comm.DefaultNATSURL, "NATS server URL (nats transport)")
	pflag.Int("rank", 0, "This process's worker rank (nats transport)")
	pflag.Int("memoize_points", 0, "LRU size for integrand caching; 0 disables")
	pflag.Bool("progress", false, "Show a progress bar over worker completions")
	pflag.BoolP("verbose", "v", false, "Enable debug logging")
}

// overlayFlags applies the flags that were explicitly set on the command
// line over the Driver's configuration. Flags left at their defaults do
// not clobber options passed to NewDriver.
func (d *Driver) overlayFlags() {
	pflag.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "lower":
			d.config.Lower = viper.GetFloat64("lower")
		case "upper":
			d.config.Upper = viper.GetFloat64("upper")
		case "subintervals":
			d.config.Subintervals = viper.GetInt64("subintervals")
		case "workers":
			d.config.Workers = viper.GetInt("workers")
		case "function":
			d.config.Function = viper.GetString("function")
			d.job.F = nil // force a registry lookup
		case "transport":
			d.config.Transport = viper.GetString("transport")
		case "nats_url":
			d.config.NATSURL = viper.GetString("nats_url")
		case "rank":
			d.config.Rank = viper.GetInt("rank")
		case "memoize_points":
			d.config.MemoizePoints = viper.GetInt("memoize_points")
		case "progress":
			d.config.Progress = viper.GetBool("progress")
		case "verbose":
			d.config.Verbose = viper.GetBool("verbose")
		}
	})
}

// Main parses command line flags, runs the integration and reports the
// result on the designated worker.
func (d *Driver) Main() {
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	d.overlayFlags()
	d.applyLogLevel()

	start := time.Now()
	total, err := d.Run(context.Background())
	if err != nil {
		log.Errorf("Integration failed: %s", err)
		os.Exit(abortBadConfig)
	}
	elapsed := time.Since(start)

	if d.config.Transport == TransportNATS && d.config.Rank != rootRank {
		return
	}

	fmt.Printf("With n = %d trapezoids, the estimate of the integral\n", d.config.Subintervals)
	fmt.Printf("from %f to %f = %f\n", d.config.Lower, d.config.Upper, total)
	if d.namedIntegrand && d.config.Function == "x^2" {
		exact := (math.Pow(d.config.Upper, 3) - math.Pow(d.config.Lower, 3)) / 3.0
		fmt.Printf("True Value: %f\n", exact)
		fmt.Printf("True Error: %f\n", math.Abs(total-exact))
	}
	fmt.Printf("Job Execution Time: %s\n", elapsed)
}
