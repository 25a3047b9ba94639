/*Package trapr estimates definite integrals with the composite trapezoidal
rule, distributing the work across a fixed pool of workers that share no
memory and cooperate only through broadcast and reduce collectives.

The runtime model is deliberately simple: a driver broadcasts the global
problem (bounds and subinterval count) to every worker, each worker derives
its own contiguous slice of the domain, integrates it locally, and a single
sum reduction materializes the global estimate on the designated root
worker. Workers never exchange state outside of those two collective points.

Workers can run as goroutines inside a single process (the default) or as
one process per worker connected through NATS, following the same
per-worker protocol in both cases.
*/
package trapr
