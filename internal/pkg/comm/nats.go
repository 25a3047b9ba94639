package comm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

// DefaultNATSURL is the connection URL used when none is configured.
const DefaultNATSURL = nats.DefaultURL

// NATSConfig describes one worker process's place in a NATS-connected
// group. Rank and Size come from configuration: the topology is fixed for
// the lifetime of a run, there is no discovery.
type NATSConfig struct {
	URL    string
	Prefix string // subject prefix, e.g. "trapr" -> trapr.problem, trapr.reduce, trapr.abort
	Rank   int
	Size   int
}

// NATS is a Communicator backed by a NATS server, one process per rank.
// The root publishes the problem on <prefix>.problem, every other rank
// publishes its partial on <prefix>.reduce, and any rank may publish on
// <prefix>.abort to stop the run everywhere.
type NATS struct {
	cfg NATSConfig
	nc  *nats.Conn

	problem *nats.Subscription
	reduce  *nats.Subscription

	abortCtx    context.Context
	abortCancel context.CancelFunc

	mu       sync.Mutex
	abortErr *AbortError
}

type reducePayload struct {
	Rank  int     `json:"rank"`
	Value float64 `json:"value"`
}

type abortPayload struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// DialNATS connects a worker endpoint. All subscriptions are registered
// and flushed before returning, so a root that broadcasts immediately
// after every rank has dialed cannot race past a late subscriber.
func DialNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.Size < 1 {
		return nil, fmt.Errorf("group size must be at least 1, got %d", cfg.Size)
	}
	if cfg.Rank < 0 || cfg.Rank >= cfg.Size {
		return nil, fmt.Errorf("rank %d out of range [0, %d)", cfg.Rank, cfg.Size)
	}
	if cfg.URL == "" {
		cfg.URL = DefaultNATSURL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "trapr"
	}

	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}

	n := &NATS{cfg: cfg, nc: nc}
	n.abortCtx, n.abortCancel = context.WithCancel(context.Background())

	n.problem, err = nc.SubscribeSync(cfg.Prefix + ".problem")
	if err == nil && cfg.Rank == 0 {
		n.reduce, err = nc.SubscribeSync(cfg.Prefix + ".reduce")
	}
	if err == nil {
		_, err = nc.Subscribe(cfg.Prefix+".abort", func(msg *nats.Msg) {
			code, reason, decodeErr := decodeAbort(msg.Data)
			if decodeErr != nil {
				code, reason = 1, "malformed abort message"
			}
			n.setAbort(code, reason)
		})
	}
	if err == nil {
		err = nc.Flush()
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribing collectives: %w", err)
	}
	return n, nil
}

// Close releases the connection. It does not abort the run.
func (n *NATS) Close() {
	n.abortCancel()
	n.nc.Close()
}

func (n *NATS) Rank() int { return n.cfg.Rank }
func (n *NATS) Size() int { return n.cfg.Size }

func (n *NATS) Broadcast(ctx context.Context, data []byte, root int) ([]byte, error) {
	if n.cfg.Rank == root {
		if err := n.nc.Publish(n.cfg.Prefix+".problem", data); err != nil {
			return nil, err
		}
		if err := n.nc.Flush(); err != nil {
			return nil, err
		}
		return data, nil
	}

	cctx, cancel := n.collectiveContext(ctx)
	defer cancel()
	msg, err := n.problem.NextMsgWithContext(cctx)
	if err != nil {
		if aborted := n.abortError(); aborted != nil {
			return nil, aborted
		}
		return nil, err
	}
	return msg.Data, nil
}

func (n *NATS) Reduce(ctx context.Context, value float64, root int) (float64, error) {
	if n.cfg.Rank != root {
		data, err := encodeReduce(n.cfg.Rank, value)
		if err != nil {
			return 0, err
		}
		if err := n.nc.Publish(n.cfg.Prefix+".reduce", data); err != nil {
			return 0, err
		}
		if err := n.nc.Flush(); err != nil {
			return 0, err
		}
		if aborted := n.abortError(); aborted != nil {
			return 0, aborted
		}
		return 0, nil
	}

	cctx, cancel := n.collectiveContext(ctx)
	defer cancel()

	total := value
	for received := 1; received < n.cfg.Size; received++ {
		msg, err := n.reduce.NextMsgWithContext(cctx)
		if err != nil {
			if aborted := n.abortError(); aborted != nil {
				return 0, aborted
			}
			return 0, err
		}
		_, v, err := decodeReduce(msg.Data)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}

func (n *NATS) Abort(code int, reason string) {
	n.setAbort(code, reason)
	data, err := encodeAbort(code, reason)
	if err != nil {
		return
	}
	n.nc.Publish(n.cfg.Prefix+".abort", data)
	n.nc.Flush()
}

// collectiveContext derives a context that also fails when the run aborts.
func (n *NATS) collectiveContext(ctx context.Context) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(n.abortCtx, cancel)
	return cctx, func() {
		stop()
		cancel()
	}
}

func (n *NATS) setAbort(code int, reason string) {
	n.mu.Lock()
	if n.abortErr == nil {
		n.abortErr = &AbortError{Code: code, Reason: reason}
	}
	n.mu.Unlock()
	n.abortCancel()
}

func (n *NATS) abortError() *AbortError {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.abortErr == nil {
		return nil
	}
	err := *n.abortErr
	return &err
}

func encodeReduce(rank int, value float64) ([]byte, error) {
	return json.Marshal(reducePayload{Rank: rank, Value: value})
}

func decodeReduce(data []byte) (int, float64, error) {
	var p reducePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, 0, fmt.Errorf("malformed reduce payload: %w", err)
	}
	return p.Rank, p.Value, nil
}

func encodeAbort(code int, reason string) ([]byte, error) {
	return json.Marshal(abortPayload{Code: code, Reason: reason})
}

func decodeAbort(data []byte) (int, string, error) {
	var p abortPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, "", fmt.Errorf("malformed abort payload: %w", err)
	}
	return p.Code, p.Reason, nil
}
