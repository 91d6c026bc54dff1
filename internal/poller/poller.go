package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/john/popupchat/internal/buffer"
	"github.com/john/popupchat/internal/feed"
	"github.com/john/popupchat/internal/message"
)

// DefaultInterval is the pause between two poll cycles
const DefaultInterval = 500 * time.Millisecond

// Tick is sent once per completed cycle. Receivers re-read the buffer and scroll to the end.
type Tick struct {
	Added int
}

// Stats is a point-in-time view of the poller counters
type Stats struct {
	Polls       uint64 `json:"polls"`
	FetchErrors uint64 `json:"fetch_errors"`
	LastError   string `json:"last_error,omitempty"`
}

// handle gives exclusive access to the feed client, one fetch in flight at a time
type handle struct {
	sem    chan struct{}
	client feed.Client
}

func newHandle(client feed.Client) *handle {
	return &handle{sem: make(chan struct{}, 1), client: client}
}

// fetch holds the handle only for the duration of the network call
func (h *handle) fetch(ctx context.Context) ([]message.Raw, error) {
	select {
	case h.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-h.sem }()

	return h.client.Fetch(ctx)
}

// Poller pulls batches from a feed client into the shared buffer
type Poller struct {
	log      *slog.Logger
	client   *handle
	buf      *buffer.Buffer
	interval time.Duration
	ticks    chan Tick

	polls       atomic.Uint64
	fetchErrors atomic.Uint64
	mu          sync.Mutex
	lastErr     string
}

// New creates a poller. The client must already be started.
func New(log *slog.Logger, client feed.Client, buf *buffer.Buffer, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		log:      log,
		client:   newHandle(client),
		buf:      buf,
		interval: interval,
		ticks:    make(chan Tick, 1),
	}
}

// Ticks delivers one event per completed cycle
func (p *Poller) Ticks() <-chan Tick {
	return p.ticks
}

// Run polls until ctx is cancelled
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("Starting chat poller", "interval", p.interval, "capacity", p.buf.Capacity())

	for {
		added, _ := p.Cycle(ctx)

		select {
		case <-ctx.Done():
			p.log.Info("Chat poller stopped")
			return ctx.Err()
		case <-time.After(p.interval):
		}

		p.notify(Tick{Added: added})
	}
}

// Cycle performs one fetch, normalize and merge pass and returns the number of records added.
// Fetch failures are logged and counted; the cycle then behaves as if nothing arrived.
func (p *Poller) Cycle(ctx context.Context) (int, error) {
	p.polls.Add(1)

	raws, err := p.client.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		p.recordFailure(err)
		p.log.Warn("Fetch failed, retrying next cycle", "error", err)
		return 0, fmt.Errorf("fetch: %w", err)
	}

	records := message.NormalizeBatch(raws)
	if len(records) == 0 {
		return 0, nil
	}

	if err := p.buf.Append(records); err != nil {
		if errors.Is(err, buffer.ErrBroken) {
			p.log.Error("Dropping batch, buffer unavailable", "error", err, "dropped", len(records))
		}
		return 0, fmt.Errorf("append: %w", err)
	}

	p.log.Debug("Merged chat batch", "added", len(records), "size", p.buf.Len())
	return len(records), nil
}

// Stats returns the poller counters
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	lastErr := p.lastErr
	p.mu.Unlock()

	return Stats{
		Polls:       p.polls.Load(),
		FetchErrors: p.fetchErrors.Load(),
		LastError:   lastErr,
	}
}

func (p *Poller) recordFailure(err error) {
	p.fetchErrors.Add(1)
	p.mu.Lock()
	p.lastErr = err.Error()
	p.mu.Unlock()
}

// notify never blocks: a pending tick already asks the reader to refresh
func (p *Poller) notify(t Tick) {
	select {
	case p.ticks <- t:
	default:
	}
}
