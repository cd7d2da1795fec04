package youtube

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Discovery probes the platform for the broadcaster's currently live
// stream IDs. An empty result means "no information", never "all
// streams ended".
type Discovery func(ctx context.Context) ([]string, error)

// Connector attaches and detaches chat transports for individual
// streams.
type Connector interface {
	Connect(ctx context.Context, streamID string) error
	Disconnect(streamID string)
}

// Detector polls stream discovery and keeps up to maxStreams chat
// connections alive, announcing newly seen streams on the bus.
type Detector struct {
	router    *Router
	discover  Discovery
	connector Connector

	pollInterval      time.Duration
	fullCheckInterval time.Duration
	maxStreams        int
	now               func() time.Time

	mu            sync.Mutex
	connected     map[string]struct{}
	seen          map[string]struct{}
	lastFullCheck time.Time
	inShortage    bool
	shortageWarn  *rate.Sometimes

	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

type DetectorOptions struct {
	PollInterval      time.Duration
	FullCheckInterval time.Duration
	MaxStreams        int
}

func NewDetector(r *Router, discover Discovery, connector Connector, opts DetectorOptions) *Detector {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Minute
	}
	if opts.FullCheckInterval <= 0 {
		opts.FullCheckInterval = 5 * time.Minute
	}
	if opts.MaxStreams <= 0 {
		opts.MaxStreams = 1
	}
	return &Detector{
		router:            r,
		discover:          discover,
		connector:         connector,
		pollInterval:      opts.PollInterval,
		fullCheckInterval: opts.FullCheckInterval,
		maxStreams:        opts.MaxStreams,
		now:               time.Now,
		connected:         make(map[string]struct{}),
		seen:              make(map[string]struct{}),
		shortageWarn:      &rate.Sometimes{Interval: opts.FullCheckInterval},
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
	}
}

// Start launches the polling loop. The first probe runs immediately.
func (d *Detector) Start(ctx context.Context) {
	d.mu.Lock()
	d.started = true
	d.mu.Unlock()
	go func() {
		defer close(d.doneCh)
		d.tick(ctx)
		ticker := time.NewTicker(d.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.tick(ctx)
			case <-d.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts polling. Idempotent, and safe on a detector that was
// never started; existing connections are left to the router's cleanup.
func (d *Detector) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		d.mu.Lock()
		started := d.started
		d.mu.Unlock()
		if started {
			<-d.doneCh
		}
	})
}

func (d *Detector) tick(ctx context.Context) {
	d.mu.Lock()
	atCapacity := len(d.connected) >= d.maxStreams
	sinceFull := d.now().Sub(d.lastFullCheck)
	d.mu.Unlock()

	// at capacity there is nothing to connect; only re-probe when the
	// full-check window elapsed
	if atCapacity && sinceFull < d.fullCheckInterval {
		return
	}

	ids, err := d.discover(ctx)
	if err != nil {
		slog.Warn("youtube: stream discovery failed", "err", err)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastFullCheck = d.now()

	if len(ids) == 0 {
		// no information; never tear down existing connections on it
		return
	}

	live := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		live[id] = struct{}{}
		if _, ok := d.seen[id]; !ok {
			d.seen[id] = struct{}{}
			d.router.StreamDetected(id)
		}
	}

	for id := range live {
		if len(d.connected) >= d.maxStreams {
			break
		}
		if _, ok := d.connected[id]; ok {
			continue
		}
		if err := d.connector.Connect(ctx, id); err != nil {
			slog.Warn("youtube: stream connect failed", "stream", id, "err", err)
			continue
		}
		d.connected[id] = struct{}{}
		d.router.StreamConnected(id)
	}

	for id := range d.connected {
		if _, stillLive := live[id]; stillLive {
			continue
		}
		d.connector.Disconnect(id)
		delete(d.connected, id)
		d.router.StreamDisconnected(id)
	}

	d.observeShortage(len(live))
}

// observeShortage throttles discovered-below-capacity warnings to one
// per full-check window and logs recovery exactly once.
func (d *Detector) observeShortage(discovered int) {
	if discovered < d.maxStreams {
		d.inShortage = true
		d.shortageWarn.Do(func() {
			slog.Warn("youtube: fewer live streams than capacity",
				"discovered", discovered, "capacity", d.maxStreams)
		})
		return
	}
	if d.inShortage {
		d.inShortage = false
		d.shortageWarn = &rate.Sometimes{Interval: d.fullCheckInterval}
		slog.Info("youtube: stream shortage resolved", "discovered", discovered)
	}
}
