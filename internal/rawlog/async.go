package rawlog

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Writer is what the routers depend on: fire-and-forget archiving that
// must never slow the normalization path down.
type Writer interface {
	Write(platform, eventType string, payload any) error
}

type queued struct {
	platform  string
	eventType string
	payload   any
}

// Async decouples archiving from the ingest path with a single worker
// goroutine. A full queue drops the payload rather than blocking.
type Async struct {
	base Writer
	ch   chan queued
	wg   sync.WaitGroup

	closeOnce sync.Once

	writeErrors prometheus.Counter
	dropped     prometheus.Counter
}

type AsyncOptions struct {
	QueueSize   int
	WriteErrors prometheus.Counter
	Dropped     prometheus.Counter
}

func NewAsync(base Writer, opts AsyncOptions) *Async {
	size := opts.QueueSize
	if size <= 0 {
		size = 256
	}
	a := &Async{
		base:        base,
		ch:          make(chan queued, size),
		writeErrors: opts.WriteErrors,
		dropped:     opts.Dropped,
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *Async) Write(platform, eventType string, payload any) error {
	select {
	case a.ch <- queued{platform: platform, eventType: eventType, payload: payload}:
	default:
		slog.Warn("rawlog: queue full, payload dropped",
			"platform", platform, "type", eventType)
		if a.dropped != nil {
			a.dropped.Inc()
		}
	}
	return nil
}

// Close drains the queue and stops the worker. Idempotent.
func (a *Async) Close() {
	a.closeOnce.Do(func() {
		close(a.ch)
		a.wg.Wait()
	})
}

func (a *Async) run() {
	defer a.wg.Done()
	for entry := range a.ch {
		if err := a.base.Write(entry.platform, entry.eventType, entry.payload); err != nil {
			slog.Error("rawlog: archive write failed",
				"platform", entry.platform, "type", entry.eventType, "err", err)
			if a.writeErrors != nil {
				a.writeErrors.Inc()
			}
		}
	}
}
