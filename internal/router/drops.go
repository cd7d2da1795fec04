package router

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

const dropSummaryInterval = 5 * time.Second

type dropSummary struct {
	total  int
	byType map[string]int
}

// DropLogger aggregates dropped payloads by reason and flushes a
// periodic summary instead of logging every single drop.
type DropLogger struct {
	scope    string
	interval time.Duration

	mu       sync.Mutex
	nextEmit time.Time
	reasons  map[string]*dropSummary
}

func NewDropLogger(scope string, interval time.Duration) *DropLogger {
	if interval <= 0 {
		interval = dropSummaryInterval
	}
	return &DropLogger{
		scope:    scope,
		interval: interval,
		nextEmit: time.Now().Add(interval),
		reasons:  make(map[string]*dropSummary),
	}
}

// Note records one drop and flushes when the summary window elapsed.
func (d *DropLogger) Note(reason, eventType string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	entry := d.reasons[reason]
	if entry == nil {
		entry = &dropSummary{byType: make(map[string]int)}
		d.reasons[reason] = entry
	}
	entry.total++
	entry.byType[eventType]++

	now := time.Now()
	if !now.Before(d.nextEmit) {
		d.flushLocked(now)
	}
}

// Flush emits any pending summary immediately.
func (d *DropLogger) Flush() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushLocked(time.Now())
}

func (d *DropLogger) flushLocked(now time.Time) {
	if len(d.reasons) == 0 {
		d.nextEmit = now.Add(d.interval)
		return
	}

	reasons := make([]string, 0, len(d.reasons))
	for reason := range d.reasons {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	for _, reason := range reasons {
		rs := d.reasons[reason]
		if rs == nil || rs.total == 0 {
			continue
		}
		slog.Info(d.scope+": dropped_"+reason,
			"total", rs.total,
			"types", rs.byType,
		)
	}

	clear(d.reasons)
	d.nextEmit = now.Add(d.interval)
}
