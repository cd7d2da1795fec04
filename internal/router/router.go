// Package router holds the plumbing every platform router shares:
// dependency bundle, error handling, identity normalization, payload
// digging, timestamp resolution and drop accounting.
package router

import (
	"log/slog"
	"strings"

	"github.com/you/crossfeed/internal/config"
	"github.com/you/crossfeed/internal/core"
	"github.com/you/crossfeed/internal/rawlog"
)

// ErrorHandler is the centralized sink for payloads that could not be
// normalized. Implementations must not panic.
type ErrorHandler interface {
	HandleEventError(err error, eventType string, payload any, humanMsg string)
}

// SlogErrorHandler reports processing errors through slog at debug level;
// bad payloads are routine and must not spam the operator.
type SlogErrorHandler struct {
	Scope string
}

func (h SlogErrorHandler) HandleEventError(err error, eventType string, payload any, humanMsg string) {
	slog.Debug("event processing error",
		"scope", h.Scope,
		"type", eventType,
		"err", err,
		"detail", humanMsg,
	)
}

// Deps is the constructor bundle for a platform router. Emit surrenders
// event ownership to the bus. Raw may be nil when data logging is off.
type Deps struct {
	Config  *config.Config
	Factory *core.Factory
	Emit    func(core.Event)
	Raw     rawlog.Writer
	Errors  ErrorHandler
	Metrics *Metrics
}

// LogRaw archives a payload when data logging is enabled. Fire and
// forget; archive failures never reach the normalization path.
func (d *Deps) LogRaw(platform, eventType string, payload any) {
	if d.Raw == nil || !d.Config.Logging.DataLoggingEnabled {
		return
	}
	if err := d.Raw.Write(platform, eventType, payload); err != nil {
		d.Errors.HandleEventError(err, eventType, nil, "raw log write failed")
	}
}

// Publish emits the event and bumps the emitted counter.
func (d *Deps) Publish(ev core.Event) {
	if d.Metrics != nil {
		d.Metrics.IncEmitted(string(ev.Platform), string(ev.Type))
	}
	d.Emit(ev)
}

// Guard wraps a handler call so a panic in one event cannot take down
// the transport goroutine; subsequent events keep flowing.
func (d *Deps) Guard(eventType string, payload any, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = &panicError{value: r}
			}
			d.Errors.HandleEventError(err, eventType, payload, "handler panic")
			if d.Metrics != nil {
				d.Metrics.IncPanics(eventType)
			}
		}
	}()
	fn()
}

type panicError struct {
	value any
}

func (e *panicError) Error() string { return "handler panic" }

// Identity is a normalized user reference. Both fields are trimmed and
// non-empty when Ok reported true.
type Identity struct {
	Username string
	UserID   string
}

// NormalizeIdentity trims both parts and reports whether a complete
// identity was present. Partial identity is the caller's error to handle.
func NormalizeIdentity(username, userID string) (Identity, bool) {
	id := Identity{
		Username: strings.TrimSpace(username),
		UserID:   strings.TrimSpace(userID),
	}
	return id, id.Username != "" && id.UserID != ""
}
