package entitlement

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fleet-server/fleet-server-pro/internal/events"
	"github.com/fleet-server/fleet-server-pro/internal/models"
	"github.com/fleet-server/fleet-server-pro/internal/storage"
)

// defaultConflictRetries bounds internal retries of version-guarded updates
const defaultConflictRetries = 3

// Engine is the entitlement and capacity-enforcement core. Resolution is
// read-only and safe for unrestricted concurrent use; all mutations go
// through conditional storage primitives so check-then-act races cannot
// oversubscribe a counter.
type Engine struct {
	store   storage.Store
	events  *events.Publisher
	retries int
	now     func() time.Time
}

// Option configures the engine
type Option func(*Engine)

// WithClock overrides the engine clock
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithConflictRetries overrides the bounded retry count for lost races
func WithConflictRetries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.retries = n
		}
	}
}

// NewEngine creates a new engine. The publisher may be nil.
func NewEngine(store storage.Store, pub *events.Publisher, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		events:  pub,
		retries: defaultConflictRetries,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// logEvent records an event log entry, best effort
func (e *Engine) logEvent(ctx context.Context, event *models.EventLog) {
	if err := e.store.CreateEventLog(ctx, event); err != nil {
		log.Warn().Err(err).Str("type", string(event.Type)).Msg("Failed to write event log")
	}
}
