// Package event carries catalog lifecycle notifications between components
// without coupling them: the inbox and backup services publish, the process
// entrypoint decides who listens.
package event

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Type identifies a category of event.
type Type string

// Catalog lifecycle events.
const (
	BandCreated     Type = "band.created"
	BandImported    Type = "band.imported"
	InboxRejected   Type = "inbox.rejected"
	BackupCompleted Type = "backup.completed"
)

// Event is a single notification with free-form payload data.
type Event struct {
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Handler processes one event. Handlers run on the bus goroutine, so they
// must not block for long.
type Handler func(Event)

// Bus fans events out to subscribed handlers. Delivery is asynchronous and
// best-effort: publishing never blocks, and a full buffer drops the event.
type Bus struct {
	ch     chan Event
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[Type][]Handler
}

// NewBus creates a bus whose publish buffer holds bufSize events.
func NewBus(logger *slog.Logger, bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Bus{
		ch:     make(chan Event, bufSize),
		subs:   make(map[Type][]Handler),
		logger: logger,
	}
}

// Subscribe registers a handler for one event type. Safe to call while the
// bus is running.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	b.subs[t] = append(b.subs[t], h)
	b.mu.Unlock()
}

// Publish queues an event, stamping the timestamp if unset.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	select {
	case b.ch <- e:
	default:
		b.logger.Warn("event buffer full, dropping event", slog.String("type", string(e.Type)))
	}
}

// Run dispatches queued events until ctx is canceled, then drains whatever
// is still buffered before returning. Call it in a goroutine.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case e := <-b.ch:
			b.dispatch(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-b.ch:
					b.dispatch(e)
				default:
					return
				}
			}
		}
	}
}

// dispatch runs every handler for the event's type, containing panics so one
// bad handler cannot take down the dispatch loop.
func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	handlers := b.subs[e.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		b.call(h, e)
	}
}

func (b *Bus) call(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				slog.String("type", string(e.Type)),
				slog.Any("panic", r))
		}
	}()
	h(e)
}
