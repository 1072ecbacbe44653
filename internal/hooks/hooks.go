// Package hooks broadcasts domain events raised by the engines to
// registered listeners.
//
// Delivery is fire-and-forget: a failing or panicking listener is logged
// and never affects the request that raised the event.
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/taxii/internal/taxii"
)

// EventKind identifies what happened.
type EventKind string

const (
	InboxMessageCreated EventKind = "inbox_message_created"
	ContentBlockCreated EventKind = "content_block_created"
	SubscriptionCreated EventKind = "subscription_created"
)

// Event describes one created entity. Exactly one of the entity pointers is
// set, matching Kind.
type Event struct {
	Kind          EventKind
	ServiceID     string
	InboxMessage  *taxii.InboxMessage
	ContentBlock  *taxii.ContentBlock
	CollectionIDs []int64
	Subscription  *taxii.Subscription
}

// Listener handles an event.
type Listener func(ctx context.Context, ev Event) error

// Registry fans events out to listeners in registration order.
//
// Thread-safety: Subscribe and Notify are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	listeners map[EventKind][]Listener
	log       *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger uses slog.Default().
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		listeners: make(map[EventKind][]Listener),
		log:       log,
	}
}

// Subscribe registers l for every event of the given kinds.
func (r *Registry) Subscribe(l Listener, kinds ...EventKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range kinds {
		r.listeners[k] = append(r.listeners[k], l)
	}
}

// Notify delivers ev to every listener of its kind.
func (r *Registry) Notify(ctx context.Context, ev Event) {
	r.mu.RLock()
	listeners := append([]Listener(nil), r.listeners[ev.Kind]...)
	r.mu.RUnlock()

	for _, l := range listeners {
		if err := r.call(ctx, l, ev); err != nil {
			r.log.Warn("hook listener failed", "event", ev.Kind, "error", err)
		}
	}
}

func (r *Registry) call(ctx context.Context, l Listener, ev Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("listener panic: %v", p)
		}
	}()
	return l(ctx, ev)
}

// LogListener returns a listener that records every event at Info level.
func LogListener(log *slog.Logger) Listener {
	return func(ctx context.Context, ev Event) error {
		attrs := []any{"event", ev.Kind, "service", ev.ServiceID}
		switch {
		case ev.InboxMessage != nil:
			attrs = append(attrs, "message_id", ev.InboxMessage.MessageID, "blocks", ev.InboxMessage.ContentBlockCount)
		case ev.ContentBlock != nil:
			attrs = append(attrs, "block_id", ev.ContentBlock.ID, "binding", ev.ContentBlock.BindingID, "collections", ev.CollectionIDs)
		case ev.Subscription != nil:
			attrs = append(attrs, "subscription_id", ev.Subscription.ID, "collection_id", ev.Subscription.CollectionID)
		}
		log.InfoContext(ctx, "hook", attrs...)
		return nil
	}
}
