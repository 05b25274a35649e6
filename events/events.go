// Package events fans domain events out to the registered sinks. Delivery
// is best-effort: a failing sink is logged and never fails the request.
package events

import (
	"context"
	"log"
	"sync"
	"time"
)

// Event types
const (
	UserStatusChanged         = "user.status_changed"
	ProductStatusChanged      = "product.status_changed"
	ConsultationStatusChanged = "consultation.status_changed"
	ConsultationResponded     = "consultation.responded"
	ReclamationCreated        = "reclamation.created"
	ReclamationStatusChanged  = "reclamation.status_changed"
	MessageCreated            = "message.created"
)

// Event is a status change or a new record worth telling someone about
type Event struct {
	Type       string    `json:"type" bson:"type"`
	Entity     string    `json:"entity" bson:"entity"`
	EntityID   uint      `json:"entity_id" bson:"entity_id"`
	From       string    `json:"from,omitempty" bson:"from,omitempty"`
	To         string    `json:"to,omitempty" bson:"to,omitempty"`
	Flagged    bool      `json:"flagged,omitempty" bson:"flagged,omitempty"`
	ActorID    uint      `json:"actor_id,omitempty" bson:"actor_id,omitempty"`
	Recipients []uint    `json:"recipients,omitempty" bson:"recipients,omitempty"`
	Summary    string    `json:"summary,omitempty" bson:"summary,omitempty"`
	OccurredAt time.Time `json:"occurred_at" bson:"occurred_at"`
}

// Publisher receives events
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Bus dispatches to every registered publisher
type Bus struct {
	mu    sync.RWMutex
	sinks map[string]Publisher
}

// NewBus returns an empty bus
func NewBus() *Bus {
	return &Bus{sinks: make(map[string]Publisher)}
}

// Register adds or replaces the sink under name
func (b *Bus) Register(name string, p Publisher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks[name] = p
}

// Unregister removes the sink under name
func (b *Bus) Unregister(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sinks, name)
}

// Emit publishes ev to every sink and logs failures
func (b *Bus) Emit(ctx context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for name, sink := range b.sinks {
		if err := sink.Publish(ctx, ev); err != nil {
			log.Printf("events: %s sink failed for %s #%d: %v", name, ev.Type, ev.EntityID, err)
		}
	}
}

// Default is the process-wide bus used by the HTTP handlers
var Default = NewBus()

// Emit publishes on Default
func Emit(ctx context.Context, ev Event) { Default.Emit(ctx, ev) }

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }
