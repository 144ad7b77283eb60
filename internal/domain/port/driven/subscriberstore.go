package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/sharedlogin/internal/domain/model"
)

// ErrSubscriberNotFound indicates the requested subscriber does not exist.
var ErrSubscriberNotFound = errors.New("subscriber not found")

// SubscriberStore defines the driven port for subscriber persistence.
type SubscriberStore interface {
	// Upsert inserts or replaces a subscriber. An empty ID gets a new one.
	Upsert(ctx context.Context, sub model.Subscriber) (string, error)

	// Get returns the subscriber with the given ID, or ErrSubscriberNotFound.
	Get(ctx context.Context, id string) (model.Subscriber, error)

	// List returns all subscribers, soft-deleted ones included.
	List(ctx context.Context) ([]model.Subscriber, error)

	// SetDeleted toggles the soft-delete flag.
	SetDeleted(ctx context.Context, id string, deleted bool) error

	// Purge permanently removes the subscriber.
	Purge(ctx context.Context, id string) error
}
