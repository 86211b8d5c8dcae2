package queue

import (
	"context"
	"encoding/json"
)

// EventsChannel is the Pub/Sub channel job lifecycle events are
// published on, bridging the worker process (which produces them) to
// the control plane's websocket hub (which rebroadcasts them) without
// the two sharing any process memory.
const EventsChannel = "job_queue:events"

// eventPublishStore is the narrow slice of store.Store StorePublisher
// needs; declared locally so this package doesn't import store and
// create an import cycle (store has no dependency on queue).
type eventPublishStore interface {
	Publish(ctx context.Context, channel, message string) error
}

// StorePublisher implements EventPublisher by publishing each event as
// JSON on EventsChannel through the store's Pub/Sub, the way the
// worker binary reaches the API binary's websocket hub despite being a
// separate process.
type StorePublisher struct {
	db eventPublishStore
}

// NewStorePublisher builds a StorePublisher over db.
func NewStorePublisher(db eventPublishStore) *StorePublisher {
	return &StorePublisher{db: db}
}

// Publish marshals evt and publishes it, discarding errors the same
// way NoopPublisher does: a dropped event must never fail the job it
// describes.
func (p *StorePublisher) Publish(evt JobEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	_ = p.db.Publish(context.Background(), EventsChannel, string(payload))
}
