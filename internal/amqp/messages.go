package amqp

import (
	"encoding/json"
	"time"

	"bilancio/internal/core"
)

// Mutation kinds carried on the wire.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// EntityEvent announces that one record changed. Consumers fetch the
// record themselves when they need more than the id; the message stays
// small so subscribers of any kind can react to store writes.
type EntityEvent struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Op         string    `json:"op"`
	OccurredAt time.Time `json:"occurredAt"`
}

func NewEntityEvent(collection core.Collection, id, op string) *EntityEvent {
	return &EntityEvent{
		Collection: string(collection),
		ID:         id,
		Op:         op,
		OccurredAt: time.Now(),
	}
}

func (e *EntityEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EntityEventFromJSON(data []byte) (*EntityEvent, error) {
	var ev EntityEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
