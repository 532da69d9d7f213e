package amqp

import (
	"testing"

	"bilancio/internal/core"
)

func TestEntityEventJSONRoundTrip(t *testing.T) {
	ev := NewEntityEvent(core.CollectionExpenses, "e1", OpUpdated)

	data, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := EntityEventFromJSON(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Collection != "expenses" || got.ID != "e1" || got.Op != OpUpdated {
		t.Fatalf("event = %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatal("occurredAt must survive the round trip")
	}
}

func TestEntityEventFromJSONRejectsGarbage(t *testing.T) {
	if _, err := EntityEventFromJSON([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
