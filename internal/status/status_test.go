package status

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestReporterPublishes(t *testing.T) {
	tracker := NewTracker(8)

	var receivedEvents []Event
	tracker.AddListener(func(event Event) {
		receivedEvents = append(receivedEvents, event)
	})

	r := tracker.NewReporter("deck1", "/music/a.wav")
	r.Report(StageLoading, "Loading")
	r.Report(StageLoaded, "Loaded")

	if len(receivedEvents) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(receivedEvents))
	}
	for _, e := range receivedEvents {
		if e.Deck != "deck1" || e.Path != "/music/a.wav" {
			t.Errorf("Unexpected event origin: %+v", e)
		}
		if e.LoadID != r.LoadID() {
			t.Errorf("Expected load ID %s, got %s", r.LoadID(), e.LoadID)
		}
		if e.Timestamp.IsZero() {
			t.Error("Expected timestamp to be set")
		}
	}
	if _, err := uuid.Parse(r.LoadID()); err != nil {
		t.Errorf("Load ID is not a UUID: %v", err)
	}

	state, ok := tracker.Current("deck1")
	if !ok || state.Stage != StageLoaded {
		t.Errorf("Expected loaded stage, got %+v", state)
	}
}

func TestReporterFail(t *testing.T) {
	tracker := NewTracker(8)
	r := tracker.NewReporter("deck2", "b.mp3")

	r.Fail(errors.New("corrupt stream"))
	r.Fail(nil)

	state, ok := tracker.Current("deck2")
	if !ok {
		t.Fatal("Expected a current state")
	}
	if state.Stage != StageError {
		t.Errorf("Expected error stage, got %s", state.Stage)
	}
	if state.Error != "corrupt stream" {
		t.Errorf("Expected error %q, got %q", "corrupt stream", state.Error)
	}
	if len(tracker.Events()) != 1 {
		t.Errorf("Expected 1 buffered event, got %d", len(tracker.Events()))
	}
}

func TestNewReporterLoadIDsDiffer(t *testing.T) {
	tracker := NewTracker(1)
	if tracker.NewReporter("d", "").LoadID() == tracker.NewReporter("d", "").LoadID() {
		t.Error("Expected distinct load IDs")
	}
}

func TestNilTrackerDiscards(t *testing.T) {
	var tracker *Tracker
	r := tracker.NewReporter("deck1", "x")
	r.Report(StageLoading, "ignored")
	r.Fail(errors.New("ignored"))

	var nilReporter *Reporter
	nilReporter.Report(StageEnded, "ignored")
}

func TestEventsChannelDropsWhenFull(t *testing.T) {
	tracker := NewTracker(2)

	received := 0
	tracker.AddListener(func(Event) { received++ })

	r := tracker.NewReporter("deck1", "")
	for i := 0; i < 5; i++ {
		r.Report(StageStreaming, "chunk")
	}

	if received != 5 {
		t.Errorf("Expected listeners to see 5 events, got %d", received)
	}
	if len(tracker.Events()) != 2 {
		t.Errorf("Expected 2 buffered events, got %d", len(tracker.Events()))
	}
	if tracker.Dropped() != 3 {
		t.Errorf("Expected 3 dropped events, got %d", tracker.Dropped())
	}

	select {
	case e := <-tracker.Events():
		if e.Stage != StageStreaming {
			t.Errorf("Unexpected stage %s", e.Stage)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a buffered event")
	}
}

func TestEventJSON(t *testing.T) {
	event := Event{
		Deck:      "deck1",
		LoadID:    uuid.NewString(),
		Stage:     StageEnded,
		Message:   "Track ended",
		Timestamp: time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}

	var unmarshaled Event
	if err := json.Unmarshal(data, &unmarshaled); err != nil {
		t.Fatalf("Failed to unmarshal event: %v", err)
	}

	if unmarshaled.Stage != event.Stage {
		t.Errorf("Expected stage %s, got %s", event.Stage, unmarshaled.Stage)
	}
	if unmarshaled.LoadID != event.LoadID {
		t.Errorf("Expected load ID %s, got %s", event.LoadID, unmarshaled.LoadID)
	}
	if !unmarshaled.Timestamp.Equal(event.Timestamp) {
		t.Errorf("Expected timestamp %v, got %v", event.Timestamp, unmarshaled.Timestamp)
	}
}

func TestListenerManagement(t *testing.T) {
	tracker := NewTracker(4)

	// Add a listener
	var receivedEvents []Event
	listener := func(event Event) {
		receivedEvents = append(receivedEvents, event)
	}
	tracker.AddListener(listener)

	r := tracker.NewReporter("deck1", "")
	r.Report(StageLoading, "Test")

	if len(receivedEvents) != 1 {
		t.Errorf("Expected 1 event, got %d", len(receivedEvents))
	}

	// Remove the listener
	tracker.RemoveListener(listener)

	r.Report(StageLoaded, "Test 2")

	if len(receivedEvents) != 1 {
		t.Errorf("Expected 1 event after removal, got %d", len(receivedEvents))
	}
}
