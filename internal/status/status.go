// Package status carries deck load and producer events to whoever renders
// them. Producers publish from their own goroutines; the UI drains Events at
// idle or registers listeners.
package status

import (
	"encoding/json"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Stage represents where a deck's current load is
type Stage string

const (
	StageLoading   Stage = "loading"
	StageLoaded    Stage = "loaded"
	StageStreaming Stage = "streaming"
	StageEnded     Stage = "ended"
	StageError     Stage = "error"
	StageCancelled Stage = "cancelled"
)

// Event represents a status event for one deck
type Event struct {
	Deck      string    `json:"deck"`
	LoadID    string    `json:"loadId"`
	Stage     Stage     `json:"stage"`
	Message   string    `json:"message"`
	Path      string    `json:"path,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracker keeps the latest event per deck and fans events out.
type Tracker struct {
	mu        sync.RWMutex
	current   map[string]Event
	listeners []func(Event)

	events  chan Event
	dropped atomic.Int64
}

// NewTracker creates a tracker whose Events channel buffers up to buffer
// events. Events published while the channel is full are dropped from the
// channel only; listeners and Current still see them.
func NewTracker(buffer int) *Tracker {
	return &Tracker{
		current:   make(map[string]Event),
		listeners: make([]func(Event), 0),
		events:    make(chan Event, buffer),
	}
}

// AddListener adds a new status event listener
func (t *Tracker) AddListener(listener func(Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, listener)
}

// RemoveListener removes a status event listener
func (t *Tracker) RemoveListener(listener func(Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	listenerPtr := reflect.ValueOf(listener).Pointer()
	for i := range t.listeners {
		if reflect.ValueOf(t.listeners[i]).Pointer() == listenerPtr {
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			break
		}
	}
}

// Publish records e as the deck's current state and notifies listeners.
func (t *Tracker) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	t.mu.Lock()
	t.current[e.Deck] = e
	t.mu.Unlock()

	select {
	case t.events <- e:
	default:
		t.dropped.Add(1)
	}

	t.notifyListeners(e)
}

func (t *Tracker) notifyListeners(e Event) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, listener := range t.listeners {
		listener(e)
	}
}

// Events returns the buffered event stream.
func (t *Tracker) Events() <-chan Event {
	return t.events
}

// Dropped returns how many events did not fit in the Events buffer.
func (t *Tracker) Dropped() int64 {
	return t.dropped.Load()
}

// Current returns the latest event for deck.
func (t *Tracker) Current(deck string) (Event, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.current[deck]
	return e, ok
}

// Reporter publishes events for one load of one deck.
type Reporter struct {
	tracker *Tracker
	deck    string
	loadID  string
	path    string
}

// NewReporter starts a load with a fresh ID. A nil tracker gives a reporter
// that discards everything.
func (t *Tracker) NewReporter(deck, path string) *Reporter {
	return &Reporter{tracker: t, deck: deck, loadID: uuid.NewString(), path: path}
}

func (r *Reporter) LoadID() string {
	return r.loadID
}

func (r *Reporter) Report(stage Stage, message string) {
	if r == nil || r.tracker == nil {
		return
	}
	r.tracker.Publish(Event{
		Deck:    r.deck,
		LoadID:  r.loadID,
		Stage:   stage,
		Message: message,
		Path:    r.path,
	})
}

// Fail publishes err as an error event.
func (r *Reporter) Fail(err error) {
	if r == nil || r.tracker == nil || err == nil {
		return
	}
	r.tracker.Publish(Event{
		Deck:    r.deck,
		LoadID:  r.loadID,
		Stage:   StageError,
		Message: err.Error(),
		Path:    r.path,
		Error:   err.Error(),
	})
}

// MarshalJSON implements json.Marshaler for Event
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Timestamp: e.Timestamp.Format(time.RFC3339),
		Alias:     (*Alias)(&e),
	})
}

// UnmarshalJSON implements json.Unmarshaler for Event
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339, aux.Timestamp)
	if err != nil {
		return err
	}
	e.Timestamp = t
	return nil
}
