// Package session wires two decks to one mixer engine and exposes the
// control surface a UI drives.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jaki95/dj-emulator/config"
	"github.com/jaki95/dj-emulator/internal/cache"
	"github.com/jaki95/dj-emulator/internal/deck"
	"github.com/jaki95/dj-emulator/internal/fx"
	"github.com/jaki95/dj-emulator/internal/mixer"
	"github.com/jaki95/dj-emulator/internal/pads"
	"github.com/jaki95/dj-emulator/internal/status"
	"github.com/jaki95/dj-emulator/internal/storage"
)

const Decks = 2

var ErrDeckIndex = errors.New("deck index out of range")

// DeckName is the name deck i is published and stored under.
func DeckName(i int) string {
	return fmt.Sprintf("deck%d", i+1)
}

// Session owns both decks and the engine that mixes them.
type Session struct {
	cfg     *config.Config
	decks   [Decks]*deck.Deck
	engine  *mixer.Engine
	tracker *status.Tracker
}

// New builds a session from cfg. c may be nil to disable the metadata cache;
// extra deck options are applied to both decks.
func New(cfg *config.Config, c *cache.Cache, tracker *status.Tracker, opts ...deck.Option) *Session {
	s := &Session{cfg: cfg, tracker: tracker}
	deckOpts := append([]deck.Option{deck.WithCache(c), deck.WithStatus(tracker)}, opts...)
	for i := range s.decks {
		s.decks[i] = deck.New(DeckName(i), cfg.Audio, deckOpts...)
	}
	s.engine = mixer.New(cfg.Audio.SampleRate, cfg.Audio.Channels, s.decks[0].Buffer(), s.decks[1].Buffer())
	return s
}

// Engine is the audio source for the output host.
func (s *Session) Engine() *mixer.Engine { return s.engine }

func (s *Session) Status() *status.Tracker { return s.tracker }

// Deck returns deck i, or nil when i is out of range.
func (s *Session) Deck(i int) *deck.Deck {
	if i < 0 || i >= Decks {
		return nil
	}
	return s.decks[i]
}

func (s *Session) deck(i int) (*deck.Deck, error) {
	d := s.Deck(i)
	if d == nil {
		return nil, fmt.Errorf("%w: %d", ErrDeckIndex, i)
	}
	return d, nil
}

func (s *Session) Load(ctx context.Context, i int, path string) error {
	d, err := s.deck(i)
	if err != nil {
		return err
	}
	if err := d.Load(ctx, path); err != nil {
		return err
	}
	s.engine.ResetFx(i)
	if s.engine.Master() == i {
		s.engine.SyncTempo(d.EffectiveBPM())
	}
	return nil
}

// SetMaster makes deck i the only master and retunes tempo-synced effects on
// both decks to its tempo. mixer.NoMaster clears it.
func (s *Session) SetMaster(i int) error {
	if i == mixer.NoMaster {
		for _, d := range s.decks {
			d.SetMaster(false)
		}
		s.engine.SetMaster(mixer.NoMaster)
		return nil
	}
	d, err := s.deck(i)
	if err != nil {
		return err
	}
	for j, other := range s.decks {
		other.SetMaster(j == i)
	}
	s.engine.SetMaster(i)
	s.engine.SyncTempo(d.EffectiveBPM())
	slog.Info("Master deck changed", "deck", d.Name(), "bpm", d.EffectiveBPM())
	return nil
}

// SetBPMOverride replaces deck i's tempo; nil returns to the detected one.
func (s *Session) SetBPMOverride(i int, bpm *float64) error {
	d, err := s.deck(i)
	if err != nil {
		return err
	}
	d.SetBPMOverride(bpm)
	if s.engine.Master() == i {
		s.engine.SyncTempo(d.EffectiveBPM())
	}
	return nil
}

// SetFxSlot installs an effect built from name into a slot of deck i's chain.
// Tempo-synced effects start at the deck's own tempo until a master is set.
func (s *Session) SetFxSlot(i, slot int, name string, params fx.Params, enabled, momentary bool, dryWet float64) error {
	d, err := s.deck(i)
	if err != nil {
		return err
	}
	if slot < 0 || slot >= mixer.MaxSlots {
		return fmt.Errorf("fx slot %d out of range", slot)
	}
	if params.SampleRate == 0 {
		params.SampleRate = s.cfg.Audio.SampleRate
	}
	if params.Channels == 0 {
		params.Channels = s.cfg.Audio.Channels
	}
	if params.BPM == 0 {
		params.BPM = d.EffectiveBPM()
	}
	e, err := fx.New(name, params)
	if err != nil {
		return err
	}
	s.engine.SetFxSlot(i, slot, fx.NewSlot(e, dryWet, enabled, momentary))
	return nil
}

// Trigger performs a pad action on deck i.
func (s *Session) Trigger(i int, a pads.Action) error {
	if _, err := s.deck(i); err != nil {
		return err
	}
	return pads.Dispatch(a, deckTarget{s: s, i: i})
}

// LoadPads reads deck i's preset from the configured pads directory.
func (s *Session) LoadPads(i int) (*pads.Preset, error) {
	if _, err := s.deck(i); err != nil {
		return nil, err
	}
	p, err := pads.Load(s.cfg.Pads.Dir, DeckName(i))
	if errors.Is(err, storage.ErrNotFound) {
		return &pads.Preset{Name: DeckName(i)}, nil
	}
	return p, err
}

func (s *Session) SavePads(i int, p pads.Preset) error {
	if _, err := s.deck(i); err != nil {
		return err
	}
	return pads.Save(s.cfg.Pads.Dir, DeckName(i), p)
}

// State is a full snapshot for rendering. Status holds the latest event per
// deck, nil before the deck's first load.
type State struct {
	Decks         [Decks]deck.State    `json:"decks"`
	Status        [Decks]*status.Event `json:"status"`
	Mixer         mixer.Controls       `json:"mixer"`
	DroppedEvents int64                `json:"droppedEvents"`
}

func (s *Session) State() State {
	var st State
	for i, d := range s.decks {
		st.Decks[i] = d.State()
		if s.tracker == nil {
			continue
		}
		if e, ok := s.tracker.Current(d.Name()); ok {
			st.Status[i] = &e
		}
	}
	if s.tracker != nil {
		st.DroppedEvents = s.tracker.Dropped()
	}
	st.Mixer = s.engine.Controls()
	return st
}

// Close stops both producers and ends the engine's stream cleanly. The
// output host must be closed after this.
func (s *Session) Close() {
	for _, d := range s.decks {
		d.Close()
	}
	s.engine.Stop(nil)
}

type deckTarget struct {
	s *Session
	i int
}

func (t deckTarget) Play()      { t.s.decks[t.i].Play() }
func (t deckTarget) JumpToCue() { t.s.decks[t.i].JumpToCue() }

// ToggleLoop clears an active loop, otherwise sets the next missing loop
// point at the current position.
func (t deckTarget) ToggleLoop() {
	d := t.s.decks[t.i]
	st := d.State()
	switch {
	case st.LoopActive:
		d.ClearLoop()
	case st.LoopIn == nil || (st.LoopOut != nil && *st.LoopIn >= *st.LoopOut):
		d.ClearLoop()
		d.SetLoopIn()
	default:
		d.SetLoopOut()
	}
}

func (t deckTarget) MakeMaster() {
	_ = t.s.SetMaster(t.i)
}
