// Package pads stores per-deck performance pad layouts and dispatches pad
// presses to deck commands.
package pads

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/jaki95/dj-emulator/internal/storage"
)

var ErrUnknownAction = errors.New("unknown pad action")

// Action is what a single pad does when pressed.
type Action string

const (
	Play Action = "Play"
	Cue  Action = "Cue"
	Sync Action = "Sync"
	Loop Action = "Loop"
)

func (a Action) Valid() bool {
	switch a {
	case Play, Cue, Sync, Loop:
		return true
	}
	return false
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !Action(s).Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	*a = Action(s)
	return nil
}

// Preset is a named pad layout for one deck.
type Preset struct {
	Name    string   `json:"name"`
	Actions []Action `json:"actions"`
}

// FileName is the preset file for deck inside a presets directory.
func FileName(deck string) string {
	return deck + "_pad_preset.json"
}

// Path returns where the preset for deck lives in dir.
func Path(dir, deck string) string {
	return filepath.Join(dir, FileName(deck))
}

// Save writes p as pretty JSON, replacing any previous preset for deck.
func Save(dir, deck string, p Preset) error {
	s, err := storage.NewLocalFileStorage(dir)
	if err != nil {
		return err
	}
	for _, a := range p.Actions {
		if !a.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownAction, a)
		}
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preset: %w", err)
	}
	return s.WriteAtomic(FileName(deck), data)
}

// Load reads the preset for deck. A missing file yields storage.ErrNotFound.
func Load(dir, deck string) (*Preset, error) {
	s, err := storage.NewLocalFileStorage(dir)
	if err != nil {
		return nil, err
	}
	r, err := s.Reader(FileName(deck))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read preset: %w", err)
	}
	var p Preset
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse preset %s: %w", FileName(deck), err)
	}
	return &p, nil
}

// Target is the deck surface a pad press drives.
type Target interface {
	Play()
	JumpToCue()
	ToggleLoop()
	MakeMaster()
}

// Dispatch performs a on t.
func Dispatch(a Action, t Target) error {
	switch a {
	case Play:
		t.Play()
	case Cue:
		t.JumpToCue()
	case Loop:
		t.ToggleLoop()
	case Sync:
		t.MakeMaster()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, a)
	}
	return nil
}
