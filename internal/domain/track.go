package domain

import (
	"encoding/json"
	"fmt"
)

var ErrMissingField = fmt.Errorf("missing required field")

// Track is the analysis result persisted for one audio file.
type Track struct {
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	BPM      float64 `json:"bpm"`
	Duration float64 `json:"duration"`
	Key      string  `json:"key"`
}

// ParseTrack decodes a cached track record. Unknown fields are ignored;
// every field of Track must be present.
func ParseTrack(data []byte) (*Track, error) {
	var raw struct {
		Title    *string  `json:"title"`
		Artist   *string  `json:"artist"`
		BPM      *float64 `json:"bpm"`
		Duration *float64 `json:"duration"`
		Key      *string  `json:"key"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	switch {
	case raw.Title == nil:
		return nil, fmt.Errorf("%w: title", ErrMissingField)
	case raw.Artist == nil:
		return nil, fmt.Errorf("%w: artist", ErrMissingField)
	case raw.BPM == nil:
		return nil, fmt.Errorf("%w: bpm", ErrMissingField)
	case raw.Duration == nil:
		return nil, fmt.Errorf("%w: duration", ErrMissingField)
	case raw.Key == nil:
		return nil, fmt.Errorf("%w: key", ErrMissingField)
	}

	return &Track{
		Title:    *raw.Title,
		Artist:   *raw.Artist,
		BPM:      *raw.BPM,
		Duration: *raw.Duration,
		Key:      *raw.Key,
	}, nil
}
