package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/dj-emulator/config"
	"github.com/jaki95/dj-emulator/internal/deck"
	"github.com/jaki95/dj-emulator/internal/fx"
	"github.com/jaki95/dj-emulator/internal/mixer"
	"github.com/jaki95/dj-emulator/internal/pads"
	"github.com/jaki95/dj-emulator/internal/status"
	"github.com/jaki95/dj-emulator/internal/testutil"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *manualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

func newSession(t *testing.T) (*Session, *manualClock) {
	t.Helper()
	cfg := config.Default()
	cfg.Audio.SampleRate = 8000
	cfg.Pads.Dir = t.TempDir()

	clock := &manualClock{}
	s := New(cfg, nil, status.NewTracker(32), deck.WithClock(clock))
	t.Cleanup(s.Close)
	return s, clock
}

func loadTone(t *testing.T, s *Session, i int) {
	t.Helper()
	path := testutil.WriteWAV(t, t.TempDir(), DeckName(i)+".wav", 8000, 2, testutil.Sine(8000, 4, 220, 0.5))
	require.NoError(t, s.Load(context.Background(), i, path))
}

func TestDeckNames(t *testing.T) {
	s, _ := newSession(t)
	assert.Equal(t, "deck1", s.Deck(0).Name())
	assert.Equal(t, "deck2", s.Deck(1).Name())
	assert.Nil(t, s.Deck(2))
	assert.Nil(t, s.Deck(-1))
}

func TestMasterIsExclusive(t *testing.T) {
	s, _ := newSession(t)

	require.NoError(t, s.SetMaster(0))
	st := s.State()
	assert.True(t, st.Decks[0].Master)
	assert.False(t, st.Decks[1].Master)
	assert.Equal(t, 0, st.Mixer.Master)
	assert.Equal(t, 120.0, st.Mixer.MasterBPM)

	bpm := 126.0
	require.NoError(t, s.SetBPMOverride(1, &bpm))
	require.NoError(t, s.SetMaster(1))
	st = s.State()
	assert.False(t, st.Decks[0].Master)
	assert.True(t, st.Decks[1].Master)
	assert.Equal(t, 1, st.Mixer.Master)
	assert.Equal(t, 126.0, st.Mixer.MasterBPM)

	require.NoError(t, s.SetMaster(mixer.NoMaster))
	st = s.State()
	assert.False(t, st.Decks[0].Master)
	assert.False(t, st.Decks[1].Master)
	assert.Equal(t, mixer.NoMaster, st.Mixer.Master)
}

func TestBPMOverrideResyncsOnlyMaster(t *testing.T) {
	s, _ := newSession(t)
	require.NoError(t, s.SetMaster(0))

	other := 90.0
	require.NoError(t, s.SetBPMOverride(1, &other))
	assert.Equal(t, 120.0, s.Engine().MasterBPM())

	own := 132.0
	require.NoError(t, s.SetBPMOverride(0, &own))
	assert.Equal(t, 132.0, s.Engine().MasterBPM())
}

func TestDeckIndexErrors(t *testing.T) {
	s, _ := newSession(t)

	assert.ErrorIs(t, s.SetMaster(2), ErrDeckIndex)
	assert.ErrorIs(t, s.SetBPMOverride(-1, nil), ErrDeckIndex)
	assert.ErrorIs(t, s.Trigger(5, pads.Play), ErrDeckIndex)
	assert.ErrorIs(t, s.Load(context.Background(), 3, "x.wav"), ErrDeckIndex)
	_, err := s.LoadPads(9)
	assert.ErrorIs(t, err, ErrDeckIndex)
}

func TestSetFxSlot(t *testing.T) {
	s, _ := newSession(t)

	err := s.SetFxSlot(0, 1, "echo", fx.Params{Division: fx.Half, Feedback: 0.4}, true, false, 0.5)
	require.NoError(t, err)

	slots := s.State().Mixer.Decks[0].Slots
	require.Len(t, slots, 2)
	assert.Equal(t, "", slots[0].Effect)
	assert.Equal(t, "echo", slots[1].Effect)
	assert.True(t, slots[1].Enabled)
	assert.Equal(t, 0.5, slots[1].DryWet)

	assert.ErrorIs(t, s.SetFxSlot(0, 0, "flanger", fx.Params{}, true, false, 1), fx.ErrUnknownEffect)
	assert.Error(t, s.SetFxSlot(0, mixer.MaxSlots, "reverb", fx.Params{}, true, false, 1))
}

func TestTriggerPads(t *testing.T) {
	s, clock := newSession(t)
	loadTone(t, s, 0)
	d := s.Deck(0)

	require.NoError(t, s.Trigger(0, pads.Play))
	assert.True(t, d.IsPlaying())

	clock.Advance(time.Second)
	require.NoError(t, s.Trigger(0, pads.Loop))
	clock.Advance(500 * time.Millisecond)
	require.NoError(t, s.Trigger(0, pads.Loop))
	assert.True(t, d.LoopActive())

	clock.Advance(700 * time.Millisecond)
	assert.InDelta(t, 1.0, d.Position(), 1e-3)

	require.NoError(t, s.Trigger(0, pads.Loop))
	assert.False(t, d.LoopActive())

	require.NoError(t, s.Trigger(0, pads.Sync))
	assert.Equal(t, 0, s.Engine().Master())
	assert.True(t, d.State().Master)
}

func TestPadPresets(t *testing.T) {
	s, _ := newSession(t)

	p, err := s.LoadPads(1)
	require.NoError(t, err)
	assert.Equal(t, "deck2", p.Name)
	assert.Empty(t, p.Actions)

	preset := pads.Preset{Name: "drops", Actions: []pads.Action{pads.Cue, pads.Loop}}
	require.NoError(t, s.SavePads(1, preset))

	p, err = s.LoadPads(1)
	require.NoError(t, err)
	assert.Equal(t, preset, *p)
}

func TestLoadFeedsEngine(t *testing.T) {
	s, _ := newSession(t)
	loadTone(t, s, 1)
	s.Engine().SetCrossfader(1)
	s.Deck(1).Play()

	require.Eventually(t, func() bool {
		return s.Engine().Next() != 0
	}, 2*time.Second, time.Millisecond)

	st := s.State()
	assert.True(t, st.Decks[1].Loaded)
	assert.False(t, st.Decks[0].Loaded)
}

func TestStateReportsDeckStatus(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.SampleRate = 8000
	s := New(cfg, nil, status.NewTracker(1))
	t.Cleanup(s.Close)

	assert.Nil(t, s.State().Status[0])
	loadTone(t, s, 0)

	st := s.State()
	require.NotNil(t, st.Status[0])
	assert.Equal(t, "deck1", st.Status[0].Deck)
	assert.Equal(t, status.StageLoaded, st.Status[0].Stage)
	assert.Nil(t, st.Status[1])
	// Nothing reads Events, so everything after the first event overflows.
	assert.Positive(t, st.DroppedEvents)
}

func TestLoadClearsEffectTails(t *testing.T) {
	s, _ := newSession(t)
	loadTone(t, s, 0)
	require.NoError(t, s.SetFxSlot(0, 0, "echo", fx.Params{BPM: 120, Division: fx.Quarter, Feedback: 0.6}, true, false, 1))
	s.Engine().SetFxEnabled(0, true)
	s.Engine().SetCrossfader(-1)
	s.Deck(0).Play()

	require.Eventually(t, func() bool {
		return s.Engine().Next() != 0
	}, 2*time.Second, time.Millisecond)
	for range 4000 {
		s.Engine().Next()
	}

	loadTone(t, s, 0)
	// Two seconds covers several echo repeats.
	out := make([][2]float64, 2*8000)
	n, ok := s.Engine().Stream(out)
	require.True(t, ok)
	for i, f := range out[:n] {
		require.Equal(t, [2]float64{}, f, "frame %d", i)
	}
}

func TestCloseEndsEngineStream(t *testing.T) {
	s, _ := newSession(t)
	s.Close()

	buf := make([][2]float64, 16)
	n, ok := s.Engine().Stream(buf)
	assert.False(t, ok)
	assert.Zero(t, n)
	assert.NoError(t, s.Engine().Err())
}
