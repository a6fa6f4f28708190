package fx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// impulseResponse feeds a unit impulse followed by silence and returns the
// indices of every non-zero output sample.
func impulseResponse(e Effect, n int) []int {
	var hits []int
	for i := 0; i < n; i++ {
		x := float32(0)
		if i == 0 {
			x = 1
		}
		if e.Apply(x) != 0 {
			hits = append(hits, i)
		}
	}
	return hits
}

func TestEchoImpulseArrivesAfterDelay(t *testing.T) {
	echo := NewEcho(48000, 1, 120, Quarter, 0)

	require.Equal(t, 6000, echo.Delay())
	assert.Equal(t, []int{0, 6000}, impulseResponse(echo, 13000))
}

func TestEchoFeedbackRepeats(t *testing.T) {
	echo := NewEcho(1000, 1, 120, Half, 0.5)
	require.Equal(t, 250, echo.Delay())

	out := make([]float32, 800)
	for i := range out {
		x := float32(0)
		if i == 0 {
			x = 1
		}
		out[i] = echo.Apply(x)
	}

	assert.Equal(t, float32(1), out[0])
	assert.Equal(t, float32(1), out[250])
	assert.Equal(t, float32(0.5), out[500])
	assert.Equal(t, float32(0.25), out[750])
	assert.Zero(t, out[251])
}

func TestEchoRetune(t *testing.T) {
	echo := NewEcho(48000, 1, 120, Quarter, 0)
	before := echo.Delay()

	echo.UpdateTempo(60)

	assert.Equal(t, 2*before, echo.Delay())
	assert.Equal(t, 60.0, echo.BPM())
	assert.Equal(t, []int{0, 2 * before}, impulseResponse(echo, 3*before))
}

func TestEchoInterleavedChannels(t *testing.T) {
	echo := NewEcho(1000, 2, 60, Quarter, 0)
	require.Equal(t, 500, echo.Delay())

	// impulse on the left channel only
	assert.Equal(t, []int{0, 500}, impulseResponse(echo, 1000))
}

func TestEchoDefaultsForBadTempo(t *testing.T) {
	echo := NewEcho(48000, 1, 0, 0, 2)
	assert.Equal(t, 6000, echo.Delay())
	assert.Equal(t, 120.0, echo.BPM())
	assert.Equal(t, Quarter, echo.Division())
}

func TestParseDivision(t *testing.T) {
	tests := []struct {
		in      string
		want    Division
		wantErr bool
	}{
		{in: "1/4", want: Quarter},
		{in: "1/2", want: Half},
		{in: "1/1", want: Whole},
		{in: "1", want: Whole},
		{in: "3/4", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDivision(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDivision)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) Division {
	t.Helper()
	d, err := ParseDivision(s)
	require.NoError(t, err)
	return d
}

func TestLowPass(t *testing.T) {
	lp := NewLowPass(0.5, 1)

	assert.Equal(t, float32(0.5), lp.Apply(1))
	assert.Equal(t, float32(0.75), lp.Apply(1))

	lp.Reset()
	assert.Equal(t, float32(0.5), lp.Apply(1))
}

func TestLowPassClampsCutoff(t *testing.T) {
	assert.InDelta(t, 0.99, NewLowPass(5, 1).Apply(1), 1e-6)
	assert.InDelta(t, 0.01, NewLowPass(-1, 1).Apply(1), 1e-6)
}

func TestLowPassKeepsChannelsApart(t *testing.T) {
	lp := NewLowPass(0.5, 2)

	assert.Equal(t, float32(0.5), lp.Apply(1))
	assert.Equal(t, float32(0), lp.Apply(0))
	assert.Equal(t, float32(0.75), lp.Apply(1))
	assert.Equal(t, float32(0), lp.Apply(0))
}

func TestReverb(t *testing.T) {
	rv := NewReverb(0.5, 1)

	assert.Equal(t, float32(1), rv.Apply(1))
	assert.Equal(t, float32(0.5), rv.Apply(0))
	assert.Equal(t, float32(0.25), rv.Apply(0))

	rv.Reset()
	assert.Equal(t, float32(0), rv.Apply(0))
}

func TestReverbFeedbackIsBounded(t *testing.T) {
	rv := NewReverb(3, 1)
	rv.Apply(1)
	assert.InDelta(t, MaxReverbFeedback, rv.Apply(0), 1e-6)
}

func TestNewByName(t *testing.T) {
	p := Params{SampleRate: 44100, Channels: 2, BPM: 128, Cutoff: 0.3, Division: Half, Feedback: 0.4}
	for _, name := range []string{"lowpass", "echo", "reverb", "ECHO"} {
		e, err := New(name, p)
		require.NoError(t, err, name)
		assert.NotEmpty(t, Name(e))
	}

	_, err := New("flanger", p)
	assert.ErrorIs(t, err, ErrUnknownEffect)
}

func TestNewSlotClampsDryWet(t *testing.T) {
	assert.Equal(t, 1.0, NewSlot(nil, 1.7, true, false).DryWet)
	assert.Equal(t, 0.0, NewSlot(nil, -0.2, true, false).DryWet)
	assert.Equal(t, 0.3, NewSlot(nil, 0.3, true, false).DryWet)
}

func TestChainDryIgnoresEffects(t *testing.T) {
	chains := []Chain{
		{NewSlot(NewReverb(0.9, 1), 0, true, false)},
		{NewSlot(NewEcho(1000, 1, 120, Quarter, 0.7), 0, true, false), NewSlot(NewLowPass(0.1, 1), 0, false, true)},
	}
	input := []float32{0.3, -0.2, 0.9, 0, 0.4}
	for _, c := range chains {
		for _, x := range input {
			assert.Equal(t, x, c.Process(x))
		}
	}
}

func TestChainSkipsInactiveSlots(t *testing.T) {
	c := Chain{NewSlot(NewReverb(0.5, 1), 1, false, false), {}}
	assert.Equal(t, float32(0.7), c.Process(0.7))
	assert.Equal(t, float32(0), c.Process(0))
}

func TestChainMomentaryActsLikeEnabled(t *testing.T) {
	c := Chain{NewSlot(NewLowPass(0.5, 1), 1, false, true)}
	assert.Equal(t, float32(0.5), c.Process(1))
}

// clipper is a nonlinear effect, so its position in a chain is audible.
type clipper struct{}

func (clipper) Apply(x float32) float32 {
	if x > 0.5 {
		return 0.5
	}
	return x
}

func (clipper) Reset() {}

func TestChainOrderMatters(t *testing.T) {
	ab := Chain{NewSlot(clipper{}, 1, true, false), NewSlot(NewReverb(0.5, 1), 1, true, false)}
	ba := Chain{NewSlot(NewReverb(0.5, 1), 1, true, false), NewSlot(clipper{}, 1, true, false)}

	var outAB, outBA []float32
	for _, x := range []float32{1, 1} {
		outAB = append(outAB, ab.Process(x))
		outBA = append(outBA, ba.Process(x))
	}
	assert.Equal(t, []float32{0.5, 0.75}, outAB)
	assert.Equal(t, []float32{0.5, 0.5}, outBA)
	assert.Empty(t, Name(clipper{}))
}

func TestChainUpdateTempoReachesEcho(t *testing.T) {
	echo := NewEcho(48000, 1, 120, Quarter, 0)
	c := Chain{NewSlot(NewLowPass(0.5, 1), 1, true, false), NewSlot(echo, 0.5, true, false)}

	c.UpdateTempo(60)

	assert.Equal(t, 12000, echo.Delay())
}

func TestChainWithCopies(t *testing.T) {
	orig := Chain{NewSlot(NewLowPass(0.5, 1), 1, true, false)}
	next := orig.With(2, NewSlot(NewReverb(0.2, 1), 0.5, true, false))

	assert.Len(t, orig, 1)
	require.Len(t, next, 3)
	assert.Equal(t, orig[0], next[0])
	assert.False(t, next[1].Active())
	assert.Equal(t, "reverb", Name(next[2].Effect))
}
