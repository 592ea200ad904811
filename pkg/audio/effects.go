package audio

import (
	"math"
	"time"

	"github.com/gopxl/beep/v2"
)

// butterworthQ gives a flat passband.
const butterworthQ = 0.707

// BiquadFilter is a second-order IIR stage applied to both channels.
// Coefficients are stored normalized by a0.
type BiquadFilter struct {
	streamer beep.Streamer

	b0, b1, b2 float64
	a1, a2     float64

	x1, x2 [2]float64
	y1, y2 [2]float64
}

// NewLowPass creates a LowPass Biquad filter.
func NewLowPass(streamer beep.Streamer, sampleRate, cutoff, q float64) *BiquadFilter {
	cs, alpha := biquadTerms(sampleRate, cutoff, q)
	return newBiquad(streamer, (1-cs)/2, 1-cs, (1-cs)/2, 1+alpha, -2*cs, 1-alpha)
}

// NewHighPass creates a HighPass Biquad filter.
func NewHighPass(streamer beep.Streamer, sampleRate, cutoff, q float64) *BiquadFilter {
	cs, alpha := biquadTerms(sampleRate, cutoff, q)
	return newBiquad(streamer, (1+cs)/2, -(1 + cs), (1+cs)/2, 1+alpha, -2*cs, 1-alpha)
}

func biquadTerms(sampleRate, cutoff, q float64) (cs, alpha float64) {
	omega := 2 * math.Pi * cutoff / sampleRate
	return math.Cos(omega), math.Sin(omega) / (2 * q)
}

func newBiquad(s beep.Streamer, b0, b1, b2, a0, a1, a2 float64) *BiquadFilter {
	return &BiquadFilter{
		streamer: s,
		b0:       b0 / a0,
		b1:       b1 / a0,
		b2:       b2 / a0,
		a1:       a1 / a0,
		a2:       a2 / a0,
	}
}

func (f *BiquadFilter) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = f.streamer.Stream(samples)
	for i := range samples[:n] {
		for ch := range 2 {
			x := samples[i][ch]
			y := f.b0*x + f.b1*f.x1[ch] + f.b2*f.x2[ch] - f.a1*f.y1[ch] - f.a2*f.y2[ch]
			f.x2[ch], f.x1[ch] = f.x1[ch], x
			f.y2[ch], f.y1[ch] = f.y1[ch], y
			samples[i][ch] = y
		}
	}
	return n, ok
}

func (f *BiquadFilter) Err() error {
	return f.streamer.Err()
}

// NewPAFilter band-limits a stream to the range of a station loudspeaker horn:
// a high-pass at lowCutoff followed by a low-pass at highCutoff.
func NewPAFilter(streamer beep.Streamer, sampleRate, lowCutoff, highCutoff float64) beep.Streamer {
	hp := NewHighPass(streamer, sampleRate, lowCutoff, butterworthQ)
	return NewLowPass(hp, sampleRate, highCutoff, butterworthQ)
}

// chimeNotes is the descending three-note attention signal (E5, C5, G4).
var chimeNotes = []float64{659.25, 523.25, 392.00}

const (
	chimeNoteLength = 350 * time.Millisecond
	chimeGap        = 120 * time.Millisecond
	chimeAmplitude  = 0.35
)

// NewChime returns the attention chime played before an announcement.
// Each note is a sine with an exponential decay, followed by a short gap.
func NewChime(sr beep.SampleRate) beep.Streamer {
	parts := make([]beep.Streamer, 0, 2*len(chimeNotes))
	for _, freq := range chimeNotes {
		parts = append(parts, chimeTone(sr, freq), beep.Silence(sr.N(chimeGap)))
	}
	return beep.Seq(parts...)
}

// ChimeDuration is the total length of NewChime.
func ChimeDuration() time.Duration {
	return time.Duration(len(chimeNotes)) * (chimeNoteLength + chimeGap)
}

func chimeTone(sr beep.SampleRate, freq float64) beep.Streamer {
	total := sr.N(chimeNoteLength)
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		if pos >= total {
			return 0, false
		}
		for i := range samples {
			if pos >= total {
				break
			}
			t := float64(pos) / float64(sr)
			v := chimeAmplitude * math.Exp(-4*t) * math.Sin(2*math.Pi*freq*t)
			samples[i] = [2]float64{v, v}
			pos++
			n++
		}
		return n, true
	})
}
