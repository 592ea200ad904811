package audio

import (
	"math"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/assert"
)

// sliceStreamer plays back a fixed buffer.
type sliceStreamer struct {
	samples [][2]float64
	pos     int
}

func (s *sliceStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n = copy(samples, s.samples[s.pos:])
	s.pos += n
	return n, true
}

func (s *sliceStreamer) Err() error { return nil }

func sine(freq, rate float64, n int) *sliceStreamer {
	buf := make([][2]float64, n)
	for i := range buf {
		v := math.Sin(2 * math.Pi * freq * float64(i) / rate)
		buf[i] = [2]float64{v, v}
	}
	return &sliceStreamer{samples: buf}
}

// settledPeak filters n samples and returns the peak of the second half.
func settledPeak(t *testing.T, s beep.Streamer, n int) float64 {
	t.Helper()
	out := make([][2]float64, n)
	got, _ := s.Stream(out)
	assert.Equal(t, n, got)
	var peak float64
	for _, v := range out[n/2:] {
		assert.False(t, math.IsNaN(v[0]) || math.IsInf(v[0], 0))
		peak = math.Max(peak, math.Abs(v[0]))
	}
	return peak
}

func TestPAFilter_Band(t *testing.T) {
	const rate, n = 48000, 9600
	tests := []struct {
		name    string
		freq    float64
		minPeak float64
		maxPeak float64
	}{
		{"Voice Band", 1000, 0.7, 1.2},
		{"Hum Below Band", 50, 0, 0.1},
		{"Hiss Above Band", 12000, 0, 0.15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peak := settledPeak(t, NewPAFilter(sine(tt.freq, rate, n), rate, 300, 3400), n)
			assert.GreaterOrEqual(t, peak, tt.minPeak)
			assert.LessOrEqual(t, peak, tt.maxPeak)
		})
	}
}

func TestPAFilter_BlocksDC(t *testing.T) {
	const n = 4800
	buf := make([][2]float64, n)
	for i := range buf {
		buf[i] = [2]float64{1, 1}
	}
	peak := settledPeak(t, NewPAFilter(&sliceStreamer{samples: buf}, 48000, 300, 3400), n)
	assert.Less(t, peak, 0.01)
}

func TestBiquad_ChannelsIndependent(t *testing.T) {
	s := &sliceStreamer{samples: [][2]float64{{1, 0}, {0, 0}, {0, 0}}}
	f := NewLowPass(s, 44100, 1000, butterworthQ)

	out := make([][2]float64, 3)
	n, ok := f.Stream(out)
	assert.Equal(t, 3, n)
	assert.True(t, ok)
	for _, v := range out {
		assert.Zero(t, v[1], "silent right channel picked up signal")
	}
	assert.NotZero(t, out[0][0])
	assert.NoError(t, f.Err())
}

func TestNewChime(t *testing.T) {
	sr := beep.SampleRate(8000)
	chime := NewChime(sr)

	buf := make([][2]float64, 512)
	var total int
	var peak float64
	for {
		n, ok := chime.Stream(buf)
		for _, s := range buf[:n] {
			peak = math.Max(peak, math.Abs(s[0]))
		}
		total += n
		if !ok {
			break
		}
	}

	assert.Equal(t, sr.N(ChimeDuration()), total)
	assert.Greater(t, peak, 0.0)
	assert.LessOrEqual(t, peak, chimeAmplitude)
}
