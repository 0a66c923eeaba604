//go:build sdl2

package backend

import "github.com/valerio/go-dmg/dmg/audio"

const (
	sampleRate      = 44100
	samplesPerFrame = sampleRate / 60
)

var dutyTables = [4][8]int16{
	{0, 1, 0, 0, 0, 0, 0, 0},
	{0, 1, 1, 0, 0, 0, 0, 0},
	{0, 1, 1, 1, 1, 0, 0, 0},
	{1, 0, 0, 1, 1, 1, 1, 1},
}

// synth reconstructs a rough waveform from the APU's channel snapshots. It
// keeps per-channel phase across frames so pitch stays continuous even
// though the views only update once per frame.
type synth struct {
	phase1, phase2 float64
	phase3         float64
	phase4         float64
	lfsr           uint16
}

func (s *synth) renderFrame(snap audio.Snapshot) []int16 {
	out := make([]int16, samplesPerFrame*2)
	for i := 0; i < samplesPerFrame; i++ {
		var left, right int32

		l, r := squareSample(&s.phase1, snap.Ch1)
		left += l
		right += r
		l, r = squareSample(&s.phase2, snap.Ch2)
		left += l
		right += r
		l, r = s.waveSample(snap.Ch3)
		left += l
		right += r
		l, r = s.noiseSample(snap.Ch4)
		left += l
		right += r

		out[i*2] = clamp16(left * 256)
		out[i*2+1] = clamp16(right * 256)
	}
	return out
}

func squareSample(phase *float64, view audio.SquareView) (int32, int32) {
	if !view.PlayingLeft && !view.PlayingRight {
		return 0, 0
	}
	*phase += view.Frequency / sampleRate
	for *phase >= 1 {
		*phase -= 1
	}
	step := int(*phase * 8)
	value := dutyTables[view.WaveDuty&3][step&7] * int16(view.Volume)
	return pan(int32(value), view.PlayingLeft, view.PlayingRight)
}

func (s *synth) waveSample(view audio.WaveView) (int32, int32) {
	if (!view.PlayingLeft && !view.PlayingRight) || view.Level == audio.OutputMute {
		return 0, 0
	}
	s.phase3 += view.Frequency * 32 / sampleRate
	for s.phase3 >= 32 {
		s.phase3 -= 32
	}
	idx := int(s.phase3)
	b := view.WavePattern[idx/2]
	var nibble int16
	if idx%2 == 0 {
		nibble = int16(b >> 4)
	} else {
		nibble = int16(b & 0x0F)
	}
	switch view.Level {
	case audio.OutputHalf:
		nibble /= 2
	case audio.OutputQuarter:
		nibble /= 4
	}
	return pan(int32(nibble), view.PlayingLeft, view.PlayingRight)
}

func (s *synth) noiseSample(view audio.NoiseView) (int32, int32) {
	if !view.PlayingLeft && !view.PlayingRight {
		return 0, 0
	}
	if s.lfsr == 0 {
		s.lfsr = 0x7FFF
	}
	s.phase4 += view.Frequency / sampleRate
	for s.phase4 >= 1 {
		s.phase4 -= 1
		feedback := (s.lfsr & 1) ^ ((s.lfsr >> 1) & 1)
		s.lfsr = (s.lfsr >> 1) | (feedback << 14)
		if view.SevenBitLFSR {
			s.lfsr = (s.lfsr &^ (1 << 6)) | (feedback << 6)
		}
	}
	var value int16
	if s.lfsr&1 == 0 {
		value = int16(view.Volume)
	}
	return pan(int32(value), view.PlayingLeft, view.PlayingRight)
}

func pan(value int32, left, right bool) (int32, int32) {
	var l, r int32
	if left {
		l = value
	}
	if right {
		r = value
	}
	return l, r
}

func clamp16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
