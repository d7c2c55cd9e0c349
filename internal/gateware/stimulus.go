package gateware

import "math/rand/v2"

// PinSource supplies the raw data-pin word for each reference-clock cycle.
// Bit i is the level of channel i's input line. Implementations stand in
// for the physical microphone array; they are sampled before the
// synchronizer, so their output may change at any cycle.
type PinSource interface {
	Sample() uint8
}

// ConstantSource holds all pins at a fixed word.
type ConstantSource uint8

// Sample implements PinSource.
func (c ConstantSource) Sample() uint8 {
	return uint8(c)
}

// SquareSource toggles all pins between zero and a word every period
// reference cycles, useful for eyeballing the channel interleave.
type SquareSource struct {
	Word   uint8
	Period uint

	count uint
	high  bool
}

// Sample implements PinSource.
func (s *SquareSource) Sample() uint8 {
	s.count++
	if s.count >= s.Period {
		s.count = 0
		s.high = !s.high
	}
	if s.high {
		return s.Word
	}
	return 0
}

// NoiseSource drives each pin high with a fixed probability per cycle,
// approximating what a microphone under steady acoustic load produces.
type NoiseSource struct {
	channels int
	density  float64
	rng      *rand.Rand
}

// NewNoiseSource creates a noise source for n channels with the given pulse
// density in [0,1]. The same seed reproduces the same pin sequence.
func NewNoiseSource(n int, density float64, seed uint64) *NoiseSource {
	return &NoiseSource{
		channels: n,
		density:  density,
		rng:      rand.New(rand.NewPCG(seed, seed)),
	}
}

// Sample implements PinSource.
func (s *NoiseSource) Sample() uint8 {
	var w uint8
	for i := 0; i < s.channels; i++ {
		if s.rng.Float64() < s.density {
			w |= 1 << i
		}
	}
	return w
}
