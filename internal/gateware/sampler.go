package gateware

type samplerState int

const (
	samplerReport samplerState = iota
	samplerWaitRisingEdge
	samplerWaitFallingEdge
)

// Sampler captures one bit per channel on each edge of the generated
// bit-clock and packs the pair into a channel-interleaved word.
//
// A full cycle runs REPORT → WAIT_RISING_EDGE → WAIT_FALLING_EDGE and back.
// The rising strobe latches the synchronized pins into the low half of the
// working register, the falling strobe latches them into the high half and
// advances the cycle counter, and the following REPORT tick permutes both
// halves into Word. The detour through REPORT means Word is always a fully
// formed value from the previous bit-clock period by the time the streamer
// is strobed, so there is exactly one cycle of latency between capture and
// emission and the first emitted word is all zeroes.
type Sampler struct {
	channels int
	mask     uint8 // low n bits
	wordMask uint8 // low 2n bits

	state       samplerState
	current     uint8 // bits [0,n) rising half, [n,2n) falling half
	counter     uint8
	counterPrev uint8

	// Word is the interleaved output register read by the streamer.
	Word uint8
}

// NewSampler creates a sampler for n channels, 1 <= n <= 3.
func NewSampler(n int) *Sampler {
	return &Sampler{
		channels: n,
		mask:     uint8(1)<<n - 1,
		wordMask: uint8(1)<<(2*n) - 1,
	}
}

// Tick advances the sampling state machine by one reference cycle. stbR and
// stbF are the clock generator strobes for this cycle and pins the
// synchronized input word.
func (s *Sampler) Tick(stbR, stbF bool, pins uint8) {
	switch s.state {
	case samplerReport:
		s.Word = s.interleave(s.current)
		s.counterPrev = s.counter
		s.state = samplerWaitRisingEdge

	case samplerWaitRisingEdge:
		if stbR {
			s.current = s.current&^s.mask | pins&s.mask
			s.state = samplerWaitFallingEdge
		}

	case samplerWaitFallingEdge:
		if stbF {
			s.current = s.current&s.mask | pins&s.mask<<s.channels
			s.counter = (s.counter + 1) & s.wordMask
			s.state = samplerReport
		}
	}
}

// Progress returns the cycle counter and the value it held at the most
// recent report, for diagnostics.
func (s *Sampler) Progress() (counter, prev uint8) {
	return s.counter, s.counterPrev
}

// interleave reorders the half registers into the output permutation: for
// channel i, bit 2i carries the rising-edge sample and bit 2i+1 the
// falling-edge sample, regardless of physical pin order.
func (s *Sampler) interleave(current uint8) uint8 {
	var w uint8
	for i := 0; i < s.channels; i++ {
		w |= current >> i & 1 << (2 * i)
		w |= current >> (s.channels + i) & 1 << (2*i + 1)
	}
	return w
}
