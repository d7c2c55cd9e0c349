package gateware

// Synchronizer re-times the asynchronous input pins into the sampling clock
// domain through a two-stage register chain, the standard double-flop
// arrangement. The value returned by Tick is the output register as it stood
// before this tick, so a raw value presented at tick N is visible to
// consumers at tick N+2 and never combinationally earlier. Single-cycle
// glitches on the input are absorbed; sustained noise passes through.
type Synchronizer struct {
	stages [2]uint8
}

// Tick shifts the chain by one cycle and returns the synchronized pin word.
func (s *Synchronizer) Tick(raw uint8) uint8 {
	out := s.stages[1]
	s.stages[1] = s.stages[0]
	s.stages[0] = raw
	return out
}
