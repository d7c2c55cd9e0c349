package gateware

import "sync/atomic"

// OverrunSentinel is written to the queue in place of data when a sample
// arrives while the queue is full. It shares the alphabet with data bytes:
// an all-ones channel word is indistinguishable from it on the wire.
const OverrunSentinel = 0xFF

type streamerState int

const (
	streamerIdle streamerState = iota
	streamerReportOverrun
	streamerWait
)

// Streamer gates sample words into the FIFO, at most one write per strobe.
//
// On a strobe with room available it writes the data word and takes a
// one-cycle cooldown. With no room it drops the word and moves to the
// overrun-report state, where it writes OverrunSentinel as soon as room
// exists. An overrun is therefore reported at most one queue-slot later
// than it was detected and is never silently absorbed; the sample that
// triggered it is permanently lost.
type Streamer struct {
	width int
	fifo  *FIFO
	state streamerState

	overruns atomic.Uint64
}

// NewStreamer creates a streamer for words of the given bit width,
// 1 <= width <= 7, writing into fifo.
func NewStreamer(width int, fifo *FIFO) *Streamer {
	return &Streamer{width: width, fifo: fifo}
}

// Tick advances the streamer by one reference cycle. strobe is the falling
// edge strobe of the clock generator and data the sampler's output word.
func (s *Streamer) Tick(strobe bool, data uint8) {
	switch s.state {
	case streamerIdle:
		if strobe {
			if s.fifo.WriteReady() {
				s.fifo.Write(data)
				s.state = streamerWait
			} else {
				s.overruns.Add(1)
				s.state = streamerReportOverrun
			}
		}

	case streamerReportOverrun:
		if s.fifo.WriteReady() {
			s.fifo.Write(OverrunSentinel)
			s.state = streamerIdle
		}

	case streamerWait:
		s.state = streamerIdle
	}
}

// Overruns returns the number of samples dropped so far.
func (s *Streamer) Overruns() uint64 {
	return s.overruns.Load()
}
