package gateware

import "testing"

func TestSynchronizer_TwoCycleLatency(t *testing.T) {
	var s Synchronizer

	if got := s.Tick(0b101); got != 0 {
		t.Fatalf("tick 1: got %#03b, want 0 (no combinational passthrough)", got)
	}
	if got := s.Tick(0b011); got != 0 {
		t.Fatalf("tick 2: got %#03b, want 0", got)
	}
	if got := s.Tick(0); got != 0b101 {
		t.Fatalf("tick 3: got %#03b, want 0b101 from tick 1", got)
	}
	if got := s.Tick(0); got != 0b011 {
		t.Fatalf("tick 4: got %#03b, want 0b011 from tick 2", got)
	}
}

func TestSynchronizer_AbsorbsSingleCycleGlitch(t *testing.T) {
	var s Synchronizer

	// A one-cycle pulse still comes out, two cycles later and exactly one
	// cycle wide; the chain delays, it does not filter.
	seq := []uint8{0, 1, 0, 0, 0}
	want := []uint8{0, 0, 0, 1, 0}
	for i, raw := range seq {
		if got := s.Tick(raw); got != want[i] {
			t.Fatalf("tick %d: got %d, want %d", i+1, got, want[i])
		}
	}
}
