package gateware

import (
	"context"
	"errors"
	"io"
	"testing"
)

// scriptSource returns scripted pin words by tick index (1-based) and zero
// everywhere else.
type scriptSource struct {
	tick  uint64
	words map[uint64]uint8
}

func (s *scriptSource) Sample() uint8 {
	s.tick++
	return s.words[s.tick]
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RefClockHz = 1000
	cfg.SampleRateHz = 250 // divisor 4
	cfg.FIFODepth = 64
	cfg.Throttle = false
	return cfg
}

func TestEngine_PipelineTrace(t *testing.T) {
	// Divisor 4: rising strobes at ticks 1, 5, 9, ... falling at 3, 7, 11, ...
	// The synchronizer delays raw pins by two ticks, so the capture at the
	// rising edge of tick 5 sees the raw value presented at tick 3.
	src := &scriptSource{words: map[uint64]uint8{
		3: 0b101, // rising half of the first real sample
		5: 0b010, // falling half
		7: 0b111, // rising half of the second sample
		9: 0b111, // falling half
	}}

	eng, err := New(testConfig(), src)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 16; i++ {
		eng.Tick()
	}

	// Strobe 1 (tick 3) and strobe 2 (tick 7) emit the initial all-zero
	// word; the captures land in the words of strobes 3 and 4.
	want := []byte{0x00, 0x00, 0x19, 0x3F}
	if eng.FIFO().Len() != len(want) {
		t.Fatalf("fifo holds %d bytes, want %d", eng.FIFO().Len(), len(want))
	}

	buf := make([]byte, len(want))
	if _, err := eng.FIFO().Read(context.Background(), buf); err != nil {
		t.Fatal(err)
	}
	for i, b := range buf {
		if b != want[i] {
			t.Errorf("byte %d = %#02x, want %#02x", i, b, want[i])
		}
	}
}

func TestEngine_RunUntilCycleLimit(t *testing.T) {
	cfg := testConfig()
	cfg.FIFODepth = 2048
	cfg.MaxCycles = 4000

	eng, err := New(cfg, ConstantSource(0))
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- eng.Run(context.Background()) }()

	var total int
	buf := make([]byte, 512)
	for {
		n, err := eng.FIFO().Read(context.Background(), buf)
		total += n
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}

	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	// One byte per bit-clock period: strobes at tick 3, then every 4 ticks.
	if total != 1000 {
		t.Errorf("stream length = %d bytes, want 1000", total)
	}
	if eng.Overruns() != 0 {
		t.Errorf("overruns = %d, want 0", eng.Overruns())
	}
	if eng.Cycles() != cfg.MaxCycles {
		t.Errorf("cycles = %d, want %d", eng.Cycles(), cfg.MaxCycles)
	}
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	eng, err := New(cfg, ConstantSource(0b111))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := eng.Run(ctx); err != nil {
		t.Fatalf("run after cancel: %v", err)
	}

	// FIFO must be closed so the consumer observes end of stream.
	buf := make([]byte, cfg.FIFODepth+1)
	for {
		_, err := eng.FIFO().Read(context.Background(), buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestEngine_ConfigValidation(t *testing.T) {
	cfg := testConfig()

	bad := cfg
	bad.Channels = 4
	if _, err := New(bad, ConstantSource(0)); err == nil {
		t.Error("accepted channel count above the supported maximum")
	}

	bad = cfg
	bad.Channels = 0
	if _, err := New(bad, ConstantSource(0)); err == nil {
		t.Error("accepted zero channels")
	}

	bad = cfg
	bad.FIFODepth = 0
	if _, err := New(bad, ConstantSource(0)); err == nil {
		t.Error("accepted zero queue depth")
	}

	if _, err := New(cfg, nil); err == nil {
		t.Error("accepted nil pin source")
	}
}
