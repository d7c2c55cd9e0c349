package gateware

import "math"

// ClockGen divides the reference clock down to the PDM bit-clock and marks
// both edges of the generated signal with one-tick strobes.
//
// After each Tick the outputs describe the current reference cycle:
// Clk is the level of the generated clock, StbR is true on the tick where
// Clk rises and StbF on the tick where it falls. The strobes are mutually
// exclusive and each fires exactly once per generated period.
type ClockGen struct {
	div   uint // reference cycles per generated period, >= 2
	fall  uint // cycle index of the falling edge
	count uint

	Clk  bool
	StbR bool
	StbF bool
}

// NewClockGen creates a clock generator for the given divisor. The divisor
// comes from DeriveDivisor and is assumed valid; it is not checked here.
func NewClockGen(div uint) *ClockGen {
	return &ClockGen{
		div:  div,
		fall: div / 2,
	}
}

// Divisor returns the configured reference-cycles-per-period ratio.
func (c *ClockGen) Divisor() uint {
	return c.div
}

// Tick advances the generator by one reference cycle.
func (c *ClockGen) Tick() {
	c.StbR = false
	c.StbF = false

	switch c.count {
	case 0:
		c.Clk = true
		c.StbR = true
	case c.fall:
		c.Clk = false
		c.StbF = true
	}

	c.count++
	if c.count == c.div {
		c.count = 0
	}
}

// DeriveDivisor computes the clock divisor for a target bit-clock rate from
// the reference clock rate. The generated clock runs at refHz/divisor, as
// close to targetHz as an integer divisor allows, never faster than half the
// reference clock.
func DeriveDivisor(refHz, targetHz float64) uint {
	div := uint(math.Round(refHz / targetHz))
	if div < 2 {
		div = 2
	}
	return div
}
