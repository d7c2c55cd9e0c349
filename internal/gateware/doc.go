// Package gateware contains a cycle-accurate software model of the PDM
// capture logic: a bit-clock generator, a two-stage input synchronizer, the
// dual-edge sampling state machine, and the FIFO streamer that moves packed
// sample words into the bounded output queue.
//
// # Execution model
//
// Every component is a synchronous state machine. The Engine advances all of
// them with a single global tick, one tick per reference-clock edge, in a
// fixed dependency order:
//
//	ClockGen → Synchronizer → Sampler → Streamer
//
// Components never block and never allocate inside a tick; anything that
// looks like waiting is expressed as explicit state. The only structure
// shared with the host side is the FIFO: the engine tick goroutine is its
// sole producer and the capture transport its sole consumer.
//
// # Byte stream
//
// Each completed sampling cycle produces one byte holding the packed channel
// word (bit 2i = channel i rising-edge sample, bit 2i+1 = falling-edge
// sample). When the FIFO is full at a strobe the pending sample is dropped
// and the streamer emits the overrun sentinel 0xFF as soon as room exists.
// A legitimate all-ones word is bit-identical to the sentinel; the protocol
// keeps that ambiguity rather than adding framing.
package gateware
