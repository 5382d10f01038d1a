// Package biquad provides the second-order IIR runtime used by the
// equalizer, the room correction filter and the air absorption shelf.
//
// A [Section] runs Direct Form II Transposed on one channel. Block
// processing dispatches to the fastest registered kernel for the CPU and
// flushes denormal delay states after every block. A [Chain] cascades
// sections in index order; individual sections can be bypassed without
// losing their state, and coefficients can be swapped between blocks while
// the delay lines carry over.
//
// Coefficient design lives in dsp/filter/design.
package biquad
