// Package stage implements the per-channel DSP stage that runs ahead of
// room correction and spatial rendering: a smoothed gain, a denormal guard
// and a cascaded peaking equalizer.
//
// Parameters are published as immutable snapshots. Setters may be called
// from any goroutine; the processing goroutine adopts the newest snapshot at
// the next buffer boundary and never blocks on a writer.
package stage
