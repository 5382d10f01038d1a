// Package room models a shoebox room with the image-source method and
// derives per-band correction filters from the modeled or a measured
// response.
//
// Room coordinates put the origin in the back-left floor corner: x runs
// across the width from the left wall, y along the length towards the front
// wall and z up from the floor. Listener and source positions share this
// frame.
//
// Correction updates pass a quality gate before they are applied: probe
// tones are run through a fresh copy of the candidate filter followed by
// the output clip stage, and the update is rejected when the measured
// THD+N exceeds the threshold.
package room
