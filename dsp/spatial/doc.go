// Package spatial renders a mono source binaurally through head-related
// transfer functions.
//
// Coordinates are right-handed with x to the right, y to the front and z up.
// Azimuth is 0 straight ahead and +90 to the right; elevation is +90
// straight up. Angles in the public API are in degrees except where a
// function takes radians explicitly.
//
// A [Database] holds left/right impulse responses on a fixed
// azimuth x elevation x distance grid, either synthesized by a
// [SphericalHeadModel] or loaded from YAML with [LoadDatabase]. A [Renderer]
// resolves the source direction relative to the tracked head orientation on
// every buffer, convolves with the resolved responses and applies onset
// delay, distance attenuation and air absorption.
package spatial
