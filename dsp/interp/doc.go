// Package interp provides the fractional-sample interpolators used by the
// delay lines that place HRTF onset delays.
//
//   - [Linear2]:  2-point linear interpolation
//   - [Hermite4]: 4-point cubic Hermite (default)
package interp
