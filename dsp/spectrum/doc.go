// Package spectrum provides helpers on complex spectrum bins produced by an
// external FFT backend.
package spectrum
