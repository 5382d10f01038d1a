// Package thd measures total harmonic distortion plus noise.
//
// Two estimators are provided. [SineFit] fits the known probe frequency in
// the time domain and reports everything else as THD+N; it resolves the
// very low distortion floors used by the quality gates. [Calculator]
// analyses a windowed FFT spectrum and separates individual harmonics from
// broadband noise.
package thd
