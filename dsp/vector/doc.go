// Package vector provides the element-wise numeric kernels used on every
// audio hot path: scale, clip, add, multiply, multiply-accumulate and
// denormal flushing.
//
// Each operation processes len(dst) samples. Source slices shorter than dst
// cause a panic; dst may alias any source. Work is split into chunks of the
// active backend's lane width followed by a scalar remainder loop. The chunked
// backend is used only when every slice satisfies the alignment precondition
// (see [IsAligned]); unaligned input is processed by the scalar loop, so
// results are identical either way.
//
// Backends are selected once per process from the detected CPU features
// (github.com/cwbudde/algo-vecmath/cpu). Build with the purego tag to force
// the pure Go backend.
//
// None of the functions allocate.
package vector
