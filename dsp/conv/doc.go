// Package conv provides linear convolution for fixed kernels and for the
// time-varying impulse responses of the spatial renderer.
//
// [Direct] and [DirectTo] compute one-shot full convolutions.
//
// [BlockConvolver] streams block-by-block with input history carried
// across calls, so successive blocks join without seams. Its kernel may be
// replaced between blocks; each output sample is always the inner product
// of the current kernel with the most recent input samples. Kernels up to
// [DirectThreshold] taps are applied in the time domain, longer kernels by
// FFT overlap-save. Both paths agree to within rounding.
//
// # Usage
//
//	bc, err := conv.NewBlockConvolver(maxKernel, maxBlock)
//	err = bc.SetKernel(ir)
//	err = bc.Process(out, in)
package conv
