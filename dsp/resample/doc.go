// Package resample converts interleaved multi-channel audio between integer
// sample rates with a polyphase Kaiser-windowed sinc filter.
//
// The tools use it to bring input files to the rate the processing chain
// runs at. A [Converter] streams: blocks of any size may be passed to
// [Converter.Process] and the result equals converting the concatenated
// input in one call. [Converter.Flush] drains the filter tail at the end
// of a stream.
//
// Default filter per quality:
//
//	quality    taps/phase   Kaiser beta   cutoff
//	Fast       16           5.0           0.88
//	Balanced   32           7.5           0.92
//	Best       64           9.0           0.96
package resample
