// Package buffer provides memory-aligned, multi-channel sample buffers and
// a bounded pool that hands them out without allocating.
//
// A Pool allocates all of its buffers at construction. Acquire and Release
// are O(1) and never block on anything but a short mutex around the free
// list; when every buffer is borrowed Acquire fails with ErrExhausted instead
// of growing. The pipeline treats that as a recoverable per-buffer failure.
//
// Buffers default to planar layout: each channel is a contiguous plane whose
// first sample is aligned, so every plane can be handed directly to the
// vector kernels.
package buffer
