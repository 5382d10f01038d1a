package conv

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/vector"
)

// BlockConvolver convolves a stream block by block with a replaceable
// kernel. It does not allocate after construction.
type BlockConvolver struct {
	maxKernel int
	maxBlock  int

	kernel    []float64
	kernelLen int
	dirty     bool

	// history holds the last maxKernel-1 input samples; work is
	// history followed by the current block.
	work []float64

	fftSize   int
	plan      *algofft.Plan[complex128]
	kernelFFT []complex128
	freq      []complex128
	spec      []complex128
}

// NewBlockConvolver prepares a convolver for kernels up to maxKernel taps
// and blocks up to maxBlock samples. The FFT plan is created only when
// maxKernel exceeds DirectThreshold.
func NewBlockConvolver(maxKernel, maxBlock int) (*BlockConvolver, error) {
	if maxKernel <= 0 {
		return nil, fmt.Errorf("%w: max kernel %d", ErrEmptyKernel, maxKernel)
	}
	if maxBlock <= 0 {
		return nil, fmt.Errorf("%w: max block %d", ErrEmptyInput, maxBlock)
	}

	bc := &BlockConvolver{
		maxKernel: maxKernel,
		maxBlock:  maxBlock,
		kernel:    make([]float64, maxKernel),
		kernelLen: 1,
		work:      vector.MakeAligned(maxKernel-1+maxBlock, core.DefaultAlignment),
	}
	bc.kernel[0] = 1

	if maxKernel > DirectThreshold {
		bc.fftSize = nextPowerOf2(maxKernel - 1 + maxBlock)
		plan, err := algofft.NewPlan64(bc.fftSize)
		if err != nil {
			return nil, fmt.Errorf("conv: failed to create FFT plan: %w", err)
		}
		bc.plan = plan
		bc.kernelFFT = make([]complex128, bc.fftSize)
		bc.freq = make([]complex128, bc.fftSize)
		bc.spec = make([]complex128, bc.fftSize)
		bc.dirty = true
	}

	return bc, nil
}

// SetKernel copies h as the kernel for subsequent blocks. Input history is
// kept.
func (bc *BlockConvolver) SetKernel(h []float64) error {
	if len(h) == 0 {
		return ErrEmptyKernel
	}
	if len(h) > bc.maxKernel {
		return fmt.Errorf("%w: %d > %d", ErrKernelTooLong, len(h), bc.maxKernel)
	}

	copy(bc.kernel, h)
	clear(bc.kernel[len(h):])
	bc.kernelLen = len(h)
	bc.dirty = true
	return nil
}

// Kernel returns the active kernel. The slice is owned by the convolver.
func (bc *BlockConvolver) Kernel() []float64 {
	return bc.kernel[:bc.kernelLen]
}

// Process convolves src into dst. Both must have the same length, at most
// the configured maximum block.
func (bc *BlockConvolver) Process(dst, src []float64) error {
	n := len(src)
	if len(dst) != n {
		return fmt.Errorf("%w: dst %d, src %d", ErrLengthMismatch, len(dst), n)
	}
	if n > bc.maxBlock {
		return fmt.Errorf("%w: %d > %d", ErrBlockTooLong, n, bc.maxBlock)
	}
	if n == 0 {
		return nil
	}

	h := bc.maxKernel - 1
	copy(bc.work[h:h+n], src)

	var err error
	if bc.kernelLen <= DirectThreshold || bc.plan == nil {
		bc.direct(dst, n)
	} else {
		err = bc.overlapSave(dst, n)
	}

	core.ShiftIn(bc.work[:h], bc.work[h:h+n])

	return err
}

func (bc *BlockConvolver) direct(dst []float64, n int) {
	h := bc.maxKernel - 1
	clear(dst)
	for k := 0; k < bc.kernelLen; k++ {
		c := bc.kernel[k]
		if c == 0 {
			continue
		}
		vector.AddScaled(dst, bc.work[h-k:h-k+n], c)
	}
}

func (bc *BlockConvolver) overlapSave(dst []float64, n int) error {
	if bc.dirty {
		for i := range bc.freq {
			bc.freq[i] = 0
		}
		for i, v := range bc.kernel[:bc.kernelLen] {
			bc.freq[i] = complex(v, 0)
		}
		if err := bc.plan.Forward(bc.kernelFFT, bc.freq); err != nil {
			return fmt.Errorf("conv: kernel FFT failed: %w", err)
		}
		bc.dirty = false
	}

	h := bc.maxKernel - 1
	for i := range bc.freq {
		bc.freq[i] = 0
	}
	for i, v := range bc.work[:h+n] {
		bc.freq[i] = complex(v, 0)
	}

	if err := bc.plan.Forward(bc.spec, bc.freq); err != nil {
		return fmt.Errorf("conv: forward FFT failed: %w", err)
	}
	for i := range bc.spec {
		bc.spec[i] *= bc.kernelFFT[i]
	}
	if err := bc.plan.Inverse(bc.freq, bc.spec); err != nil {
		return fmt.Errorf("conv: inverse FFT failed: %w", err)
	}

	// Indices before h wrap around the circular buffer and are discarded.
	for i := range n {
		dst[i] = real(bc.freq[h+i])
	}
	return nil
}

// Reset clears the input history.
func (bc *BlockConvolver) Reset() {
	clear(bc.work)
}

// MaxKernel returns the longest accepted kernel.
func (bc *BlockConvolver) MaxKernel() int { return bc.maxKernel }

// MaxBlock returns the longest accepted block.
func (bc *BlockConvolver) MaxBlock() int { return bc.maxBlock }

// FFTSize returns the FFT length, or 0 if the convolver is direct-only.
func (bc *BlockConvolver) FFTSize() int { return bc.fftSize }
