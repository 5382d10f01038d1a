package biquad

import (
	_ "github.com/cwbudde/algo-spatial/dsp/filter/biquad/internal/arch/generic"  // register generic kernel
	_ "github.com/cwbudde/algo-spatial/dsp/filter/biquad/internal/arch/unrolled" // register unrolled kernel where available
)
