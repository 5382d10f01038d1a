package stage

import (
	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/vector"
)

// Guard flushes every sample with magnitude below core.DenormalThreshold
// to zero and returns the number of samples changed.
func Guard(x []float64) int {
	return vector.FlushDenormals(x, core.DenormalThreshold)
}
