//go:build amd64 && !purego

package unrolled

import (
	"github.com/cwbudde/algo-vecmath/cpu"

	"github.com/cwbudde/algo-spatial/dsp/filter/biquad/internal/arch/registry"
)

func init() {
	registry.Global.Register(registry.OpEntry{
		Name:         "unrolled",
		SIMDLevel:    cpu.SIMDAVX2,
		Priority:     20,
		ProcessBlock: ProcessBlock,
	})
}
