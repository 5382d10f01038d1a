//go:build arm64 && !purego

package unrolled

import (
	"github.com/cwbudde/algo-vecmath/cpu"

	"github.com/cwbudde/algo-spatial/dsp/filter/biquad/internal/arch/registry"
)

func init() {
	registry.Global.Register(registry.OpEntry{
		Name:         "unrolled",
		SIMDLevel:    cpu.SIMDNEON,
		Priority:     15,
		ProcessBlock: ProcessBlock,
	})
}
