//go:build amd64 && !purego

package accel

import (
	"github.com/cwbudde/algo-vecmath/cpu"

	"github.com/cwbudde/algo-spatial/dsp/vector/internal/registry"
)

func init() {
	registry.Global.Register(registry.OpEntry{
		Name:      "accel",
		SIMDLevel: cpu.SIMDAVX2,
		Priority:  20,
		Lanes:     Lanes,
		Scale:     Scale,
		Add:       Add,
		Multiply:  Multiply,
		AddScaled: AddScaled,
		Clip:      Clip,
	})
}
