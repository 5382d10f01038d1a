//go:build !(amd64 || arm64) || purego

package vector

import (
	_ "github.com/cwbudde/algo-spatial/dsp/vector/internal/generic"
)
