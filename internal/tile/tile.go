// Package tile implements the virtual-matrix splitter (C5, spec.md §4.5):
// given a frame sized for the full tiled matrix, produce the row-major list
// of per-destination sub-frames.
package tile

import "github.com/ledcast/caster/internal/frame"

// Split resizes is the caller's job (the pipeline already produced a frame
// sized tileX*scaleW x tileY*scaleH); Split only slices it into tileX*tileY
// row-major sub-frames of scaleW x scaleH each. For (1,1) it returns the
// frame unchanged as the sole element — a pass-through, per spec.md §4.5.
func Split(f frame.Frame, tileX, tileY, scaleW, scaleH int) []frame.Frame {
	if tileX <= 1 && tileY <= 1 {
		return []frame.Frame{f}
	}

	out := make([]frame.Frame, 0, tileX*tileY)
	for ty := 0; ty < tileY; ty++ {
		for tx := 0; tx < tileX; tx++ {
			out = append(out, f.Sub(tx*scaleW, ty*scaleH, scaleW, scaleH))
		}
	}
	return out
}
