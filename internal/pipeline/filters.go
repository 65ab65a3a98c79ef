package pipeline

import "github.com/ledcast/caster/internal/frame"

func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func clampInt(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// applyGamma runs every channel through the precomputed LUT in place.
func (p *Pipeline) applyGamma(f frame.Frame) {
	for i, v := range f.Pixels {
		f.Pixels[i] = p.gammaLUT[v]
	}
}

// applyAutoLevel stretches the histogram so the AutoPercent-th and
// (100-AutoPercent)-th percentile values map to 0 and 255 (spec.md §4.4's
// "histogram clip" auto brightness/contrast).
func (p *Pipeline) applyAutoLevel(f frame.Frame) {
	px := f.Pixels
	if len(px) == 0 {
		return
	}

	var hist [256]int
	for _, v := range px {
		hist[v]++
	}

	percent := p.cfg.AutoPercent
	if percent <= 0 {
		percent = 1.0
	}
	clipCount := int(float64(len(px)) * percent / 100.0)

	lo := percentileBound(hist[:], clipCount, false)
	hi := percentileBound(hist[:], clipCount, true)
	if hi <= lo {
		return
	}

	scale := 255.0 / float64(hi-lo)
	for i, v := range px {
		px[i] = clampByte((float64(int(v)-lo) * scale))
	}
}

func percentileBound(hist []int, clipCount int, fromTop bool) int {
	count := 0
	if !fromTop {
		for v := 0; v < len(hist); v++ {
			count += hist[v]
			if count > clipCount {
				return v
			}
		}
		return 0
	}
	for v := len(hist) - 1; v >= 0; v-- {
		count += hist[v]
		if count > clipCount {
			return v
		}
	}
	return 255
}

// applySaturation blends each pixel with its grayscale value; cfg.Saturation
// in 0..100 where 100 leaves the pixel untouched and 0 fully desaturates in
// the opposite direction of "amount", per spec.md's HSV-blend-with-grayscale
// description collapsed to an RGB blend (equivalent for a saturation scale).
func (p *Pipeline) applySaturation(f frame.Frame) {
	amount := float64(p.cfg.Saturation) / 100.0
	px := f.Pixels
	for i := 0; i+2 < len(px); i += 3 {
		r, g, b := float64(px[i]), float64(px[i+1]), float64(px[i+2])
		gray := 0.299*r + 0.587*g + 0.114*b
		px[i] = clampByte(gray + (r-gray)*amount)
		px[i+1] = clampByte(gray + (g-gray)*amount)
		px[i+2] = clampByte(gray + (b-gray)*amount)
	}
}

// applyBrightness blends toward black (negative-style scale folded into the
// same 0..100 "amount toward full brightness" convention as Saturation).
func (p *Pipeline) applyBrightness(f frame.Frame) {
	amount := float64(p.cfg.Brightness) / 100.0
	for i, v := range f.Pixels {
		f.Pixels[i] = clampByte(float64(v) * amount)
	}
}

// applyContrast blends each pixel toward the frame's mean gray value.
func (p *Pipeline) applyContrast(f frame.Frame) {
	px := f.Pixels
	if len(px) == 0 {
		return
	}
	var sum int
	for _, v := range px {
		sum += int(v)
	}
	mean := float64(sum) / float64(len(px))
	amount := float64(p.cfg.Contrast) / 100.0

	for i, v := range px {
		px[i] = clampByte(mean + (float64(v)-mean)*amount)
	}
}

// applySharpen runs a Laplacian-style unsharp kernel, strength controlled by
// cfg.Sharpen (0..100). Operates per-channel on the packed RGB24 buffer.
func (p *Pipeline) applySharpen(f2 frame.Frame) frame.Frame {
	w, h := f2.Width, f2.Height
	px := f2.Pixels
	out := make([]byte, len(px))
	copy(out, px)

	strength := float64(p.cfg.Sharpen) / 100.0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			for c := 0; c < 3; c++ {
				center := float64(px[(y*w+x)*3+c])
				up := float64(px[((y-1)*w+x)*3+c])
				down := float64(px[((y+1)*w+x)*3+c])
				left := float64(px[(y*w+x-1)*3+c])
				right := float64(px[(y*w+x+1)*3+c])
				laplacian := 4*center - up - down - left - right
				out[(y*w+x)*3+c] = clampByte(center + laplacian*strength)
			}
		}
	}
	copy(px, out)
	return f2
}

// applyBalance scales each channel independently, where 255 is a no-op and
// lower values attenuate that channel.
func (p *Pipeline) applyBalance(f frame.Frame) {
	rs := float64(p.cfg.BalanceRed) / 255.0
	gs := float64(p.cfg.BalanceGreen) / 255.0
	bs := float64(p.cfg.BalanceBlue) / 255.0
	if p.cfg.BalanceRed == 0 {
		rs = 1
	}
	if p.cfg.BalanceGreen == 0 {
		gs = 1
	}
	if p.cfg.BalanceBlue == 0 {
		bs = 1
	}

	px := f.Pixels
	for i := 0; i+2 < len(px); i += 3 {
		px[i] = clampInt(int(float64(px[i]) * rs))
		px[i+1] = clampInt(int(float64(px[i+1]) * gs))
		px[i+2] = clampInt(int(float64(px[i+2]) * bs))
	}
}

// applyFlip mirrors the frame horizontally, vertically, or both, selected by
// cfg.FlipVH (0 horizontal, 1 vertical, 2 both) when Flip is enabled.
func (p *Pipeline) applyFlip(f frame.Frame) {
	w, h := f.Width, f.Height
	px := f.Pixels

	horiz := p.cfg.FlipVH == 0 || p.cfg.FlipVH == 2
	vert := p.cfg.FlipVH == 1 || p.cfg.FlipVH == 2

	if horiz {
		for y := 0; y < h; y++ {
			for x := 0; x < w/2; x++ {
				swapPixel(px, (y*w+x)*3, (y*w+(w-1-x))*3)
			}
		}
	}
	if vert {
		for y := 0; y < h/2; y++ {
			for x := 0; x < w; x++ {
				swapPixel(px, (y*w+x)*3, ((h-1-y)*w+x)*3)
			}
		}
	}
}

func swapPixel(px []byte, a, b int) {
	px[a], px[b] = px[b], px[a]
	px[a+1], px[b+1] = px[b+1], px[a+1]
	px[a+2], px[b+2] = px[b+2], px[a+2]
}
