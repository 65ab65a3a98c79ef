// Package pipeline implements the deterministic image-processing chain
// (spec.md §4.4) applied to every frame between capture and fan-out: resize,
// gamma, optional auto level, color/tone filters, and flip. The chain is
// pure with respect to the frame — no state is kept across frames except
// the gamma LUT, which only depends on the (static) config value.
package pipeline

import (
	"image"
	"image/draw"
	"math"

	ximage "golang.org/x/image/draw"

	"github.com/ledcast/caster/internal/config"
	"github.com/ledcast/caster/internal/frame"
)

// Pipeline holds the precomputed state (gamma LUT) for one cast's filter
// configuration. Config is immutable for the pipeline's lifetime — a
// changed filter value requires a new Pipeline. The cast builds its
// Pipeline once when it opens; no action rebuilds it.
type Pipeline struct {
	cfg      config.FilterConfig
	gammaLUT [256]byte
}

// New precomputes the gamma lookup table for cfg.
func New(cfg config.FilterConfig) *Pipeline {
	p := &Pipeline{cfg: cfg}
	p.buildGammaLUT()
	return p
}

func (p *Pipeline) buildGammaLUT() {
	gamma := p.cfg.Gamma
	if gamma <= 0 {
		gamma = 1.0
	}
	for i := 0; i < 256; i++ {
		v := pow(float64(i)/255.0, 1.0/gamma) * 255.0
		p.gammaLUT[i] = clampByte(v)
	}
}

// Apply runs the full chain and returns the resulting frame, resized to
// scaleW x scaleH.
func (p *Pipeline) Apply(f frame.Frame, scaleW, scaleH int) frame.Frame {
	out := p.resize(f, scaleW, scaleH)
	p.applyGamma(out)
	if p.cfg.AutoLevel {
		p.applyAutoLevel(out)
	}
	if p.cfg.Saturation != 0 {
		p.applySaturation(out)
	}
	if p.cfg.Brightness != 0 {
		p.applyBrightness(out)
	}
	if p.cfg.Contrast != 0 {
		p.applyContrast(out)
	}
	if p.cfg.Sharpen != 0 {
		out = p.applySharpen(out)
	}
	p.applyBalance(out)
	if p.cfg.Flip {
		p.applyFlip(out)
	}
	return out
}

// resize scales with golang.org/x/image/draw's ApproxBiLinear scaler in
// both directions. It samples the source bilinearly; it does not average
// over the source area each destination pixel covers when downsizing.
func (p *Pipeline) resize(f frame.Frame, w, h int) frame.Frame {
	if f.Width == w && f.Height == h {
		return f.Clone()
	}

	src := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, b := f.At(x, y)
			o := src.PixOffset(x, y)
			src.Pix[o] = r
			src.Pix[o+1] = g
			src.Pix[o+2] = b
			src.Pix[o+3] = 0xff
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	ximage.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := frame.Blank(w, h, f.Seq)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := dst.PixOffset(x, y)
			out.Set(x, y, dst.Pix[o], dst.Pix[o+1], dst.Pix[o+2])
		}
	}
	return out
}

func pow(base, exp float64) float64 {
	if base <= 0 {
		return 0
	}
	return math.Pow(base, exp)
}
