package spritestrip

import "image"

// PixelBuffer is the read-only view the scanner needs from a decoded frame.
// AlphaAt returns 0 for coordinates outside [0,Width)×[0,Height).
type PixelBuffer interface {
	Width() int
	Height() int
	AlphaAt(x, y int) uint8
}

// Pixels is the alpha plane of a decoded frame, origin at (0,0).
type Pixels struct {
	W, H  int
	Alpha []uint8 // len = W*H
}

// NewPixels extracts the alpha channel of img. Coordinates are relative to
// img.Bounds().Min. Any non-zero 16-bit alpha maps to at least 1 so that
// faint pixels still count as opaque.
func NewPixels(img image.Image) *Pixels {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	p := &Pixels{W: w, H: h, Alpha: make([]uint8, w*h)}

	switch src := img.(type) {
	case *image.NRGBA:
		for y := range h {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := range w {
				p.Alpha[y*w+x] = row[x*4+3]
			}
		}
	case *image.RGBA:
		for y := range h {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := range w {
				p.Alpha[y*w+x] = row[x*4+3]
			}
		}
	case *image.Paletted:
		alphas := make([]uint8, len(src.Palette))
		for i, c := range src.Palette {
			alphas[i] = alpha8(c.RGBA())
		}
		for y := range h {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := range w {
				idx := int(row[x])
				if idx < len(alphas) {
					p.Alpha[y*w+x] = alphas[idx]
				}
			}
		}
	default:
		for y := range h {
			for x := range w {
				p.Alpha[y*w+x] = alpha8(img.At(b.Min.X+x, b.Min.Y+y).RGBA())
			}
		}
	}
	return p
}

func alpha8(_, _, _, a uint32) uint8 {
	if a == 0 {
		return 0
	}
	return uint8(max(a>>8, 1))
}

func (p *Pixels) Width() int  { return p.W }
func (p *Pixels) Height() int { return p.H }

func (p *Pixels) AlphaAt(x, y int) uint8 {
	if x < 0 || y < 0 || x >= p.W || y >= p.H {
		return 0
	}
	return p.Alpha[y*p.W+x]
}
