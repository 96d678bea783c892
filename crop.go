package spritestrip

import (
	"image"

	"golang.org/x/image/draw"
)

// Crop copies the rectangle r of img into a new NRGBA image with origin (0,0).
// r is given in frame coordinates, i.e. relative to img.Bounds().Min.
func Crop(img image.Image, r image.Rectangle) (*image.NRGBA, error) {
	b := img.Bounds()
	abs := r.Add(b.Min)
	if r.Empty() || !abs.In(b) {
		return nil, &GeometryError{Rect: r, Bounds: b.Sub(b.Min)}
	}
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	copyRect(dst, dst.Bounds(), img, abs.Min)
	return dst, nil
}

// Placement positions one image on a composite canvas.
type Placement struct {
	Image image.Image
	Left  int
	Top   int
}

// Composite draws every placement onto a new transparent width×height canvas.
// Pixels are copied as is (draw.Src), so placements must not overlap.
func Composite(width, height int, placements []Placement) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	for _, p := range placements {
		b := p.Image.Bounds()
		at := image.Rect(p.Left, p.Top, p.Left+b.Dx(), p.Top+b.Dy())
		copyRect(canvas, at, p.Image, b.Min)
	}
	return canvas
}

// copyRect copies src at sp into r of dst. NRGBA sources are copied row by
// row so that non-premultiplied channels survive unchanged.
func copyRect(dst *image.NRGBA, r image.Rectangle, src image.Image, sp image.Point) {
	clipped := r.Intersect(dst.Bounds())
	sp = sp.Add(clipped.Min.Sub(r.Min))
	r = clipped
	s, ok := src.(*image.NRGBA)
	if !ok {
		draw.Draw(dst, r, src, sp, draw.Src)
		return
	}
	n := r.Dx() * 4
	for y := range r.Dy() {
		di := dst.PixOffset(r.Min.X, r.Min.Y+y)
		si := s.PixOffset(sp.X, sp.Y+y)
		copy(dst.Pix[di:di+n], s.Pix[si:si+n])
	}
}
