package spritestrip

import (
	"image"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// CoverageReport measures how much opaque content the shared crop keeps.
// Frames[i] is the fraction of frame i's opaque pixels inside the crop;
// blank frames count as fully covered.
type CoverageReport struct {
	Frames  []float64
	Mean    float64
	Min     float64
	Clipped []int // frames with Frames[i] < 1
}

// Coverage computes a CoverageReport for rect over the given alpha planes.
func Coverage(bufs []PixelBuffer, rect image.Rectangle) CoverageReport {
	rep := CoverageReport{Frames: make([]float64, len(bufs))}
	if len(bufs) == 0 {
		return rep
	}
	for i, buf := range bufs {
		var total, inside int
		for y := range buf.Height() {
			for x := range buf.Width() {
				if buf.AlphaAt(x, y) == 0 {
					continue
				}
				total++
				if image.Pt(x, y).In(rect) {
					inside++
				}
			}
		}
		rep.Frames[i] = 1
		if total > 0 {
			rep.Frames[i] = float64(inside) / float64(total)
		}
		if rep.Frames[i] < 1 {
			rep.Clipped = append(rep.Clipped, i)
		}
	}
	rep.Mean = stat.Mean(rep.Frames, nil)
	rep.Min = floats.Min(rep.Frames)
	return rep
}
