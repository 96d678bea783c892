package spritestrip

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Upper bound on goroutines running scans or crops at once.
	// 0 or less means runtime.GOMAXPROCS(0).
	Workers int
	// Leave blank (fully transparent) frames out of the crop reduction.
	// By default a blank frame contributes 0 to every edge, which collapses
	// the end edges and makes the crop degenerate.
	IgnoreBlank bool
	// Compute Sheet.Coverage and log a warning for every frame whose opaque
	// pixels are partly outside the shared crop.
	Coverage bool
	// Called once per frame after it has been cropped. It runs on the crop
	// goroutines and must be safe for concurrent use.
	OnCrop func(frame int)
}

func DefaultOptions() Options {
	return Options{
		Workers:  runtime.GOMAXPROCS(0),
		Coverage: true,
	}
}

// Frame pairs a decoded alpha plane with the image it was decoded from.
type Frame struct {
	Pixels PixelBuffer
	Image  image.Image
}

// NewFrame decodes the alpha plane of img.
func NewFrame(img image.Image) Frame {
	return Frame{Pixels: NewPixels(img), Image: img}
}

// NewFrames wraps imgs in order. Their alpha planes are decoded by Assemble,
// each inside that frame's scan work.
func NewFrames(imgs []image.Image) []Frame {
	frames := make([]Frame, len(imgs))
	for i, img := range imgs {
		frames[i] = Frame{Image: img}
	}
	return frames
}

// Sheet is a horizontal strip of equally sized frames.
type Sheet struct {
	Image       *image.NRGBA
	Crop        image.Rectangle // shared crop, in frame coordinates
	FrameWidth  int
	FrameHeight int
	Edges       []Edges
	Coverage    *CoverageReport // nil unless Options.Coverage
}

// Len returns the number of frames on the sheet.
func (s *Sheet) Len() int { return len(s.Edges) }

// FrameRect returns where frame i sits on the sheet.
func (s *Sheet) FrameRect(i int) image.Rectangle {
	x := s.FrameWidth * i
	return image.Rect(x, 0, x+s.FrameWidth, s.FrameHeight)
}

// Scale returns the sheet enlarged n times with nearest-neighbour sampling.
// n <= 1 returns the sheet image itself.
func (s *Sheet) Scale(n int) *image.NRGBA {
	if n <= 1 {
		return s.Image
	}
	b := s.Image.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()*n, b.Dy()*n))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), s.Image, b, draw.Src, nil)
	return dst
}

// Assemble crops every frame to one shared rectangle and lays the results
// out left to right. Frame i lands at x = FrameWidth*i.
//
// The 4·len(frames) edge scans and the per-frame crops each fan out on an
// errgroup; the reduction and the compositing wait for the whole stage.
// The first failure cancels the stage and is returned.
func Assemble(ctx context.Context, frames []Frame, opt Options) (*Sheet, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if opt.Workers <= 0 {
		opt.Workers = runtime.GOMAXPROCS(0)
	}
	log := Logger()

	for i := range frames {
		if frames[i].Image == nil {
			return nil, &DecodeError{Frame: i, Err: errors.New("nil image")}
		}
	}

	edges, bufs, err := scanFrames(ctx, frames, opt.Workers)
	if err != nil {
		return nil, err
	}
	for i, e := range edges {
		log.Debug("frame edges", "frame", i, "blank", e.Blank,
			"startX", e.StartX, "startY", e.StartY, "endX", e.EndX, "endY", e.EndY)
	}

	rect, err := Reduce(edges, opt.IgnoreBlank)
	if err != nil {
		return nil, err
	}
	log.Debug("crop", "rect", rect)

	cropped, err := cropFrames(ctx, frames, rect, opt)
	if err != nil {
		return nil, err
	}

	fw, fh := rect.Dx(), rect.Dy()
	placements := make([]Placement, len(cropped))
	for i, img := range cropped {
		placements[i] = Placement{Image: img, Left: fw * i}
	}
	s := &Sheet{
		Image:       Composite(fw*len(cropped), fh, placements),
		Crop:        rect,
		FrameWidth:  fw,
		FrameHeight: fh,
		Edges:       edges,
	}

	if opt.Coverage {
		rep := Coverage(bufs, rect)
		s.Coverage = &rep
		for _, i := range rep.Clipped {
			log.Warn("frame content clipped by shared crop",
				"frame", i, "kept", rep.Frames[i], "frameRect", edges[i].Rect(), "crop", rect)
		}
	}

	log.Info("sheet assembled", "frames", len(frames), "frameWidth", fw, "frameHeight", fh,
		"size", s.Image.Bounds().Size())
	return s, nil
}

// Reduce folds per-frame edges into the shared crop rectangle. Both the
// start and the end edges take the minimum over all frames.
// With ignoreBlank blank frames are skipped; otherwise they contribute 0.
func Reduce(edges []Edges, ignoreBlank bool) (image.Rectangle, error) {
	var (
		r    image.Rectangle
		seen bool
	)
	for _, e := range edges {
		if e.Blank && ignoreBlank {
			continue
		}
		if !seen {
			r = image.Rectangle{
				Min: image.Pt(e.StartX, e.StartY),
				Max: image.Pt(e.EndX, e.EndY),
			}
			seen = true
			continue
		}
		r.Min.X = min(r.Min.X, e.StartX)
		r.Min.Y = min(r.Min.Y, e.StartY)
		r.Max.X = min(r.Max.X, e.EndX)
		r.Max.Y = min(r.Max.Y, e.EndY)
	}
	if !seen || r.Dx() <= 0 || r.Dy() <= 0 {
		return r, &DegenerateCropError{Rect: r}
	}
	return r, nil
}

// scanFrames runs the four edge scans of every frame. A frame without an
// alpha plane has it decoded once, by whichever of its scans runs first.
func scanFrames(ctx context.Context, frames []Frame, workers int) ([]Edges, []PixelBuffer, error) {
	results := make([][4]scanResult, len(frames))
	pixels := make([]func() PixelBuffer, len(frames))
	for i, f := range frames {
		if f.Pixels != nil {
			pixels[i] = func() PixelBuffer { return f.Pixels }
		} else {
			pixels[i] = sync.OnceValue(func() PixelBuffer { return NewPixels(f.Image) })
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range frames {
		for _, dir := range directions {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i][dir] = scanAlpha(pixels[i](), dir)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	edges := make([]Edges, len(frames))
	bufs := make([]PixelBuffer, len(frames))
	for i := range results {
		edges[i] = edgesFrom(results[i])
		bufs[i] = pixels[i]()
	}
	return edges, bufs, nil
}

func cropFrames(ctx context.Context, frames []Frame, rect image.Rectangle, opt Options) ([]*image.NRGBA, error) {
	cropped := make([]*image.NRGBA, len(frames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opt.Workers)
	for i := range frames {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := Crop(frames[i].Image, rect)
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			cropped[i] = img
			if opt.OnCrop != nil {
				opt.OnCrop(i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cropped, nil
}
