package spritestrip

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func assemble(t *testing.T, opt Options, imgs ...image.Image) (*Sheet, error) {
	t.Helper()
	return Assemble(context.Background(), NewFrames(imgs), opt)
}

func TestReduceMinMin(t *testing.T) {
	edges := []Edges{
		{StartX: 2, StartY: 1, EndX: 10, EndY: 6},
		{StartX: 5, StartY: 0, EndX: 8, EndY: 9},
	}
	r, err := Reduce(edges, false)
	require.NoError(t, err)
	require.Equal(t, image.Rect(2, 0, 8, 6), r)
}

func TestAssembleReductionUsesMinForBothEnds(t *testing.T) {
	f1 := boxImage(12, 4, image.Rect(2, 0, 10, 4), red)
	f2 := boxImage(12, 4, image.Rect(5, 0, 8, 4), green)

	s, err := assemble(t, DefaultOptions(), f1, f2)
	require.NoError(t, err)
	require.Equal(t, image.Rect(2, 0, 8, 4), s.Crop)
	require.Equal(t, 6, s.FrameWidth)
	require.Equal(t, 4, s.FrameHeight)
	require.Equal(t, image.Rect(0, 0, 12, 4), s.Image.Bounds())

	// Frame 1 starts at column 6; its columns 2..4 were transparent.
	require.Equal(t, red, s.Image.NRGBAAt(0, 0))
	require.Equal(t, color.NRGBA{}, s.Image.NRGBAAt(6, 0))
	require.Equal(t, color.NRGBA{}, s.Image.NRGBAAt(8, 3))
	require.Equal(t, green, s.Image.NRGBAAt(9, 3))
	require.Equal(t, green, s.Image.NRGBAAt(11, 0))
}

func TestReduceDegenerate(t *testing.T) {
	tests := []struct {
		name        string
		edges       []Edges
		ignoreBlank bool
	}{
		{"crossed x", []Edges{{StartX: 6, EndX: 9, EndY: 4}, {StartX: 7, EndX: 5, EndY: 4}}, false},
		{"crossed y", []Edges{{StartY: 3, EndX: 4, EndY: 3}}, false},
		{"blank counts as zero", []Edges{{StartX: 1, StartY: 1, EndX: 3, EndY: 3}, {Blank: true}}, false},
		{"all blank", []Edges{{Blank: true}, {Blank: true}}, true},
		{"no frames", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reduce(tt.edges, tt.ignoreBlank)
			require.ErrorIs(t, err, ErrDegenerateCrop)
			var de *DegenerateCropError
			require.True(t, errors.As(err, &de))
		})
	}
}

func TestAssembleDegenerate(t *testing.T) {
	blank := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	_, err := assemble(t, DefaultOptions(), blank, blank)
	require.ErrorIs(t, err, ErrDegenerateCrop)

	_, err = assemble(t, DefaultOptions(), solidImage(4, 4, red), blank)
	require.ErrorIs(t, err, ErrDegenerateCrop)

	// Disjoint halves still reduce to a valid crop: both edges come from the
	// left frame and the right frame ends up outside it.
	s, err := assemble(t, DefaultOptions(),
		boxImage(4, 4, image.Rect(0, 0, 2, 4), red),
		boxImage(4, 4, image.Rect(2, 0, 4, 4), green))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 2, 4), s.Crop)
	require.Equal(t, []int{1}, s.Coverage.Clipped)
	require.Zero(t, s.Coverage.Frames[1])
}

func TestAssembleIgnoreBlank(t *testing.T) {
	blank := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	opt := DefaultOptions()
	opt.IgnoreBlank = true

	s, err := assemble(t, opt, boxImage(4, 4, image.Rect(1, 1, 3, 3), red), blank)
	require.NoError(t, err)
	require.Equal(t, image.Rect(1, 1, 3, 3), s.Crop)
	require.Equal(t, 2, s.Len())
	require.True(t, s.Edges[1].Blank)
	require.Equal(t, image.Rect(0, 0, 4, 2), s.Image.Bounds())
	for x := 2; x < 4; x++ {
		for y := range 2 {
			require.Equal(t, color.NRGBA{}, s.Image.NRGBAAt(x, y))
		}
	}

	_, err = assemble(t, opt, blank, blank)
	require.ErrorIs(t, err, ErrDegenerateCrop)
}

func TestAssembleLayoutOrder(t *testing.T) {
	colors := []color.NRGBA{red, green, blue}
	imgs := make([]image.Image, len(colors))
	for i, c := range colors {
		imgs[i] = solidImage(4, 3, c)
	}

	s, err := assemble(t, DefaultOptions(), imgs...)
	require.NoError(t, err)
	require.Equal(t, 4, s.FrameWidth)
	require.Equal(t, image.Rect(0, 0, 12, 3), s.Image.Bounds())

	for i, c := range colors {
		require.Equal(t, image.Rect(i*4, 0, (i+1)*4, 3), s.FrameRect(i))
		for x := i * 4; x < (i+1)*4; x++ {
			for y := range 3 {
				require.Equal(t, c, s.Image.NRGBAAt(x, y), "frame %d at (%d,%d)", i, x, y)
			}
		}
	}
}

func TestAssembleTwoFrameScenario(t *testing.T) {
	f0 := boxImage(4, 4, image.Rect(1, 1, 3, 3), red)
	f1 := solidImage(4, 4, green)

	s, err := assemble(t, DefaultOptions(), f0, f1)
	require.NoError(t, err)
	require.Equal(t, Edges{StartX: 1, StartY: 1, EndX: 3, EndY: 3}, s.Edges[0])
	require.Equal(t, Edges{StartX: 0, StartY: 0, EndX: 4, EndY: 4}, s.Edges[1])
	require.Equal(t, image.Rect(0, 0, 3, 3), s.Crop)
	require.Equal(t, image.Rect(0, 0, 6, 3), s.Image.Bounds())

	for y := range 3 {
		for x := range 3 {
			want := color.NRGBA{}
			if x >= 1 && y >= 1 {
				want = red
			}
			require.Equal(t, want, s.Image.NRGBAAt(x, y), "(%d,%d)", x, y)
			require.Equal(t, green, s.Image.NRGBAAt(3+x, y))
		}
	}

	require.NotNil(t, s.Coverage)
	require.Equal(t, []float64{1, 9.0 / 16.0}, s.Coverage.Frames)
	require.Equal(t, []int{1}, s.Coverage.Clipped)
	require.InDelta(t, (1+9.0/16.0)/2, s.Coverage.Mean, 1e-9)
	require.InDelta(t, 9.0/16.0, s.Coverage.Min, 1e-9)
}

func TestAssemblePassesChannelsThrough(t *testing.T) {
	faint := color.NRGBA{R: 200, G: 10, B: 30, A: 3}
	s, err := assemble(t, DefaultOptions(), boxImage(3, 3, image.Rect(1, 1, 2, 2), faint))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 1, 1), s.Image.Bounds())
	require.Equal(t, faint, s.Image.NRGBAAt(0, 0))
}

func TestAssembleErrors(t *testing.T) {
	_, err := Assemble(context.Background(), nil, DefaultOptions())
	require.ErrorIs(t, err, ErrNoFrames)

	_, err = Assemble(context.Background(), []Frame{{Pixels: NewPixels(solidImage(2, 2, red))}}, DefaultOptions())
	require.ErrorIs(t, err, ErrDecode)

	// Alpha plane larger than the image it claims to come from.
	big := solidImage(8, 8, red)
	small := solidImage(4, 4, red)
	frames := []Frame{
		NewFrame(big),
		{Pixels: NewPixels(big), Image: small},
	}
	_, err = Assemble(context.Background(), frames, DefaultOptions())
	require.ErrorIs(t, err, ErrGeometry)
	var ge *GeometryError
	require.True(t, errors.As(err, &ge))
	require.Equal(t, image.Rect(0, 0, 4, 4), ge.Bounds)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Assemble(ctx, NewFrames([]image.Image{big}), DefaultOptions())
	require.ErrorIs(t, err, context.Canceled)
}

func TestAssembleFillsMissingPixels(t *testing.T) {
	frames := []Frame{{Image: boxImage(4, 4, image.Rect(1, 0, 3, 4), red)}}
	s, err := Assemble(context.Background(), frames, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, image.Rect(1, 0, 3, 4), s.Crop)
	require.Nil(t, frames[0].Pixels)
}

// countingImage counts Bounds calls; NewPixels makes exactly one.
type countingImage struct {
	image.Image
	bounds atomic.Int32
}

func (c *countingImage) Bounds() image.Rectangle {
	c.bounds.Add(1)
	return c.Image.Bounds()
}

func TestScanFramesDecodesEachFrameOnce(t *testing.T) {
	imgs := []*countingImage{
		{Image: boxImage(6, 6, image.Rect(1, 2, 4, 5), red)},
		{Image: boxImage(6, 6, image.Rect(0, 0, 6, 3), green)},
		{Image: image.NewNRGBA(image.Rect(0, 0, 6, 6))},
	}
	frames := make([]Frame, len(imgs))
	for i, img := range imgs {
		frames[i] = NewFrames([]image.Image{img})[0]
		require.Nil(t, frames[i].Pixels)
	}

	edges, bufs, err := scanFrames(context.Background(), frames, 8)
	require.NoError(t, err)
	for i, img := range imgs {
		require.Equal(t, int32(1), img.bounds.Load(), "frame %d", i)
		require.Equal(t, 6, bufs[i].Width())
		require.Nil(t, frames[i].Pixels)
	}
	require.Equal(t, image.Rect(1, 2, 4, 5), edges[0].Rect())
	require.Equal(t, image.Rect(0, 0, 6, 3), edges[1].Rect())
	require.True(t, edges[2].Blank)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	idle := &countingImage{Image: solidImage(2, 2, red)}
	_, _, err = scanFrames(ctx, NewFrames([]image.Image{idle}), 1)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, idle.bounds.Load())
}

func TestAssembleOnCropAndWorkers(t *testing.T) {
	imgs := make([]image.Image, 9)
	for i := range imgs {
		imgs[i] = boxImage(10, 10, image.Rect(i%3, 1, 8, 9), blue)
	}
	var calls atomic.Int32
	opt := Options{Workers: 2, OnCrop: func(int) { calls.Add(1) }}

	s, err := assemble(t, opt, imgs...)
	require.NoError(t, err)
	require.Equal(t, int32(9), calls.Load())
	require.Nil(t, s.Coverage)
	require.Equal(t, image.Rect(0, 1, 8, 9), s.Crop)
}

func TestSheetScale(t *testing.T) {
	s, err := assemble(t, DefaultOptions(), solidImage(2, 1, red), solidImage(2, 1, green))
	require.NoError(t, err)
	require.Same(t, s.Image, s.Scale(1))

	big := s.Scale(3)
	require.Equal(t, image.Rect(0, 0, 12, 3), big.Bounds())
	require.Equal(t, red, big.NRGBAAt(5, 2))
	require.Equal(t, green, big.NRGBAAt(6, 0))
}

func TestCropAndComposite(t *testing.T) {
	src := boxImage(4, 4, image.Rect(1, 1, 3, 3), red)

	c, err := Crop(src, image.Rect(1, 1, 3, 3))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 2, 2), c.Bounds())
	require.Equal(t, red, c.NRGBAAt(1, 1))

	_, err = Crop(src, image.Rect(2, 2, 6, 6))
	require.ErrorIs(t, err, ErrGeometry)
	_, err = Crop(src, image.Rect(1, 1, 1, 3))
	require.ErrorIs(t, err, ErrGeometry)

	// Sub-images are cropped relative to their own origin.
	sub := src.SubImage(image.Rect(1, 1, 4, 4))
	c, err = Crop(sub, image.Rect(0, 0, 2, 2))
	require.NoError(t, err)
	require.Equal(t, red, c.NRGBAAt(0, 0))

	out := Composite(5, 2, []Placement{
		{Image: c, Left: 0},
		{Image: solidImage(2, 2, blue), Left: 3},
	})
	require.Equal(t, image.Rect(0, 0, 5, 2), out.Bounds())
	require.Equal(t, red, out.NRGBAAt(1, 1))
	require.Equal(t, color.NRGBA{}, out.NRGBAAt(2, 0))
	require.Equal(t, blue, out.NRGBAAt(4, 1))
}

func TestAssembleLogsClippedFrames(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	_, err := assemble(t, DefaultOptions(),
		boxImage(4, 4, image.Rect(1, 1, 3, 3), red),
		solidImage(4, 4, green))
	require.NoError(t, err)

	out := buf.String()
	require.True(t, strings.Contains(out, "frame edges"))
	require.True(t, strings.Contains(out, "frame content clipped by shared crop"))
	require.True(t, strings.Contains(out, "sheet assembled"))
}

func TestLoggerDefaultSilent(t *testing.T) {
	SetLogger(nil)
	l := Logger()
	require.NotNil(t, l)
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		require.False(t, l.Enabled(context.Background(), level))
	}
}
