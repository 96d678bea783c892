package utils

import (
	"bytes"
	"image"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/deepteams/webp"
	"github.com/deepteams/webp/animation"
	"golang.org/x/image/draw"

	"github.com/setanarut/spritestrip"
)

type DecodeOptions struct {
	// Render GIF frames as they play: each frame is drawn over the previous
	// canvas and the GIF disposal methods are honoured. By default every
	// frame is drawn alone onto a transparent logical screen.
	// Animated WebP is always rendered as it plays.
	Cumulative bool
}

// ReadFrames decodes every frame of the animation at path. Each frame covers
// the full logical screen and has its origin at (0,0). A still image is
// returned as a single frame.
func ReadFrames(path string, opt DecodeOptions) ([]image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &spritestrip.DecodeError{Frame: -1, Err: err}
	}
	return decodeBytes(data, opt)
}

// DecodeFrames is ReadFrames for an already opened stream.
func DecodeFrames(r io.Reader, opt DecodeOptions) ([]image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &spritestrip.DecodeError{Frame: -1, Err: err}
	}
	return decodeBytes(data, opt)
}

func decodeBytes(data []byte, opt DecodeOptions) ([]image.Image, error) {
	switch {
	case bytes.HasPrefix(data, []byte("GIF8")):
		return decodeGIF(data, opt.Cumulative)
	case isWebP(data):
		return decodeWebP(data)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &spritestrip.DecodeError{Frame: -1, Err: err}
	}
	return []image.Image{img}, nil
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

func decodeGIF(data []byte, cumulative bool) ([]image.Image, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, &spritestrip.DecodeError{Frame: -1, Err: err}
	}
	if len(g.Image) == 0 {
		return nil, &spritestrip.DecodeError{Frame: -1, Err: spritestrip.ErrNoFrames}
	}

	screen := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if screen.Empty() {
		for _, pm := range g.Image {
			screen = screen.Union(pm.Bounds())
		}
		screen.Min = image.Point{}
	}

	frames := make([]image.Image, len(g.Image))
	if !cumulative {
		for i, pm := range g.Image {
			f := image.NewNRGBA(screen)
			draw.Draw(f, pm.Bounds(), pm, pm.Bounds().Min, draw.Src)
			frames[i] = f
		}
		return frames, nil
	}

	canvas := image.NewNRGBA(screen)
	for i, pm := range g.Image {
		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		var saved *image.NRGBA
		if disposal == gif.DisposalPrevious {
			saved = cloneNRGBA(canvas)
		}

		draw.Draw(canvas, pm.Bounds(), pm, pm.Bounds().Min, draw.Over)
		frames[i] = cloneNRGBA(canvas)

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, pm.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = saved
		}
	}
	return frames, nil
}

// decodeWebP renders an animated WebP frame by frame on its canvas. Files
// with fewer than two frames go through the still decoder. The webp package
// also supplies the animation frame codec.
func decodeWebP(data []byte) ([]image.Image, error) {
	anim, err := animation.DecodeBytes(data)
	if err != nil || len(anim.Frames) < 2 {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, &spritestrip.DecodeError{Frame: -1, Err: err}
		}
		return []image.Image{img}, nil
	}
	if err := anim.DecodeFramesParallel(); err != nil {
		return nil, &spritestrip.DecodeError{Frame: -1, Err: err}
	}

	dec := animation.NewAnimDecoder(anim)
	frames := make([]image.Image, 0, len(anim.Frames))
	for dec.HasNext() {
		img, _, err := dec.NextFrame()
		if err != nil {
			return nil, &spritestrip.DecodeError{Frame: len(frames), Err: err}
		}
		frames = append(frames, img)
	}
	return frames, nil
}

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}
