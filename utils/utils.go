package utils

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/setanarut/spritestrip"
)

type SaveOptions struct {
	// Integer upscale factor applied with nearest-neighbour sampling.
	// Values below 2 keep the original size.
	Scale int
	// Quantize the sheet to this many colors (plus one transparent entry)
	// and write an indexed PNG. 0 writes a full RGBA PNG.
	// Values above 255 are clamped.
	Colors int
	// Palette extraction method used when Colors > 0.
	Method PaletteMethod
}

// SaveSheet writes the sheet image to filename as PNG and returns the
// palette it was quantized to (nil for RGBA output).
func SaveSheet(s *spritestrip.Sheet, filename string, opt SaveOptions) ([]colorful.Color, error) {
	img := s.Scale(opt.Scale)
	if opt.Colors <= 0 {
		return nil, SaveImage(img, filename)
	}
	palette := ExtractPalette(img, min(opt.Colors, 255), opt.Method)
	SortPaletteByBrightness(palette)
	spritestrip.Logger().Debug("palette", "method", opt.Method, "colors", len(palette))
	return palette, SaveImage(Quantize(img, palette), filename)
}

// SaveImage encodes img as PNG. The file is written next to filename and
// renamed into place, so an existing file is replaced only by a complete one.
func SaveImage(img image.Image, filename string) error {
	dir := filepath.Dir(filename)
	f, err := os.CreateTemp(dir, ".spritestrip-*.png")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", filename, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filename)
}

// SaveFrames writes every frame of the sheet to dir as frame_000.png,
// frame_001.png, ...
func SaveFrames(s *spritestrip.Sheet, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i := range s.Len() {
		frame := s.Image.SubImage(s.FrameRect(i))
		name := filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i))
		if err := SaveImage(frame, name); err != nil {
			return err
		}
	}
	return nil
}

// SavePalette writes the palette as a strip of tileSize×tileSize swatches.
func SavePalette(palette []colorful.Color, tileSize int, filename string) error {
	if len(palette) == 0 {
		return fmt.Errorf("empty palette")
	}
	if tileSize <= 0 {
		tileSize = 64
	}

	img := image.NewNRGBA(image.Rect(0, 0, tileSize*len(palette), tileSize))
	for i, c := range palette {
		r, g, b := c.Clamped().RGB255()
		fill := color.NRGBA{R: r, G: g, B: b, A: 255}
		for y := range tileSize {
			for x := i * tileSize; x < (i+1)*tileSize; x++ {
				img.SetNRGBA(x, y, fill)
			}
		}
	}
	return SaveImage(img, filename)
}

// Rect is a JSON friendly rectangle.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func toRect(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Index describes where every frame sits on a sheet.
type Index struct {
	Image       string `json:"image,omitempty"`
	FrameWidth  int    `json:"frameWidth"`
	FrameHeight int    `json:"frameHeight"`
	Crop        Rect   `json:"crop"` // shared crop in source frame coordinates
	Frames      []Rect `json:"frames"`
}

// NewIndex builds the Index of s. scale must match the factor the sheet was
// saved with.
func NewIndex(s *spritestrip.Sheet, imageName string, scale int) Index {
	scale = max(scale, 1)
	idx := Index{
		Image:       imageName,
		FrameWidth:  s.FrameWidth * scale,
		FrameHeight: s.FrameHeight * scale,
		Crop:        toRect(s.Crop),
		Frames:      make([]Rect, s.Len()),
	}
	for i := range s.Len() {
		r := s.FrameRect(i)
		idx.Frames[i] = toRect(image.Rectangle{Min: r.Min.Mul(scale), Max: r.Max.Mul(scale)})
	}
	return idx
}

// SaveIndex writes idx to filename as indented JSON.
func SaveIndex(idx Index, filename string) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, append(data, '\n'), 0o644)
}
