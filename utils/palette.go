package utils

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/setanarut/spritestrip"
)

type PaletteMethod int

const (
	PaletteMethodDominantColor PaletteMethod = iota
	PaletteMethodKMeans
)

func (m PaletteMethod) String() string {
	switch m {
	case PaletteMethodKMeans:
		return "kmeans"
	default:
		return "dominantcolor"
	}
}

// ParsePaletteMethod is the inverse of PaletteMethod.String.
func ParsePaletteMethod(s string) (PaletteMethod, error) {
	switch s {
	case "dominantcolor", "dominant", "":
		return PaletteMethodDominantColor, nil
	case "kmeans":
		return PaletteMethodKMeans, nil
	}
	return 0, fmt.Errorf("unknown palette method %q", s)
}

type weightedColor struct {
	Col    colorful.Color
	Weight float64
}

// maxPaletteSamples bounds the opaque pixels fed to palette extraction.
const maxPaletteSamples = 12000

// SortPaletteByBrightness orders colors from darkest to brightest.
func SortPaletteByBrightness(palette []colorful.Color) {
	slices.SortFunc(palette, func(a, b colorful.Color) int {
		ri, gi, bi := a.LinearRgb()
		rj, gj, bj := b.LinearRgb()
		yi := 0.2126*ri + 0.7152*gi + 0.0722*bi
		yj := 0.2126*rj + 0.7152*gj + 0.0722*bj
		switch {
		case yi < yj:
			return -1
		case yi > yj:
			return 1
		}
		return 0
	})
}

// ExtractPalette picks up to k colors from the opaque pixels of img.
// Transparent pixels never contribute. Returns nil for a blank image.
func ExtractPalette(img image.Image, k int, method PaletteMethod) []colorful.Color {
	if k <= 0 {
		return nil
	}
	samples := opaqueSamples(img, maxPaletteSamples)
	if len(samples) == 0 {
		return nil
	}
	if method == PaletteMethodKMeans {
		if p := kmeansPalette(samples, k); len(p) != 0 {
			return p
		}
		spritestrip.Logger().Warn("kmeans returned empty palette, falling back to dominantcolor")
	}
	return dominantPalette(samples, k)
}

// opaqueSamples collects the non-transparent pixels of img, subsampled on a
// regular grid so that at most about limit pixels are returned.
func opaqueSamples(img image.Image, limit int) []color.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	step := 1
	if w*h > limit {
		step = int(math.Sqrt(float64(w*h)/float64(limit))) + 1
	}
	out := make([]color.NRGBA, 0, min(w*h, limit))
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A == 0 {
				continue
			}
			c.A = 255
			out = append(out, c)
		}
	}
	return out
}

// samplesImage packs samples into a roughly square opaque image so that
// image-based extractors only ever see opaque content.
func samplesImage(samples []color.NRGBA) *image.NRGBA {
	side := int(math.Ceil(math.Sqrt(float64(len(samples)))))
	img := image.NewNRGBA(image.Rect(0, 0, side, side))
	for i := range side * side {
		img.SetNRGBA(i%side, i/side, samples[i%len(samples)])
	}
	return img
}

func dominantPalette(samples []color.NRGBA, k int) []colorful.Color {
	candidates := dominantcolor.FindWeight(samplesImage(samples), max(24, k*8))
	if len(candidates) == 0 {
		c := samples[0]
		candidates = append(candidates, dominantcolor.Color{
			RGBA:   color.RGBA{R: c.R, G: c.G, B: c.B, A: 255},
			Weight: 1.0,
		})
	}
	weighted := make([]weightedColor, 0, len(candidates))
	for _, c := range candidates {
		col, _ := colorful.MakeColor(c.RGBA)
		weighted = append(weighted, weightedColor{Col: col.Clamped(), Weight: c.Weight})
	}
	return selectDiverse(weighted, k)
}

func kmeansPalette(samples []color.NRGBA, k int) []colorful.Color {
	dataset := make(clusters.Observations, len(samples))
	for i, c := range samples {
		dataset[i] = clusters.Coordinates{
			float64(c.R) / 255.0,
			float64(c.G) / 255.0,
			float64(c.B) / 255.0,
		}
	}
	workK := min(max(k*4, k+2), len(dataset))
	cc, err := kmeans.New().Partition(dataset, workK)
	if err != nil || len(cc) == 0 {
		return nil
	}

	weighted := make([]weightedColor, 0, len(cc))
	for _, c := range cc {
		if len(c.Center) < 3 || len(c.Observations) == 0 {
			continue
		}
		col := colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}.Clamped()
		weighted = append(weighted, weightedColor{Col: col, Weight: float64(len(c.Observations))})
	}
	return selectDiverse(weighted, k)
}

// selectDiverse greedily picks k colors: the heaviest candidate first, then
// repeatedly the candidate farthest (in CIELAB) from those already picked,
// biased toward heavier candidates.
func selectDiverse(cands []weightedColor, k int) []colorful.Color {
	if k <= 0 || len(cands) == 0 {
		return nil
	}
	k = min(k, len(cands))

	maxW := 0.0
	for i := range cands {
		cands[i].Weight = max(cands[i].Weight, 1e-6)
		maxW = max(maxW, cands[i].Weight)
	}

	picked := make([]int, 0, k)
	used := make([]bool, len(cands))
	seed := 0
	for i := range cands {
		if cands[i].Weight > cands[seed].Weight {
			seed = i
		}
	}
	picked = append(picked, seed)
	used[seed] = true

	for len(picked) < k {
		best, bestScore := -1, -1.0
		for i := range cands {
			if used[i] {
				continue
			}
			nearest := math.MaxFloat64
			for _, p := range picked {
				nearest = min(nearest, cands[i].Col.DistanceLab(cands[p].Col))
			}
			score := nearest * (0.55 + 0.45*math.Sqrt(cands[i].Weight/maxW))
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		picked = append(picked, best)
	}

	out := make([]colorful.Color, len(picked))
	for i, p := range picked {
		out[i] = cands[p].Col
	}
	return out
}

// Quantize maps img onto palette. Index 0 of the result is fully
// transparent and is used for every pixel with zero alpha; every other pixel
// takes the nearest palette color by CIELAB distance and becomes opaque.
// At most 255 palette colors are used.
func Quantize(img *image.NRGBA, palette []colorful.Color) *image.Paletted {
	palette = palette[:min(len(palette), 255)]
	pal := make(color.Palette, 0, len(palette)+1)
	pal = append(pal, color.NRGBA{})
	for _, c := range palette {
		r, g, b := c.Clamped().RGB255()
		pal = append(pal, color.NRGBA{R: r, G: g, B: b, A: 255})
	}

	b := img.Bounds()
	out := image.NewPaletted(b, pal)
	cache := make(map[[3]uint8]uint8)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			if c.A == 0 || len(palette) == 0 {
				continue
			}
			key := [3]uint8{c.R, c.G, c.B}
			idx, ok := cache[key]
			if !ok {
				idx = nearest(colorful.Color{
					R: float64(c.R) / 255.0,
					G: float64(c.G) / 255.0,
					B: float64(c.B) / 255.0,
				}, palette)
				cache[key] = idx
			}
			out.SetColorIndex(x, y, idx)
		}
	}
	return out
}

func nearest(c colorful.Color, palette []colorful.Color) uint8 {
	best, bestD := 0, math.MaxFloat64
	for i, p := range palette {
		if d := c.DistanceLab(p); d < bestD {
			best, bestD = i, d
		}
	}
	return uint8(best + 1)
}
