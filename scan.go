package spritestrip

import (
	"fmt"
	"image"
)

// Direction is the way a scan travels across a frame.
type Direction int

const (
	Right Direction = iota // toward increasing x
	Left                   // toward decreasing x
	Down                   // toward increasing y
	Up                     // toward decreasing y
)

func (d Direction) String() string {
	switch d {
	case Right:
		return "right"
	case Left:
		return "left"
	case Down:
		return "down"
	case Up:
		return "up"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Scan walks buf from one edge toward the opposite one and returns the first
// scan position whose row or column holds a pixel for which opaque reports
// true. ok is false when no such pixel exists.
//
// Right and Down return the index of the first hit column/row. Left and Up
// return an exclusive stop: position s covers column/row s-1, so a hit at
// column x yields x+1 and a fully opaque frame yields the width (or height).
// Either way the result is usable as a rectangle coordinate as is.
//
// Scan panics on an unknown Direction.
func Scan(buf PixelBuffer, dir Direction, opaque func(x, y int) bool) (pos int, ok bool) {
	w, h := buf.Width(), buf.Height()

	var (
		vertical                  bool
		start, end, step, crossTo int
		shift                     int
	)
	switch dir {
	case Right:
		start, end, step, crossTo = 0, w, 1, h
	case Left:
		start, end, step, crossTo, shift = w, 0, -1, h, -1
	case Down:
		vertical = true
		start, end, step, crossTo = 0, h, 1, w
	case Up:
		vertical = true
		start, end, step, crossTo, shift = h, 0, -1, w, -1
	default:
		panic(fmt.Sprintf("spritestrip: invalid scan direction %d", int(dir)))
	}

	for s := start; s != end; s += step {
		for c := range crossTo {
			x, y := s+shift, c
			if vertical {
				x, y = c, s+shift
			}
			if opaque(x, y) {
				return s, true
			}
		}
	}
	return 0, false
}

// Edges holds the four scan results of one frame. When Blank is set the
// frame has no opaque pixel and the offsets are absent (zero).
type Edges struct {
	StartX, StartY int // first opaque column/row
	EndX, EndY     int // exclusive stops
	Blank          bool
}

// Rect returns the frame's own bounding box, empty for a blank frame.
func (e Edges) Rect() image.Rectangle {
	if e.Blank {
		return image.Rectangle{}
	}
	return image.Rect(e.StartX, e.StartY, e.EndX, e.EndY)
}

// FindEdges runs the four scans over buf with alpha > 0 as the opacity test.
func FindEdges(buf PixelBuffer) Edges {
	var res [4]scanResult
	for _, dir := range directions {
		res[dir] = scanAlpha(buf, dir)
	}
	return edgesFrom(res)
}

var directions = [...]Direction{Right, Left, Down, Up}

type scanResult struct {
	pos int
	ok  bool
}

func scanAlpha(buf PixelBuffer, dir Direction) scanResult {
	pos, ok := Scan(buf, dir, func(x, y int) bool { return buf.AlphaAt(x, y) > 0 })
	return scanResult{pos, ok}
}

// edgesFrom assembles Edges from results indexed by Direction. The four
// scans see the same pixels, so either all of them hit or none does.
func edgesFrom(res [4]scanResult) Edges {
	for _, r := range res {
		if !r.ok {
			return Edges{Blank: true}
		}
	}
	return Edges{
		StartX: res[Right].pos,
		StartY: res[Down].pos,
		EndX:   res[Left].pos,
		EndY:   res[Up].pos,
	}
}
