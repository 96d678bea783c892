package spritestrip

import (
	"errors"
	"fmt"
	"image"
)

var (
	ErrDecode         = errors.New("spritestrip: decode failed")
	ErrDegenerateCrop = errors.New("spritestrip: degenerate crop")
	ErrGeometry       = errors.New("spritestrip: crop outside image bounds")
	ErrNoFrames       = errors.New("spritestrip: no frames")
)

// DecodeError reports a source animation or frame that could not be decoded.
// Frame is -1 when the container itself is unreadable.
type DecodeError struct {
	Frame int
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Frame < 0 {
		return fmt.Sprintf("decode: %v", e.Err)
	}
	return fmt.Sprintf("decode frame %d: %v", e.Frame, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// DegenerateCropError is returned when the reduced crop rectangle has no area,
// e.g. every frame is blank or a blank frame pulls the end edges to zero.
type DegenerateCropError struct {
	Rect image.Rectangle
}

func (e *DegenerateCropError) Error() string {
	return fmt.Sprintf("degenerate crop %v (width %d, height %d)", e.Rect, e.Rect.Dx(), e.Rect.Dy())
}

func (e *DegenerateCropError) Is(target error) bool { return target == ErrDegenerateCrop }

// GeometryError is returned by Crop when the rectangle is not inside the image.
type GeometryError struct {
	Rect   image.Rectangle
	Bounds image.Rectangle
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("crop %v exceeds image bounds %v", e.Rect, e.Bounds)
}

func (e *GeometryError) Is(target error) bool { return target == ErrGeometry }
