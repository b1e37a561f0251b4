package capture

import (
	"image"
	"image/draw"
	"time"
)

// PixelFormat describes the byte layout of Frame.Data. In every supported
// format red is the first byte of each pixel.
type PixelFormat int

const (
	// FormatRGB24 stores three bytes per pixel: R, G, B.
	FormatRGB24 PixelFormat = iota
	// FormatRGBA32 stores four bytes per pixel: R, G, B, A.
	FormatRGBA32
)

// BytesPerPixel returns the pixel stride of the format.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGBA32:
		return 4
	default:
		return 3
	}
}

// String returns a human-readable name for the format.
func (f PixelFormat) String() string {
	switch f {
	case FormatRGB24:
		return "rgb24"
	case FormatRGBA32:
		return "rgba32"
	default:
		return "unknown"
	}
}

// Frame is one decoded video frame. Frames are handed to the intensity
// extractor and dropped after a single extraction.
type Frame struct {
	// Seq is the monotonic sequence number within one device acquisition.
	Seq uint64
	// Timestamp is when the frame was captured or synthesised.
	Timestamp time.Time
	// Width and Height in pixels. Zero means the device did not report them.
	Width  int
	Height int
	// Format describes Data's layout; rows are packed with no padding.
	Format PixelFormat
	Data   []byte
}

// FrameFromImage converts any decoded image into a packed RGBA32 frame.
func FrameFromImage(img image.Image) Frame {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return Frame{
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: FormatRGBA32,
		Data:   rgba.Pix,
	}
}
