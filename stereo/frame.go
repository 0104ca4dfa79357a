// Package stereo holds the stereo image buffer shared between a capture/processing pipeline and
// the display layer.
//
// A producer installs left and right rasters with SetImage; once both channels of a pair have
// arrived the pair becomes the live frame and subscribers are notified. Consumers take a
// Snapshot, which is a deep copy that never aliases the live buffers.
package stereo

import (
	"image"
	"time"
)

// Channel selects one camera of the stereo pair.
type Channel int

const (
	// Left is the left camera.
	Left Channel = iota
	// Right is the right camera.
	Right
)

func (ch Channel) String() string {
	switch ch {
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "unknown"
}

// Frame is a stereo pair of 8-bit rasters with optional per-pixel disparities. Nil slices mean
// the buffer is absent. Disparity buffers, when present, hold Step*Height values laid out like
// the rasters; values where no disparity was found are left undefined by the producer.
type Frame struct {
	Left  []byte
	Right []byte

	LeftDisparity  []float32
	RightDisparity []float32

	Width  int
	Height int
	Step   int

	Captured  time.Time
	Rectified bool

	// Seq is assigned by the Buffer when the pair is installed. Monotonically increasing.
	Seq uint64
}

// Clone returns a deep copy of the frame. Buffers absent in f stay absent in the copy.
// The copy is built into a fresh value and only returned once every buffer is copied.
func (f Frame) Clone() Frame {
	out := Frame{
		Width:     f.Width,
		Height:    f.Height,
		Step:      f.Step,
		Captured:  f.Captured,
		Rectified: f.Rectified,
		Seq:       f.Seq,
	}
	out.Left = cloneBytes(f.Left)
	out.Right = cloneBytes(f.Right)
	out.LeftDisparity = cloneFloats(f.LeftDisparity)
	out.RightDisparity = cloneFloats(f.RightDisparity)
	return out
}

// Raster returns the raster for the channel, nil if absent.
func (f Frame) Raster(ch Channel) []byte {
	if ch == Right {
		return f.Right
	}
	return f.Left
}

// Disparity returns the disparity buffer for the channel, nil if absent.
func (f Frame) Disparity(ch Channel) []float32 {
	if ch == Right {
		return f.RightDisparity
	}
	return f.LeftDisparity
}

// Gray wraps the channel's raster as an *image.Gray without copying. It returns nil when the
// raster is absent.
func (f Frame) Gray(ch Channel) *image.Gray {
	pix := f.Raster(ch)
	if pix == nil {
		return nil
	}
	return &image.Gray{
		Pix:    pix,
		Stride: f.Step,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// Empty reports whether no raster has been installed.
func (f Frame) Empty() bool {
	return f.Left == nil && f.Right == nil
}

func cloneBytes(src []byte) []byte {
	if src == nil {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}

func cloneFloats(src []float32) []float32 {
	if src == nil {
		return nil
	}
	dst := make([]float32, len(src))
	copy(dst, src)
	return dst
}
