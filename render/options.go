package render

import (
	"image/color"
)

// Colors used when Options leaves them unset.
var (
	DefaultKeyframeColor = color.RGBA{R: 255, A: 255}
	DefaultFrameColor    = color.RGBA{R: 255, G: 255, A: 255}

	gridColor   = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	anchorColor = color.RGBA{R: 255, A: 255}
	axisColors  = [3]color.RGBA{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
	}
)

// Options selects which parts of the scene are drawn.
type Options struct {
	ShowGrid            bool
	ShowCameras         bool
	ShowBackgroundWall  bool
	BackgroundWallDepth float64
	WhiteBackground     bool

	// KeyframeColor and FrameColor color camera markers; nil means the defaults.
	KeyframeColor color.Color
	FrameColor    color.Color
}

// DefaultOptions is what a fresh viewer draws with.
func DefaultOptions() Options {
	return Options{
		ShowGrid:            true,
		ShowCameras:         true,
		BackgroundWallDepth: 1,
	}
}

func (o Options) background() color.RGBA {
	if o.WhiteBackground {
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return color.RGBA{A: 255}
}

func (o Options) markerColor(keyframe bool) color.Color {
	if keyframe {
		if o.KeyframeColor != nil {
			return o.KeyframeColor
		}
		return DefaultKeyframeColor
	}
	if o.FrameColor != nil {
		return o.FrameColor
	}
	return DefaultFrameColor
}
