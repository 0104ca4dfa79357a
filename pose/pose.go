// Package pose implements the orbit camera used by the viewer: a zoom distance, two rotation
// angles and a translation, driven by pointer drags and scrolling, plus eased interpolation
// between saved poses.
package pose

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"github.com/Bearzeng/stereo-vision/utils"
)

// Pitch and yaw limits, in degrees, applied by left-button drags.
const (
	MinPitch = 90.0
	MaxPitch = 270.0
	MinYaw   = -180.0
	MaxYaw   = 180.0
)

const (
	dragZoomRate  = 0.01
	scrollZoom    = 1.1
	panRate       = 0.0025
	panLevelBandL = 170.0
	panLevelBandH = 190.0
)

// Button classifies the pointer button held during a drag.
type Button int

const (
	// NoButton is a move without any button held.
	NoButton Button = iota
	// LeftButton rotates.
	LeftButton
	// MiddleButton zooms.
	MiddleButton
	// RightButton pans.
	RightButton
)

func (b Button) String() string {
	switch b {
	case LeftButton:
		return "left"
	case MiddleButton:
		return "middle"
	case RightButton:
		return "right"
	case NoButton:
		return "none"
	}
	return "unknown"
}

// Pose is the orbit camera state. Rotations are in degrees. The camera-to-world transform is
// translate(0,0,Zoom) * rotX(RotX) * rotY(RotY) * translate(TX,TY,TZ).
type Pose struct {
	Zoom float64 `json:"zoom"`
	RotX float64 `json:"rot_x"`
	RotY float64 `json:"rot_y"`
	TX   float64 `json:"tx"`
	TY   float64 `json:"ty"`
	TZ   float64 `json:"tz"`
}

// Default is the pose a fresh viewer starts in.
func Default() Pose {
	return Pose{Zoom: -1.5, RotX: 180, RotY: 0, TX: 0, TY: 0, TZ: -1.5}
}

func (p Pose) String() string {
	return fmt.Sprintf("zoom=%.3f rot=(%.1f, %.1f) t=(%.3f, %.3f, %.3f)", p.Zoom, p.RotX, p.RotY, p.TX, p.TY, p.TZ)
}

// Translation returns (TX, TY, TZ).
func (p Pose) Translation() r3.Vector {
	return r3.Vector{X: p.TX, Y: p.TY, Z: p.TZ}
}

// Anchor is the point the camera orbits around: the negated translation.
func (p Pose) Anchor() r3.Vector {
	return p.Translation().Mul(-1)
}

// ViewMatrix is the modelview matrix for this pose.
func (p Pose) ViewMatrix() mgl64.Mat4 {
	return mgl64.Translate3D(0, 0, p.Zoom).
		Mul4(mgl64.HomogRotate3DX(utils.DegToRad(p.RotX))).
		Mul4(mgl64.HomogRotate3DY(utils.DegToRad(p.RotY))).
		Mul4(mgl64.Translate3D(p.TX, p.TY, p.TZ))
}

// ApplyDrag updates the pose for a pointer drag of (dx, dy) with button b held.
//
// Middle zooms by (1 + 0.01|dy|), growing for dy > 0. Left adds dy to pitch and dx to yaw and
// clamps both. Right pans: the screen delta is rotated back through the current yaw and pitch
// and added to the translation, scaled by 0.0025*zoom. For the pan direction only, pitch is
// snapped to 90 below 170 and to 270 above 190; the stored pitch is not changed.
func (p *Pose) ApplyDrag(dx, dy float64, b Button) {
	switch b {
	case MiddleButton:
		factor := 1 + dragZoomRate*math.Abs(dy)
		if dy > 0 {
			p.Zoom *= factor
		} else {
			p.Zoom /= factor
		}
	case LeftButton:
		p.RotX = utils.Clamp(p.RotX+dy, MinPitch, MaxPitch)
		p.RotY = utils.Clamp(p.RotY+dx, MinYaw, MaxYaw)
	case RightButton:
		v := p.panDirection(dx, dy)
		scale := panRate * p.Zoom
		p.TX += scale * v.X()
		p.TY += scale * v.Y()
		p.TZ += scale * v.Z()
	case NoButton:
	}
}

func (p Pose) panDirection(dx, dy float64) mgl64.Vec3 {
	pitch := p.RotX
	if pitch < panLevelBandL {
		pitch = 90
	}
	if pitch > panLevelBandH {
		pitch = 270
	}
	rot := mgl64.Rotate3DY(-utils.DegToRad(p.RotY)).Mul3(mgl64.Rotate3DX(-utils.DegToRad(pitch)))
	return rot.Mul3x1(mgl64.Vec3{dx, dy, 0})
}

// ApplyScroll zooms by a factor of 1.1: multiplied for delta > 0, divided otherwise.
func (p *Pose) ApplyScroll(delta float64) {
	if delta > 0 {
		p.Zoom *= scrollZoom
	} else {
		p.Zoom /= scrollZoom
	}
}

// Ease maps t in [0, 1] onto a sine ease-in/ease-out curve with Ease(0) = 0 and Ease(1) = 1.
func Ease(t float64) float64 {
	switch {
	case t <= 0:
		return 0
	case t >= 1:
		return 1
	}
	return (1 + math.Sin(-math.Pi/2+t*math.Pi)) / 2
}

// Interpolate blends every component of a and b with the eased parameter Ease(t).
func Interpolate(a, b Pose, t float64) Pose {
	e := Ease(t)
	if e == 1 {
		return b
	}
	lerp := func(x, y float64) float64 { return x + (y-x)*e }
	return Pose{
		Zoom: lerp(a.Zoom, b.Zoom),
		RotX: lerp(a.RotX, b.RotX),
		RotY: lerp(a.RotY, b.RotY),
		TX:   lerp(a.TX, b.TX),
		TY:   lerp(a.TY, b.TY),
		TZ:   lerp(a.TZ, b.TZ),
	}
}
