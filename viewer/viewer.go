// Package viewer ties the orbit pose, the scene and the renderer together behind a pointer event
// API, standing in for an interactive 3D widget.
package viewer

import (
	"image"
	"image/draw"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/Bearzeng/stereo-vision/logging"
	"github.com/Bearzeng/stereo-vision/pointcloud"
	"github.com/Bearzeng/stereo-vision/pose"
	"github.com/Bearzeng/stereo-vision/render"
	"github.com/Bearzeng/stereo-vision/scene"
)

// Config configures a Viewer.
type Config struct {
	Width, Height int
	Render        render.Options
	Scene         scene.Options
}

// Viewer is a headless 3D view of a reconstruction. Pointer events change the pose; Redraw
// renders the scene under it.
type Viewer struct {
	mu       sync.Mutex
	pose     pose.Pose
	tracker  pose.DragTracker
	button   pose.Button
	opts     render.Options
	scene    *scene.Scene
	renderer *render.Renderer
	frame    *image.RGBA
	dirty    bool
	logger   logging.Logger
}

// New returns a viewer in the default pose with an empty scene.
func New(cfg Config, logger logging.Logger) *Viewer {
	rc := &scene.RenderContext{}
	return &Viewer{
		pose:     pose.Default(),
		opts:     cfg.Render,
		scene:    scene.New(rc, cfg.Scene, logger.Sublogger("scene")),
		renderer: render.NewRenderer(cfg.Width, cfg.Height, logger.Sublogger("render")),
		dirty:    true,
		logger:   logger,
	}
}

// Scene is the scene drawn by the viewer.
func (v *Viewer) Scene() *scene.Scene {
	return v.scene
}

// Press starts a drag with button b at (x, y).
func (v *Viewer) Press(x, y float64, b pose.Button) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tracker.Press(x, y)
	v.button = b
}

// Move moves the pointer to (x, y), applying a drag with the held button, if any.
func (v *Viewer) Move(x, y float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	dx, dy := v.tracker.Move(x, y)
	if v.button == pose.NoButton {
		return
	}
	v.pose.ApplyDrag(dx, dy, v.button)
	v.dirty = true
}

// Release ends a drag.
func (v *Viewer) Release() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.button = pose.NoButton
}

// Wheel zooms out for delta > 0 and in otherwise.
func (v *Viewer) Wheel(delta float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pose.ApplyScroll(delta)
	v.dirty = true
}

// Pose is the current pose.
func (v *Viewer) Pose() pose.Pose {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pose
}

// SetPose replaces the current pose.
func (v *Viewer) SetPose(p pose.Pose) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pose = p
	v.dirty = true
}

// Options are the current draw toggles.
func (v *Viewer) Options() render.Options {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.opts
}

// SetOptions replaces the draw toggles.
func (v *Viewer) SetOptions(opts render.Options) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.opts = opts
	v.dirty = true
}

// Resize changes the frame buffer size.
func (v *Viewer) Resize(width, height int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.renderer.Resize(width, height)
	v.dirty = true
}

// AddCamera adds a marker for a camera at the 4x4 pose.
func (v *Viewer) AddCamera(cameraPose mat.Matrix, scale float64, keyframe bool) error {
	if err := v.scene.AddCameraMarker(cameraPose, scale, keyframe); err != nil {
		return err
	}
	v.markDirty()
	return nil
}

// AddPoints ingests the point clouds of every frame so far.
func (v *Viewer) AddPoints(frames []pointcloud.Cloud) {
	v.scene.AddPointCloudFrames(frames)
	v.markDirty()
}

// Clear empties the scene.
func (v *Viewer) Clear() {
	v.scene.Clear()
	v.markDirty()
}

func (v *Viewer) markDirty() {
	v.mu.Lock()
	v.dirty = true
	v.mu.Unlock()
}

// Redraw renders the scene under the current pose and returns the new frame buffer. The
// returned image must not be modified.
func (v *Viewer) Redraw() *image.RGBA {
	v.mu.Lock()
	p, opts := v.pose, v.opts
	v.mu.Unlock()

	img := v.renderer.RenderFrame(p, v.scene, opts)

	v.mu.Lock()
	v.frame = img
	v.dirty = false
	v.mu.Unlock()
	return img
}

// GrabFrameBuffer returns a copy of the last rendered frame, redrawing first if anything changed
// since.
func (v *Viewer) GrabFrameBuffer() *image.RGBA {
	v.mu.Lock()
	frame, dirty := v.frame, v.dirty
	v.mu.Unlock()
	if frame == nil || dirty {
		frame = v.Redraw()
	}
	out := image.NewRGBA(frame.Bounds())
	draw.Draw(out, out.Bounds(), frame, frame.Bounds().Min, draw.Src)
	return out
}
