// Package scene accumulates what the viewer draws: one marker per reconstructed camera pose and
// cached point batches built from per-frame point clouds.
package scene

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/Bearzeng/stereo-vision/logging"
	"github.com/Bearzeng/stereo-vision/pointcloud"
	"github.com/Bearzeng/stereo-vision/utils"
)

// ErrBadPoseMatrix is returned when a camera pose is not a 4x4 matrix.
var ErrBadPoseMatrix = errors.New("camera pose must be a 4x4 matrix")

// MarkerPoints is the number of vertices in a camera marker.
const MarkerPoints = 10

// TrajectoryVertex is the marker vertex (the camera centre) the trajectory line runs through.
const TrajectoryVertex = 5

// CameraMarker is a camera drawn as a frustum rectangle with lines back to its centre. The
// points are drawn as one line strip in order.
type CameraMarker struct {
	Points   [MarkerPoints]r3.Vector
	Keyframe bool
}

// Center is the camera centre.
func (m CameraMarker) Center() r3.Vector {
	return m.Points[TrajectoryVertex]
}

// PointBatch is an immutable drawable built from one point cloud. Gray holds one intensity in
// [0, 1] per position.
type PointBatch struct {
	ID        uint32
	Positions []r3.Vector
	Gray      []float64
}

// Len is the number of points in the batch.
func (b PointBatch) Len() int {
	return len(b.Positions)
}

// Options configures a Scene.
type Options struct {
	// MaxBatches caps the number of live point batches, evicting the oldest first. Zero keeps
	// every batch, which accumulates the full reconstructed map.
	MaxBatches int
}

// Scene is the set of camera markers and point batches shown by the viewer.
type Scene struct {
	rc      *RenderContext
	opts    Options
	logger  logging.Logger
	markers []CameraMarker
	batches []PointBatch
	nextID  uint32
}

// New returns an empty scene whose resources are guarded by rc. A nil rc gets a private context.
func New(rc *RenderContext, opts Options, logger logging.Logger) *Scene {
	if rc == nil {
		rc = &RenderContext{}
	}
	return &Scene{rc: rc, opts: opts, logger: logger, nextID: 1}
}

// Context is the render context guarding this scene.
func (s *Scene) Context() *RenderContext {
	return s.rc
}

// MarkerTemplate returns the local marker geometry for a camera at the origin looking down +Z:
// a square of half-size 0.5*scale at depth scale, with lines through the origin.
func MarkerTemplate(scale float64) [MarkerPoints]r3.Vector {
	h := 0.5 * scale
	return [MarkerPoints]r3.Vector{
		{X: -h, Y: -h, Z: scale},
		{X: h, Y: -h, Z: scale},
		{X: h, Y: h, Z: scale},
		{X: -h, Y: h, Z: scale},
		{X: -h, Y: -h, Z: scale},
		{X: 0, Y: 0, Z: 0},
		{X: h, Y: -h, Z: scale},
		{X: h, Y: h, Z: scale},
		{X: 0, Y: 0, Z: 0},
		{X: -h, Y: h, Z: scale},
	}
}

// AddCameraMarker transforms the marker template by the 4x4 homogeneous camera pose and appends
// the result.
func (s *Scene) AddCameraMarker(pose mat.Matrix, scale float64, keyframe bool) error {
	if pose == nil {
		return ErrBadPoseMatrix
	}
	if r, c := pose.Dims(); r != 4 || c != 4 {
		return errors.Wrapf(ErrBadPoseMatrix, "got %dx%d", r, c)
	}

	template := MarkerTemplate(scale)
	local := mat.NewDense(4, MarkerPoints, nil)
	for i, p := range template {
		local.Set(0, i, p.X)
		local.Set(1, i, p.Y)
		local.Set(2, i, p.Z)
		local.Set(3, i, 1)
	}
	var world mat.Dense
	world.Mul(pose, local)

	marker := CameraMarker{Keyframe: keyframe}
	for i := range marker.Points {
		marker.Points[i] = r3.Vector{X: world.At(0, i), Y: world.At(1, i), Z: world.At(2, i)}
	}

	done := s.rc.MakeCurrent()
	defer done()
	s.markers = append(s.markers, marker)
	s.logger.Debugw("added camera marker", "index", len(s.markers)-1, "keyframe", keyframe, "center", marker.Center())
	return nil
}

// AddPointCloudFrames ingests the ordered list of every point cloud frame so far. Earlier frames
// are assumed cached by previous calls: when more than one frame is given, the newest cached
// batch is evicted and batches are rebuilt for the last two frames; a single frame gets one batch.
func (s *Scene) AddPointCloudFrames(frames []pointcloud.Cloud) {
	if len(frames) == 0 {
		return
	}

	done := s.rc.MakeCurrent()
	defer done()

	if len(frames) > 1 && len(s.batches) > 0 {
		evicted := s.batches[len(s.batches)-1]
		s.batches = s.batches[:len(s.batches)-1]
		s.logger.Debugw("evicted newest point batch", "id", evicted.ID)
	}

	start := max(len(frames)-2, 0)
	for _, frame := range frames[start:] {
		s.batches = append(s.batches, s.buildBatch(frame))
	}

	if s.opts.MaxBatches > 0 && len(s.batches) > s.opts.MaxBatches {
		drop := len(s.batches) - s.opts.MaxBatches
		s.logger.Debugw("evicting oldest point batches", "count", drop)
		s.batches = append([]PointBatch(nil), s.batches[drop:]...)
	}
}

func (s *Scene) buildBatch(frame pointcloud.Cloud) PointBatch {
	batch := PointBatch{
		ID:        s.nextID,
		Positions: make([]r3.Vector, len(frame)),
		Gray:      make([]float64, len(frame)),
	}
	s.nextID++
	for i, sample := range frame {
		batch.Positions[i] = sample.Position
		batch.Gray[i] = utils.Clamp(sample.Intensity, 0, 1)
	}
	return batch
}

// Markers returns a copy of the markers in insertion order.
func (s *Scene) Markers() []CameraMarker {
	done := s.rc.MakeCurrent()
	defer done()
	return append([]CameraMarker(nil), s.markers...)
}

// Batches returns the live point batches, oldest first. Batches are immutable and shared.
func (s *Scene) Batches() []PointBatch {
	done := s.rc.MakeCurrent()
	defer done()
	return append([]PointBatch(nil), s.batches...)
}

// Trajectory is the camera centre of every marker in insertion order.
func (s *Scene) Trajectory() []r3.Vector {
	done := s.rc.MakeCurrent()
	defer done()
	return lo.Map(s.markers, func(m CameraMarker, _ int) r3.Vector { return m.Center() })
}

// View runs fn with the context current. fn must not call back into the scene and must not
// retain the slices it is given.
func (s *Scene) View(fn func(markers []CameraMarker, batches []PointBatch)) {
	done := s.rc.MakeCurrent()
	defer done()
	fn(s.markers, s.batches)
}

// Clear drops every marker and batch.
func (s *Scene) Clear() {
	done := s.rc.MakeCurrent()
	defer done()
	s.markers = nil
	s.batches = nil
	s.logger.Debug("cleared scene")
}
