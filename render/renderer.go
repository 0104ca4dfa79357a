// Package render draws a scene under an orbit pose into an RGBA frame buffer.
//
// Depth-tested geometry (the ground grid, point batches and the background wall) is rasterized
// by fauxgl into a depth-buffered context covering the viewport. Camera markers, the trajectory line, the axis triad and the
// rotation anchor are drawn on top of it with gg, without a depth test.
package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/fogleman/fauxgl"
	"github.com/fogleman/gg"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"github.com/Bearzeng/stereo-vision/logging"
	"github.com/Bearzeng/stereo-vision/pose"
	"github.com/Bearzeng/stereo-vision/scene"
)

// Projection parameters.
const (
	FieldOfView = 45.0
	Near        = 0.1
	Far         = 10000.0
)

const (
	gridExtent  = 200.0
	gridSpacing = 5.0
	gridHeight  = 2.0
	wallExtent  = 20.0
	axisLength  = 0.3

	pointSize  = 2
	axisWidth  = 3.0
	anchorSize = 3.0
)

// A Renderer owns the frame buffer geometry and the projection.
type Renderer struct {
	width, height int
	viewport      image.Rectangle
	projection    mgl64.Mat4
	logger        logging.Logger
}

// NewRenderer returns a renderer sized width x height.
func NewRenderer(width, height int, logger logging.Logger) *Renderer {
	r := &Renderer{logger: logger}
	r.Resize(width, height)
	return r
}

// Resize sets the frame buffer size. The viewport is the square of side max(width, height)
// centred on the frame buffer, so the shorter axis is cropped rather than stretched.
func (r *Renderer) Resize(width, height int) {
	width, height = max(width, 1), max(height, 1)
	side := max(width, height)
	x0, y0 := (width-side)/2, (height-side)/2
	r.width, r.height = width, height
	r.viewport = image.Rect(x0, y0, x0+side, y0+side)
	r.projection = mgl64.Perspective(mgl64.DegToRad(FieldOfView), 1, Near, Far)
	r.logger.Debugw("resized", "width", width, "height", height, "viewport", r.viewport)
}

// Size is the frame buffer size.
func (r *Renderer) Size() (width, height int) {
	return r.width, r.height
}

// Viewport is the square area the projection maps onto, in frame buffer coordinates. It may
// extend past the frame buffer.
func (r *Renderer) Viewport() image.Rectangle {
	return r.viewport
}

// Projection is the perspective projection matrix.
func (r *Renderer) Projection() mgl64.Mat4 {
	return r.projection
}

// frame holds the per-frame transform.
type frame struct {
	mvp      fauxgl.Matrix
	viewport image.Rectangle
}

func (f frame) clip(v r3.Vector) fauxgl.VectorW {
	return f.mvp.MulPositionW(fauxgl.V(v.X, v.Y, v.Z))
}

// screen maps a clip-space point on the visible side of the near plane to the frame buffer.
func (f frame) screen(c fauxgl.VectorW) (x, y float64) {
	side := float64(f.viewport.Dx())
	return float64(f.viewport.Min.X) + (c.X/c.W+1)*side/2,
		float64(f.viewport.Min.Y) + (1-c.Y/c.W)*side/2
}

// segment clips the world segment a-b to the view volume and maps it to the frame buffer.
func (f frame) segment(a, b r3.Vector) (ax, ay, bx, by float64, ok bool) {
	line := fauxgl.ClipLine(fauxgl.NewLine(fauxgl.Vertex{Output: f.clip(a)}, fauxgl.Vertex{Output: f.clip(b)}))
	if line == nil {
		return 0, 0, 0, 0, false
	}
	ax, ay = f.screen(line.V1.Output)
	bx, by = f.screen(line.V2.Output)
	return ax, ay, bx, by, true
}

// Project maps a world point to frame buffer coordinates under p. ok is false for points behind
// the near plane.
func (r *Renderer) Project(p pose.Pose, v r3.Vector) (x, y float64, ok bool) {
	f := r.frameFor(p)
	c := f.clip(v)
	if !insideNear(c) {
		return 0, 0, false
	}
	x, y = f.screen(c)
	return x, y, true
}

func (r *Renderer) frameFor(p pose.Pose) frame {
	return frame{mvp: toMatrix(r.projection.Mul4(p.ViewMatrix())), viewport: r.viewport}
}

// RenderFrame draws sc under p and returns a new frame buffer. The scene's render context is
// held while its batches and markers are read.
func (r *Renderer) RenderFrame(p pose.Pose, sc *scene.Scene, opts Options) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	bg := opts.background()
	f := r.frameFor(p)

	dc := newDepthContext(f.viewport.Dx(), bg)
	if opts.ShowGrid {
		drawGrid(dc, f)
	}

	var markers []scene.CameraMarker
	sc.View(func(ms []scene.CameraMarker, batches []scene.PointBatch) {
		for _, batch := range batches {
			drawBatch(dc, f, batch)
		}
		if opts.ShowCameras {
			markers = append(markers, ms...)
		}
	})

	if opts.ShowBackgroundWall {
		drawWall(dc, f, opts.BackgroundWallDepth, bg)
	}
	// the viewport may hang over the frame buffer; draw crops it
	draw.Draw(img, f.viewport, dc.ColorBuffer, image.Point{}, draw.Src)

	if opts.ShowCameras {
		gc := gg.NewContextForRGBA(img)
		drawMarkers(gc, f, markers, opts)
		drawAxes(gc, f)
		drawAnchor(gc, f, p.Anchor())
	}
	return img
}

func drawGrid(dc *fauxgl.Context, f frame) {
	var lines []*fauxgl.Line
	for x := -gridExtent; x <= gridExtent+0.001; x += gridSpacing {
		lines = append(lines,
			fauxgl.NewLineForPoints(fauxgl.V(x, gridHeight, -gridExtent), fauxgl.V(x, gridHeight, gridExtent)),
			fauxgl.NewLineForPoints(fauxgl.V(-gridExtent, gridHeight, x), fauxgl.V(gridExtent, gridHeight, x)),
		)
	}
	dc.Shader = fauxgl.NewSolidColorShader(f.mvp, toColor(gridColor))
	dc.DrawLines(lines)
}

func drawBatch(dc *fauxgl.Context, f frame, batch scene.PointBatch) {
	if batch.Len() == 0 {
		return
	}
	triangles := make([]*fauxgl.Triangle, 0, 2*batch.Len())
	for i, pos := range batch.Positions {
		triangles = append(triangles, pointQuad(pos, toColor(gray(batch.Gray[i])))...)
	}
	dc.Shader = newPointShader(f.mvp, f.viewport.Dx())
	dc.DrawTriangles(triangles)
}

func drawWall(dc *fauxgl.Context, f frame, depth float64, bg color.RGBA) {
	a := fauxgl.V(wallExtent, -wallExtent, depth)
	b := fauxgl.V(-wallExtent, -wallExtent, depth)
	c := fauxgl.V(-wallExtent, wallExtent, depth)
	d := fauxgl.V(wallExtent, wallExtent, depth)
	dc.Shader = fauxgl.NewSolidColorShader(f.mvp, toColor(bg))
	dc.DrawTriangles([]*fauxgl.Triangle{
		fauxgl.NewTriangleForPoints(a, b, c),
		fauxgl.NewTriangleForPoints(a, c, d),
	})
}

// overlayLine strokes the world segment a-b on top of everything drawn so far.
func overlayLine(gc *gg.Context, f frame, a, b r3.Vector) {
	ax, ay, bx, by, ok := f.segment(a, b)
	if !ok {
		return
	}
	gc.DrawLine(ax, ay, bx, by)
	gc.Stroke()
}

func drawMarkers(gc *gg.Context, f frame, markers []scene.CameraMarker, opts Options) {
	if len(markers) == 0 {
		return
	}
	gc.SetLineWidth(1)
	for _, m := range markers {
		gc.SetColor(opts.markerColor(m.Keyframe))
		for i := 1; i < len(m.Points); i++ {
			overlayLine(gc, f, m.Points[i-1], m.Points[i])
		}
	}
	// the trajectory keeps the color of the last marker
	for i := 1; i < len(markers); i++ {
		overlayLine(gc, f, markers[i-1].Center(), markers[i].Center())
	}
}

func drawAxes(gc *gg.Context, f frame) {
	gc.SetLineWidth(axisWidth)
	ends := [3]r3.Vector{{X: axisLength}, {Y: axisLength}, {Z: axisLength}}
	for i, end := range ends {
		gc.SetColor(axisColors[i])
		overlayLine(gc, f, r3.Vector{}, end)
	}
}

func drawAnchor(gc *gg.Context, f frame, anchor r3.Vector) {
	c := f.clip(anchor)
	if !insideNear(c) {
		return
	}
	x, y := f.screen(c)
	gc.SetColor(anchorColor)
	gc.DrawRectangle(x-anchorSize/2, y-anchorSize/2, anchorSize, anchorSize)
	gc.Fill()
}
