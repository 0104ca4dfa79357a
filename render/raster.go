package render

import (
	"image/color"
	"math"

	"github.com/fogleman/fauxgl"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

const gridLineWidth = 1

// newDepthContext returns a square fauxgl context of the given side cleared to bg. Geometry is
// drawn without culling since grid quads and point sprites have no consistent winding.
func newDepthContext(side int, bg color.RGBA) *fauxgl.Context {
	dc := fauxgl.NewContext(side, side)
	dc.Cull = fauxgl.CullNone
	dc.AlphaBlend = false
	dc.LineWidth = gridLineWidth
	dc.ClearColorBufferWith(toColor(bg))
	return dc
}

// toMatrix converts a column-major mathgl matrix to fauxgl's row fields.
func toMatrix(m mgl64.Mat4) fauxgl.Matrix {
	return fauxgl.Matrix{
		X00: m.At(0, 0), X01: m.At(0, 1), X02: m.At(0, 2), X03: m.At(0, 3),
		X10: m.At(1, 0), X11: m.At(1, 1), X12: m.At(1, 2), X13: m.At(1, 3),
		X20: m.At(2, 0), X21: m.At(2, 1), X22: m.At(2, 2), X23: m.At(2, 3),
		X30: m.At(3, 0), X31: m.At(3, 1), X32: m.At(3, 2), X33: m.At(3, 3),
	}
}

// toColor converts c so that fauxgl's truncating conversion back to 8 bits yields c again.
func toColor(c color.RGBA) fauxgl.Color {
	channel := func(v uint8) float64 { return (float64(v) + 0.5) / 255 }
	return fauxgl.Color{R: channel(c.R), G: channel(c.G), B: channel(c.B), A: 1}
}

// insideNear reports whether a clip-space point lies on the visible side of the near plane.
func insideNear(c fauxgl.VectorW) bool {
	return c.Z+c.W >= 0
}

// fauxgl has no point primitive. A point is drawn as a quad whose corners share the point's
// position and carry their pixel offset in the texture coordinate; pointShader moves them apart
// in clip space so the quad keeps a fixed size on screen at any depth.
type pointShader struct {
	matrix fauxgl.Matrix
	// clip-space extent of one pixel at w = 1
	pixel float64
}

func newPointShader(matrix fauxgl.Matrix, side int) *pointShader {
	return &pointShader{matrix: matrix, pixel: 2 / float64(side)}
}

func (s *pointShader) Vertex(v fauxgl.Vertex) fauxgl.Vertex {
	v.Output = s.matrix.MulPositionW(v.Position)
	v.Output.X += v.Texture.X * s.pixel * v.Output.W
	v.Output.Y += v.Texture.Y * s.pixel * v.Output.W
	return v
}

func (s *pointShader) Fragment(v fauxgl.Vertex) fauxgl.Color {
	return v.Color.Opaque()
}

// pointQuad returns the two triangles of a pointSize x pointSize sprite at pos.
func pointQuad(pos r3.Vector, c fauxgl.Color) []*fauxgl.Triangle {
	const h = pointSize / 2.0
	p := fauxgl.V(pos.X, pos.Y, pos.Z)
	// corners share a position, so the normal cannot come from the triangle
	normal := fauxgl.V(0, 0, 1)
	corner := func(dx, dy float64) fauxgl.Vertex {
		return fauxgl.Vertex{Position: p, Normal: normal, Texture: fauxgl.V(dx, dy, 0), Color: c}
	}
	a, b, cc, d := corner(-h, -h), corner(h, -h), corner(h, h), corner(-h, h)
	return []*fauxgl.Triangle{fauxgl.NewTriangle(a, b, cc), fauxgl.NewTriangle(a, cc, d)}
}

func gray(v float64) color.RGBA {
	g := uint8(math.Round(v * 255))
	return color.RGBA{R: g, G: g, B: g, A: 255}
}
