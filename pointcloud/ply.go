package pointcloud

import (
	"fmt"
	"io"

	"github.com/chenzhekl/goply"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

const plyVertexElement = "vertex"

// ReadPLY reads the vertex element of an ascii ply stream. Vertices need x, y and z properties;
// intensity comes from an intensity property, or from the luminance of red/green/blue, and
// defaults to 1. Faces and other elements are ignored.
func ReadPLY(in io.Reader) (cloud Cloud, err error) {
	// the ply parser panics on malformed input
	defer func() {
		if r := recover(); r != nil {
			cloud = nil
			err = errors.Errorf("malformed ply: %v", r)
		}
	}()

	ply := goply.New(in)
	vertices := ply.Elements(plyVertexElement)
	cloud = New(len(vertices))
	for i, v := range vertices {
		var pos r3.Vector
		var ok bool
		if pos.X, ok = plyNumber(v.Property("x")); !ok {
			return nil, errors.Errorf("vertex %d: missing x", i)
		}
		if pos.Y, ok = plyNumber(v.Property("y")); !ok {
			return nil, errors.Errorf("vertex %d: missing y", i)
		}
		if pos.Z, ok = plyNumber(v.Property("z")); !ok {
			return nil, errors.Errorf("vertex %d: missing z", i)
		}
		cloud.Add(pos, plyIntensity(v))
	}
	return cloud, nil
}

func plyIntensity(v goply.PlyElement) float64 {
	if intensity, ok := plyNumber(v.Property("intensity")); ok {
		return intensity
	}
	r, okR := plyNumber(v.Property("red"))
	g, okG := plyNumber(v.Property("green"))
	b, okB := plyNumber(v.Property("blue"))
	if okR && okG && okB {
		return luminance(uint32(r)&0xFF<<16 | uint32(g)&0xFF<<8 | uint32(b)&0xFF)
	}
	return 1
}

func plyNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case int8:
		return float64(n), true
	case uint8:
		return float64(n), true
	case int16:
		return float64(n), true
	case uint16:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}

// WritePLY writes the cloud as an ascii ply with x y z intensity float properties.
func WritePLY(cloud Cloud, out io.Writer) error {
	if _, err := fmt.Fprintf(out,
		"ply\nformat ascii 1.0\nelement vertex %d\n"+
			"property float x\nproperty float y\nproperty float z\nproperty float intensity\nend_header\n",
		cloud.Size()); err != nil {
		return err
	}
	for _, s := range cloud {
		if _, err := fmt.Fprintf(out, "%g %g %g %g\n",
			float32(s.Position.X), float32(s.Position.Y), float32(s.Position.Z), float32(s.Intensity)); err != nil {
			return err
		}
	}
	return nil
}
