// Package pointcloud holds the per-frame point clouds a reconstruction pipeline hands to the
// viewer, along with PCD and LAS readers and writers for them.
package pointcloud

import (
	"github.com/golang/geo/r3"

	"github.com/Bearzeng/stereo-vision/utils"
)

// Sample is a single reconstructed point and its intensity. Intensities are nominally in [0, 1]
// but are stored as read; consumers clamp them.
type Sample struct {
	Position  r3.Vector
	Intensity float64
}

// Cloud is the ordered set of samples reconstructed from one stereo frame.
type Cloud []Sample

// New returns an empty cloud with room for n samples.
func New(n int) Cloud {
	return make(Cloud, 0, n)
}

// Add appends a sample.
func (c *Cloud) Add(pos r3.Vector, intensity float64) {
	*c = append(*c, Sample{Position: pos, Intensity: intensity})
}

// Size is the number of samples.
func (c Cloud) Size() int {
	return len(c)
}

// MetaData summarizes a cloud.
type MetaData struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64

	MinIntensity, MaxIntensity float64
}

// MetaData computes the bounding box and intensity range of the cloud. An empty cloud yields the
// zero value.
func (c Cloud) MetaData() MetaData {
	if len(c) == 0 {
		return MetaData{}
	}
	first := c[0]
	md := MetaData{
		MinX: first.Position.X, MaxX: first.Position.X,
		MinY: first.Position.Y, MaxY: first.Position.Y,
		MinZ: first.Position.Z, MaxZ: first.Position.Z,
		MinIntensity: first.Intensity, MaxIntensity: first.Intensity,
	}
	for _, s := range c[1:] {
		p := s.Position
		md.MinX, md.MaxX = min(md.MinX, p.X), max(md.MaxX, p.X)
		md.MinY, md.MaxY = min(md.MinY, p.Y), max(md.MaxY, p.Y)
		md.MinZ, md.MaxZ = min(md.MinZ, p.Z), max(md.MaxZ, p.Z)
		md.MinIntensity = min(md.MinIntensity, s.Intensity)
		md.MaxIntensity = max(md.MaxIntensity, s.Intensity)
	}
	return md
}

// NormalizeIntensity rescales intensities in place so they span [0, 1]. A cloud with a single
// intensity value is set to 1 everywhere.
func (c Cloud) NormalizeIntensity() {
	if len(c) == 0 {
		return
	}
	md := c.MetaData()
	span := md.MaxIntensity - md.MinIntensity
	for i := range c {
		if span == 0 {
			c[i].Intensity = 1
			continue
		}
		c[i].Intensity = utils.Clamp((c[i].Intensity-md.MinIntensity)/span, 0, 1)
	}
}
