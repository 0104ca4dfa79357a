package pointcloud

import (
	"math"

	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/Bearzeng/stereo-vision/logging"
	"github.com/Bearzeng/stereo-vision/utils"
)

// LAS stores coordinates as scaled int32s; outside this range positions lose precision.
const (
	maxPreciseFloat64 = float64(1 << 31)
	minPreciseFloat64 = -maxPreciseFloat64
)

const lasIntensityScale = math.MaxUint16

// ReadLAS returns a cloud read from a LAS file. Point intensity is mapped from [0, 65535] onto
// [0, 1]. Points that may have lost precision are reported but are not an error.
func ReadLAS(fn string, logger logging.Logger) (Cloud, error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(lf.Close)

	cloud := New(lf.Header.NumberPoints)
	warned := false
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, err
		}
		data := p.PointData()

		x, y, z := data.X, data.Y, data.Z
		if !warned && (x < minPreciseFloat64 || x > maxPreciseFloat64 ||
			y < minPreciseFloat64 || y > maxPreciseFloat64 ||
			z < minPreciseFloat64 || z > maxPreciseFloat64) {
			warned = true
			logger.Warnw("potential floating point lossiness for LAS point", "file", fn, "index", i)
		}
		cloud.Add(r3.Vector{X: x, Y: y, Z: z}, float64(data.Intensity)/lasIntensityScale)
	}
	return cloud, nil
}

// WriteLAS writes the cloud out to a LAS file using point format 0. Intensities are clamped to
// [0, 1] and scaled to [0, 65535].
func WriteLAS(cloud Cloud, fn string) (err error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return
	}
	defer func() {
		cerr := lf.Close()
		err = multierr.Combine(err, cerr)
	}()

	if err = lf.AddHeader(lidario.LasHeader{
		PointFormatID: 0,
	}); err != nil {
		return
	}

	for _, s := range cloud {
		pr0 := &lidario.PointRecord0{
			X:         s.Position.X,
			Y:         s.Position.Y,
			Z:         s.Position.Z,
			Intensity: uint16(math.Round(utils.Clamp(s.Intensity, 0, 1) * lasIntensityScale)),
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3),
			},
			ClassBitField: lidario.ClassificationBitField{
				Value: 0,
			},
			PointSourceID: 1,
		}
		if err = lf.AddLasPoint(pr0); err != nil {
			return
		}
	}
	return nil
}
