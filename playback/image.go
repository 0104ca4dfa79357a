package playback

import (
	"image"
	"image/draw"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lmittmann/ppm"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"github.com/xfmoulet/qoi"
	"go.uber.org/multierr"
	"gopkg.in/src-d/go-billy.v4"
)

// Format is the encoding of recorded frames.
type Format string

// Supported recording formats.
const (
	FormatPNG Format = "png"
	FormatQOI Format = "qoi"
	FormatPPM Format = "ppm"
)

// ParseFormat returns the format named by s, defaulting to png when s is empty.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatPNG, nil
	case FormatPNG, FormatQOI, FormatPPM:
		return f, nil
	}
	return "", errors.Errorf("unknown image format %q", s)
}

// Ext is the file extension for the format, without the dot.
func (f Format) Ext() string {
	return string(f)
}

// Encode writes img to w in this format.
func (f Format) Encode(w io.Writer, img image.Image) error {
	switch f {
	case FormatPNG:
		return imaging.Encode(w, img, imaging.PNG)
	case FormatQOI:
		return qoi.Encode(w, img)
	case FormatPPM:
		// the ppm encoder only takes RGBA images
		return ppm.Encode(w, asRGBA(img))
	}
	return errors.Errorf("unknown image format %q", string(f))
}

// Resampler selects the filter used for the reduced-size frames.
type Resampler string

// Supported resamplers.
const (
	Lanczos Resampler = "lanczos"
	Bicubic Resampler = "bicubic"
)

// ParseResampler returns the resampler named by s, defaulting to lanczos when s is empty.
func ParseResampler(s string) (Resampler, error) {
	switch r := Resampler(strings.ToLower(s)); r {
	case "":
		return Lanczos, nil
	case Lanczos, Bicubic:
		return r, nil
	}
	return "", errors.Errorf("unknown resampler %q", s)
}

// Resize scales img to exactly width x height, ignoring its aspect ratio.
func (r Resampler) Resize(img image.Image, width, height int) image.Image {
	if r == Bicubic {
		return resize.Resize(uint(width), uint(height), img, resize.Bicubic)
	}
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

func asRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	return rgba
}

func writeImage(fs billy.Filesystem, name string, img image.Image, format Format) (err error) {
	f, err := fs.Create(name)
	if err != nil {
		return errors.Wrapf(err, "creating %q", name)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return format.Encode(f, img)
}
