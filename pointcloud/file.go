package pointcloud

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/Bearzeng/stereo-vision/logging"
)

// NewFromFile returns a cloud read in from a .pcd, .ply or .las file.
func NewFromFile(fn string, logger logging.Logger) (Cloud, error) {
	var read func(io.Reader) (Cloud, error)
	switch strings.ToLower(filepath.Ext(fn)) {
	case ".las":
		return ReadLAS(fn, logger)
	case ".pcd":
		read = ReadPCD
	case ".ply":
		read = ReadPLY
	default:
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
	f, err := os.Open(filepath.Clean(fn))
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	cloud, err := read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", fn)
	}
	return cloud, nil
}

// WriteToFile writes the cloud to a .pcd (binary), .ply (ascii) or .las file.
func WriteToFile(cloud Cloud, fn string) (err error) {
	var write func(io.Writer) error
	switch strings.ToLower(filepath.Ext(fn)) {
	case ".las":
		return WriteLAS(cloud, fn)
	case ".pcd":
		write = func(w io.Writer) error { return WritePCD(cloud, w, PCDBinary) }
	case ".ply":
		write = func(w io.Writer) error { return WritePLY(cloud, w) }
	default:
		return errors.Errorf("do not know how to write file %q", fn)
	}
	f, err := os.Create(filepath.Clean(fn))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return write(f)
}

// NewFromFiles reads one cloud per file, in order.
func NewFromFiles(fns []string, logger logging.Logger) ([]Cloud, error) {
	clouds := make([]Cloud, 0, len(fns))
	for _, fn := range fns {
		cloud, err := NewFromFile(fn, logger)
		if err != nil {
			return nil, err
		}
		clouds = append(clouds, cloud)
	}
	return clouds, nil
}
