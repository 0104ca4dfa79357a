// Package trajectory reads and writes camera trajectories in the KITTI odometry pose format: one
// pose per line, as the 12 row-major values of the top 3x4 block of a homogeneous transform.
package trajectory

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"gonum.org/v1/gonum/mat"
)

const valuesPerPose = 12

// ReadKITTI parses every pose in r into a 4x4 homogeneous matrix. Blank lines and lines starting
// with # are skipped.
func ReadKITTI(r io.Reader) ([]*mat.Dense, error) {
	var poses []*mat.Dense
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != valuesPerPose {
			return nil, errors.Errorf("line %d: expected %d values, got %d", lineNum, valuesPerPose, len(fields))
		}
		data := make([]float64, 16)
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNum)
			}
			data[i] = v
		}
		data[15] = 1
		poses = append(poses, mat.NewDense(4, 4, data))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return poses, nil
}

// ReadKITTIFile reads the poses in the named file.
func ReadKITTIFile(fn string) ([]*mat.Dense, error) {
	//nolint:gosec
	f, err := os.Open(filepath.Clean(fn))
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	poses, err := ReadKITTI(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", fn)
	}
	return poses, nil
}

// WriteKITTI writes the top 3x4 block of every pose, one per line.
func WriteKITTI(w io.Writer, poses []mat.Matrix) error {
	bw := bufio.NewWriter(w)
	for i, pose := range poses {
		if r, c := pose.Dims(); r < 3 || c != 4 {
			return errors.Errorf("pose %d is %dx%d, need at least 3x4", i, r, c)
		}
		values := make([]string, 0, valuesPerPose)
		for row := 0; row < 3; row++ {
			for col := 0; col < 4; col++ {
				values = append(values, strconv.FormatFloat(pose.At(row, col), 'g', -1, 64))
			}
		}
		if _, err := fmt.Fprintln(bw, strings.Join(values, " ")); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteKITTIFile writes the poses to the named file.
func WriteKITTIFile(fn string, poses []mat.Matrix) (err error) {
	f, err := os.Create(filepath.Clean(fn))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return WriteKITTI(f, poses)
}

// IsKeyframe reports whether pose i of a trajectory is a keyframe when every n-th pose is one.
// n <= 1 makes every pose a keyframe.
func IsKeyframe(i, n int) bool {
	return n <= 1 || i%n == 0
}
