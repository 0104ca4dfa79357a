package trajectory

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

const twoPoses = `1 0 0 0 0 1 0 0 0 0 1 0
# second pose

1 0 0 0.5 0 1 0 -0.25 0 0 1 2.75
`

func TestReadKITTI(t *testing.T) {
	poses, err := ReadKITTI(strings.NewReader(twoPoses))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, poses, test.ShouldHaveLength, 2)

	id := mat.NewDiagDense(4, []float64{1, 1, 1, 1})
	test.That(t, mat.Equal(poses[0], id), test.ShouldBeTrue)
	test.That(t, poses[1].At(0, 3), test.ShouldEqual, 0.5)
	test.That(t, poses[1].At(1, 3), test.ShouldEqual, -0.25)
	test.That(t, poses[1].At(2, 3), test.ShouldEqual, 2.75)
	test.That(t, poses[1].At(3, 3), test.ShouldEqual, 1.0)
	test.That(t, poses[1].At(3, 0), test.ShouldEqual, 0.0)
}

func TestReadKITTIErrors(t *testing.T) {
	_, err := ReadKITTI(strings.NewReader("1 2 3\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "line 1")

	_, err = ReadKITTI(strings.NewReader("1 0 0 0 0 1 0 0 0 0 1 0\n1 0 0 0 0 1 0 0 0 0 1 x\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "line 2")

	poses, err := ReadKITTI(strings.NewReader(""))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, poses, test.ShouldBeEmpty)
}

func TestKITTIRoundTrip(t *testing.T) {
	poses, err := ReadKITTI(strings.NewReader(twoPoses))
	test.That(t, err, test.ShouldBeNil)

	var buf bytes.Buffer
	test.That(t, WriteKITTI(&buf, []mat.Matrix{poses[0], poses[1]}), test.ShouldBeNil)
	test.That(t, strings.Split(strings.TrimSpace(buf.String()), "\n")[1], test.ShouldEqual, "1 0 0 0.5 0 1 0 -0.25 0 0 1 2.75")

	fn := filepath.Join(t.TempDir(), "poses.txt")
	test.That(t, WriteKITTIFile(fn, []mat.Matrix{poses[0], poses[1]}), test.ShouldBeNil)
	again, err := ReadKITTIFile(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again, test.ShouldHaveLength, 2)
	test.That(t, mat.Equal(again[1], poses[1]), test.ShouldBeTrue)

	test.That(t, WriteKITTI(&buf, []mat.Matrix{mat.NewDense(2, 4, nil)}), test.ShouldNotBeNil)
	_, err = ReadKITTIFile(filepath.Join(t.TempDir(), "missing.txt"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestIsKeyframe(t *testing.T) {
	test.That(t, IsKeyframe(0, 5), test.ShouldBeTrue)
	test.That(t, IsKeyframe(3, 5), test.ShouldBeFalse)
	test.That(t, IsKeyframe(10, 5), test.ShouldBeTrue)
	test.That(t, IsKeyframe(3, 0), test.ShouldBeTrue)
	test.That(t, IsKeyframe(3, 1), test.ShouldBeTrue)
}
