package pointcloud

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	lzf "github.com/zhuyie/golzf"
	"go.viam.com/test"

	"github.com/Bearzeng/stereo-vision/logging"
)

func makeCloud() Cloud {
	cloud := New(3)
	cloud.Add(r3.Vector{X: -1, Y: -2, Z: 5}, 0.25)
	cloud.Add(r3.Vector{X: 582, Y: 12, Z: 0}, 1)
	cloud.Add(r3.Vector{X: 1.5, Y: -3.25, Z: 5.125}, 0)
	return cloud
}

func TestMetaData(t *testing.T) {
	test.That(t, Cloud{}.MetaData(), test.ShouldResemble, MetaData{})

	md := makeCloud().MetaData()
	test.That(t, md.MinX, test.ShouldEqual, -1.0)
	test.That(t, md.MaxX, test.ShouldEqual, 582.0)
	test.That(t, md.MinY, test.ShouldEqual, -3.25)
	test.That(t, md.MaxZ, test.ShouldEqual, 5.125)
	test.That(t, md.MinIntensity, test.ShouldEqual, 0.0)
	test.That(t, md.MaxIntensity, test.ShouldEqual, 1.0)
}

func TestNormalizeIntensity(t *testing.T) {
	cloud := Cloud{{Intensity: 10}, {Intensity: 20}, {Intensity: 30}}
	cloud.NormalizeIntensity()
	test.That(t, cloud[0].Intensity, test.ShouldEqual, 0.0)
	test.That(t, cloud[1].Intensity, test.ShouldEqual, 0.5)
	test.That(t, cloud[2].Intensity, test.ShouldEqual, 1.0)

	flat := Cloud{{Intensity: 4}, {Intensity: 4}}
	flat.NormalizeIntensity()
	test.That(t, flat[0].Intensity, test.ShouldEqual, 1.0)
}

func TestPCDRoundTrip(t *testing.T) {
	cloud := makeCloud()
	for _, typ := range []PCDType{PCDAscii, PCDBinary, PCDCompressed} {
		t.Run(typ.String(), func(t *testing.T) {
			var buf bytes.Buffer
			test.That(t, WritePCD(cloud, &buf, typ), test.ShouldBeNil)
			test.That(t, buf.String(), test.ShouldStartWith, "VERSION .7\nFIELDS x y z intensity\n")

			got, err := ReadPCD(&buf)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, got.Size(), test.ShouldEqual, cloud.Size())
			for i := range cloud {
				test.That(t, got[i].Position.X, test.ShouldAlmostEqual, cloud[i].Position.X, 1e-4)
				test.That(t, got[i].Position.Y, test.ShouldAlmostEqual, cloud[i].Position.Y, 1e-4)
				test.That(t, got[i].Position.Z, test.ShouldAlmostEqual, cloud[i].Position.Z, 1e-4)
				test.That(t, got[i].Intensity, test.ShouldAlmostEqual, cloud[i].Intensity, 1e-6)
			}
		})
	}
}

func TestReadPCDCompressedColumns(t *testing.T) {
	// two points with a skipped two-byte field after x y z, stored column by column
	var columns bytes.Buffer
	for _, v := range []float32{1, 4, 2, 5, 3, 6} {
		test.That(t, binary.Write(&columns, binary.LittleEndian, math.Float32bits(v)), test.ShouldBeNil)
	}
	columns.Write([]byte{9, 9, 8, 8})
	compressed := make([]byte, columns.Len()+64)
	n, err := lzf.Compress(columns.Bytes(), compressed)
	test.That(t, err, test.ShouldBeNil)

	var in bytes.Buffer
	in.WriteString("VERSION .7\nFIELDS x y z flags\nSIZE 4 4 4 1\nTYPE F F F U\nCOUNT 1 1 1 2\n" +
		"WIDTH 2\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS 2\nDATA binary_compressed\n")
	test.That(t, binary.Write(&in, binary.LittleEndian, [2]uint32{uint32(n), uint32(columns.Len())}), test.ShouldBeNil)
	in.Write(compressed[:n])

	cloud, err := ReadPCD(&in)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud, test.ShouldHaveLength, 2)
	test.That(t, cloud[0].Position, test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, cloud[1].Position, test.ShouldResemble, r3.Vector{X: 4, Y: 5, Z: 6})
	test.That(t, cloud[1].Intensity, test.ShouldEqual, 1.0)
}

func TestReadPCDCompressedErrors(t *testing.T) {
	header := "VERSION .7\nFIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n" +
		"WIDTH 1\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS 1\nDATA binary_compressed\n"

	_, err := ReadPCD(strings.NewReader(header))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "compressed")

	var in bytes.Buffer
	in.WriteString(header)
	test.That(t, binary.Write(&in, binary.LittleEndian, [2]uint32{4, 8}), test.ShouldBeNil)
	_, err = ReadPCD(&in)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected 12")

	var empty bytes.Buffer
	test.That(t, WritePCD(Cloud{}, &empty, PCDCompressed), test.ShouldBeNil)
	cloud, err := ReadPCD(&empty)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud, test.ShouldBeEmpty)
}

func TestReadPCDPointsOnly(t *testing.T) {
	in := "# comment line\n" +
		"VERSION .7\n" +
		"FIELDS x y z\n" +
		"SIZE 4 4 4\n" +
		"TYPE F F F\n" +
		"COUNT 1 1 1\n" +
		"WIDTH 2\n" +
		"HEIGHT 1\n" +
		"VIEWPOINT 0 0 0 1 0 0 0\n" +
		"POINTS 2\n" +
		"DATA ascii\n" +
		"1 2 3\n" +
		"-4.5 0 0.25\n"
	cloud, err := ReadPCD(strings.NewReader(in))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud, test.ShouldHaveLength, 2)
	test.That(t, cloud[0].Position, test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, cloud[1].Position, test.ShouldResemble, r3.Vector{X: -4.5, Y: 0, Z: 0.25})
	test.That(t, cloud[0].Intensity, test.ShouldEqual, 1.0)
}

func TestReadPCDRGBAscii(t *testing.T) {
	in := "VERSION .7\n" +
		"FIELDS x y z rgb\n" +
		"SIZE 4 4 4 4\n" +
		"TYPE F F F U\n" +
		"COUNT 1 1 1 1\n" +
		"WIDTH 2\n" +
		"HEIGHT 1\n" +
		"VIEWPOINT 0 0 0 1 0 0 0\n" +
		"POINTS 2\n" +
		"DATA ascii\n" +
		"0 0 0 16777215\n" +
		"1 1 1 0\n"
	cloud, err := ReadPCD(strings.NewReader(in))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud[0].Intensity, test.ShouldAlmostEqual, 1.0, 1e-6)
	test.That(t, cloud[1].Intensity, test.ShouldAlmostEqual, 0.0, 1e-6)
}

func TestReadPCDBinarySkipsUnknownFields(t *testing.T) {
	header := "VERSION .7\n" +
		"FIELDS x y z normal intensity\n" +
		"SIZE 4 4 4 4 1\n" +
		"TYPE F F F F U\n" +
		"COUNT 1 1 1 3 1\n" +
		"WIDTH 1\n" +
		"HEIGHT 1\n" +
		"VIEWPOINT 0 0 0 1 0 0 0\n" +
		"POINTS 1\n" +
		"DATA binary\n"
	var buf bytes.Buffer
	buf.WriteString(header)
	for _, v := range []float32{1, 2, 3, 9, 9, 9} {
		test.That(t, binary.Write(&buf, binary.LittleEndian, math.Float32bits(v)), test.ShouldBeNil)
	}
	buf.WriteByte(200)

	cloud, err := ReadPCD(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud, test.ShouldHaveLength, 1)
	test.That(t, cloud[0].Position, test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, cloud[0].Intensity, test.ShouldEqual, 200.0)
}

func TestReadPCDErrors(t *testing.T) {
	for name, in := range map[string]string{
		"no xyz":        "VERSION .7\nFIELDS a b c\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\nWIDTH 1\nHEIGHT 1\nPOINTS 1\nDATA ascii\n1 2 3\n",
		"bad version":   "VERSION .6\n",
		"points":        "VERSION .7\nFIELDS x y z\nWIDTH 2\nHEIGHT 1\nPOINTS 3\nDATA ascii\n",
		"short point":   "VERSION .7\nFIELDS x y z\nWIDTH 1\nHEIGHT 1\nPOINTS 1\nDATA ascii\n1 2\n",
		"truncated bin": "VERSION .7\nFIELDS x y z\nWIDTH 1\nHEIGHT 1\nPOINTS 1\nDATA binary\n\x00\x00",
		"size count":    "VERSION .7\nFIELDS x y z\nSIZE 4 4\n",
		"no data":       "VERSION .7\nFIELDS x y z\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadPCD(strings.NewReader(in))
			test.That(t, err, test.ShouldNotBeNil)
		})
	}
}

func TestReadPCDHugePointCount(t *testing.T) {
	header := func(points, data string) string {
		return "VERSION .7\nFIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n" +
			"WIDTH " + points + "\nHEIGHT 1\nPOINTS " + points + "\nDATA " + data + "\n"
	}
	var point bytes.Buffer
	for _, v := range []float32{1, 2, 3} {
		test.That(t, binary.Write(&point, binary.LittleEndian, math.Float32bits(v)), test.ShouldBeNil)
	}

	_, err := ReadPCD(strings.NewReader(header("4000000000000", "ascii") + "1 2 3\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "reading point 1")

	_, err = ReadPCD(strings.NewReader(header("4000000000000", "binary") + point.String()))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "binary pcd data holds 12 bytes, expected 48000000000000")

	_, err = ReadPCD(strings.NewReader(header("18446744073709551615", "binary") + point.String()))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "too many points")

	var compressed bytes.Buffer
	compressed.WriteString(header("4000000000000", "binary_compressed"))
	test.That(t, binary.Write(&compressed, binary.LittleEndian, [2]uint32{4, 12}), test.ShouldBeNil)
	_, err = ReadPCD(&compressed)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected 48000000000000")
}

func TestReadPCDCompressedExpansionLimit(t *testing.T) {
	header := "VERSION .7\nFIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n" +
		"WIDTH 1000\nHEIGHT 1\nPOINTS 1000\nDATA binary_compressed\n"
	var in bytes.Buffer
	in.WriteString(header)
	test.That(t, binary.Write(&in, binary.LittleEndian, [2]uint32{2, 12000}), test.ShouldBeNil)
	in.Write([]byte{0, 0})
	_, err := ReadPCD(&in)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot expand")
}

func TestFileRoundTrip(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cloud := makeCloud()
	dir := t.TempDir()

	pcdPath := filepath.Join(dir, "frame.pcd")
	test.That(t, WriteToFile(cloud, pcdPath), test.ShouldBeNil)
	lasPath := filepath.Join(dir, "frame.las")
	test.That(t, WriteToFile(cloud, lasPath), test.ShouldBeNil)
	plyPath := filepath.Join(dir, "frame.ply")
	test.That(t, WriteToFile(cloud, plyPath), test.ShouldBeNil)

	clouds, err := NewFromFiles([]string{pcdPath, lasPath, plyPath}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, clouds, test.ShouldHaveLength, 3)
	for _, got := range clouds {
		test.That(t, got.Size(), test.ShouldEqual, cloud.Size())
		for i := range cloud {
			test.That(t, got[i].Position.X, test.ShouldAlmostEqual, cloud[i].Position.X, 1e-3)
			test.That(t, got[i].Position.Y, test.ShouldAlmostEqual, cloud[i].Position.Y, 1e-3)
			test.That(t, got[i].Position.Z, test.ShouldAlmostEqual, cloud[i].Position.Z, 1e-3)
			test.That(t, got[i].Intensity, test.ShouldAlmostEqual, cloud[i].Intensity, 1e-4)
		}
	}

	_, err = NewFromFile(filepath.Join(dir, "frame.xyz"), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, WriteToFile(cloud, filepath.Join(dir, "frame.xyz")), test.ShouldNotBeNil)
	_, err = NewFromFile(filepath.Join(dir, "missing.pcd"), logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadPLY(t *testing.T) {
	in := `ply
format ascii 1.0
comment two coloured vertices and a face
element vertex 2
property float x
property float y
property double z
property uchar red
property uchar green
property uchar blue
element face 1
property list uchar int vertex_index
end_header
1 2 3 255 255 255
-1 0.5 2 0 0 0
2 0 1`
	cloud, err := ReadPLY(strings.NewReader(in))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud, test.ShouldHaveLength, 2)
	test.That(t, cloud[0].Position, test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, cloud[0].Intensity, test.ShouldAlmostEqual, 1.0, 1e-3)
	test.That(t, cloud[1].Position.Y, test.ShouldEqual, 0.5)
	test.That(t, cloud[1].Intensity, test.ShouldAlmostEqual, 0.0, 1e-3)

	noColor := "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nproperty float z\nend_header\n0 0 1\n"
	cloud, err = ReadPLY(strings.NewReader(noColor))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud[0].Intensity, test.ShouldEqual, 1.0)
}

func TestReadPLYErrors(t *testing.T) {
	missingZ := "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nend_header\n0 0\n"
	_, err := ReadPLY(strings.NewReader(missingZ))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "missing z")

	for _, in := range []string{
		"pcd\n",
		"ply\nformat binary_little_endian 1.0\nend_header\n",
		"ply\nformat ascii 1.0\nelement vertex 2\nproperty float x\nend_header\n1\n",
		"ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nend_header\nabc\n",
	} {
		_, err := ReadPLY(strings.NewReader(in))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "malformed ply")
	}
}
