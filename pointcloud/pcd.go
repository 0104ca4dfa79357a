package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	lzf "github.com/zhuyie/golzf"

	"github.com/Bearzeng/stereo-vision/utils"
)

// PCDType is the data encoding of a pcd file.
type PCDType int

const (
	// PCDAscii is the ascii encoding.
	PCDAscii PCDType = 0
	// PCDBinary is the little-endian binary encoding.
	PCDBinary PCDType = 1
	// PCDCompressed is the lzf compressed binary encoding, laid out field by field instead of
	// point by point.
	PCDCompressed PCDType = 2
)

func (t PCDType) String() string {
	switch t {
	case PCDAscii:
		return "ascii"
	case PCDBinary:
		return "binary"
	case PCDCompressed:
		return "binary_compressed"
	}
	return fmt.Sprintf("PCDType(%d)", int(t))
}

const (
	pcdCommentChar        = "#"
	maxPreallocatedPoints = 1 << 20
	// an lzf back reference of three bytes expands to at most 264 bytes
	lzfMaxExpansion = 88
)

type pcdField struct {
	name  string
	size  int
	typ   byte
	count int
}

type pcdHeader struct {
	fields []pcdField
	width  uint64
	height uint64
	points uint64
	data   PCDType

	x, y, z   int
	intensity int
	rgb       int
}

func (h *pcdHeader) index(name string) int {
	for i, f := range h.fields {
		if f.name == name {
			return i
		}
	}
	return -1
}

func (h *pcdHeader) pointSize() int {
	total := 0
	for _, f := range h.fields {
		total += f.size * f.count
	}
	return total
}

// dataSize is the byte length of the binary point records the header declares.
func (h *pcdHeader) dataSize() (int64, error) {
	pointSize := uint64(h.pointSize())
	if pointSize > 0 && h.points > math.MaxInt64/pointSize {
		return 0, errors.Errorf("pcd declares too many points: %d", h.points)
	}
	return int64(h.points * pointSize), nil
}

// newCloud allocates room for the declared points, up to maxPreallocatedPoints. The header is
// not trusted beyond that; the cloud grows as points are actually read.
func (h *pcdHeader) newCloud() Cloud {
	return New(int(min(h.points, maxPreallocatedPoints)))
}

func parsePCDHeaderLine(line string, header *pcdHeader) (bool, error) {
	name, value, _ := strings.Cut(line, " ")
	value = strings.TrimSpace(value)
	tokens := strings.Fields(value)

	perField := func(what string, set func(f *pcdField, token string) error) error {
		if len(tokens) != len(header.fields) {
			return errors.Errorf("%s has %d entries for %d fields", what, len(tokens), len(header.fields))
		}
		for i, token := range tokens {
			if err := set(&header.fields[i], token); err != nil {
				return errors.Wrapf(err, "invalid %s entry %q", what, token)
			}
		}
		return nil
	}

	var err error
	switch name {
	case "VERSION":
		if value != ".7" && value != "0.7" {
			return false, errors.Errorf("unsupported pcd version %s", value)
		}
	case "FIELDS":
		header.fields = make([]pcdField, len(tokens))
		for i, token := range tokens {
			header.fields[i] = pcdField{name: token, size: 4, typ: 'F', count: 1}
		}
	case "SIZE":
		err = perField("SIZE", func(f *pcdField, token string) error {
			size, err := strconv.Atoi(token)
			if err != nil {
				return err
			}
			switch size {
			case 1, 2, 4, 8:
			default:
				return errors.Errorf("unsupported size %d", size)
			}
			f.size = size
			return nil
		})
	case "TYPE":
		err = perField("TYPE", func(f *pcdField, token string) error {
			switch token {
			case "F", "I", "U":
				f.typ = token[0]
				return nil
			}
			return errors.Errorf("unknown type %s", token)
		})
	case "COUNT":
		err = perField("COUNT", func(f *pcdField, token string) error {
			count, err := strconv.Atoi(token)
			if err != nil {
				return err
			}
			if count < 1 {
				return errors.Errorf("count must be positive, got %d", count)
			}
			f.count = count
			return nil
		})
	case "WIDTH":
		header.width, err = strconv.ParseUint(value, 10, 64)
	case "HEIGHT":
		header.height, err = strconv.ParseUint(value, 10, 64)
	case "VIEWPOINT":
		if len(tokens) != 7 {
			return false, errors.Errorf("VIEWPOINT needs 7 values, got %d", len(tokens))
		}
	case "POINTS":
		header.points, err = strconv.ParseUint(value, 10, 64)
	case "DATA":
		switch value {
		case "ascii":
			header.data = PCDAscii
		case "binary":
			header.data = PCDBinary
		case "binary_compressed":
			header.data = PCDCompressed
		default:
			return false, errors.Errorf("unknown pcd data type %q", value)
		}
		return true, nil
	default:
		return false, errors.Errorf("unknown pcd header line %q", line)
	}
	if err != nil {
		return false, errors.Wrapf(err, "invalid %s line", name)
	}
	return false, nil
}

func (h *pcdHeader) validate() error {
	h.x, h.y, h.z = h.index("x"), h.index("y"), h.index("z")
	if h.x < 0 || h.y < 0 || h.z < 0 {
		return errors.New("pcd needs x, y and z fields")
	}
	h.intensity = h.index("intensity")
	h.rgb = h.index("rgb")
	if h.rgb < 0 {
		h.rgb = h.index("rgba")
	}
	for _, i := range []int{h.x, h.y, h.z, h.intensity, h.rgb} {
		if i >= 0 && h.fields[i].count != 1 {
			return errors.Errorf("pcd field %s must have COUNT 1", h.fields[i].name)
		}
	}
	if h.points == 0 && h.width*h.height != 0 {
		h.points = h.width * h.height
	}
	if h.width*h.height != 0 && h.points != h.width*h.height {
		return errors.Errorf("POINTS %d does not match WIDTH*HEIGHT %d", h.points, h.width*h.height)
	}
	return nil
}

// ReadPCD reads a cloud from a pcd stream. The fields must include x, y and z; intensity is taken
// from an intensity field, or from the luminance of an rgb/rgba field, and defaults to 1. Other
// fields are skipped.
func ReadPCD(inRaw io.Reader) (Cloud, error) {
	header := pcdHeader{}
	in := bufio.NewReader(inRaw)
	lineNum := 0
	for {
		line, err := in.ReadString('\n')
		lineNum++
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return nil, errors.Wrapf(err, "error reading header line %d", lineNum)
		}
		line, _, _ = strings.Cut(line, pcdCommentChar)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		done, err := parsePCDHeaderLine(line, &header)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}
	if err := header.validate(); err != nil {
		return nil, err
	}

	switch header.data {
	case PCDAscii:
		return readPCDAscii(in, &header)
	case PCDBinary:
		return readPCDBinary(in, &header)
	case PCDCompressed:
		return readPCDCompressed(in, &header)
	default:
		return nil, errors.Errorf("unsupported pcd data type %v", header.data)
	}
}

func readPCDAscii(in *bufio.Reader, header *pcdHeader) (Cloud, error) {
	cloud := header.newCloud()
	// values are laid out field by field, each repeated COUNT times
	offsets := make([]int, len(header.fields))
	total := 0
	for j, f := range header.fields {
		offsets[j] = total
		total += f.count
	}
	for i := uint64(0); i < header.points; i++ {
		line, err := in.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		tokens := strings.Fields(line)
		if len(tokens) != total {
			return nil, errors.Errorf("point %d has %d values, expected %d", i, len(tokens), total)
		}
		coord := func(field int) (float64, error) {
			v, err := strconv.ParseFloat(tokens[offsets[field]], 64)
			if err != nil {
				return 0, errors.Wrapf(err, "invalid point %d field %s", i, header.fields[field].name)
			}
			return v, nil
		}
		var pos r3.Vector
		if pos.X, err = coord(header.x); err != nil {
			return nil, err
		}
		if pos.Y, err = coord(header.y); err != nil {
			return nil, err
		}
		if pos.Z, err = coord(header.z); err != nil {
			return nil, err
		}
		intensity := 1.0
		switch {
		case header.intensity >= 0:
			if intensity, err = coord(header.intensity); err != nil {
				return nil, err
			}
		case header.rgb >= 0:
			packed, err := parsePackedRGB(tokens[offsets[header.rgb]])
			if err != nil {
				return nil, errors.Wrapf(err, "invalid point %d rgb", i)
			}
			intensity = luminance(packed)
		}
		cloud.Add(pos, intensity)
	}
	return cloud, nil
}

// parsePackedRGB accepts both the integer form and the float-reinterpreted form PCL writes.
func parsePackedRGB(token string) (uint32, error) {
	if v, err := strconv.ParseUint(token, 10, 32); err == nil {
		return uint32(v), nil
	}
	f, err := strconv.ParseFloat(token, 32)
	if err != nil {
		return 0, err
	}
	return math.Float32bits(float32(f)), nil
}

func readPCDCompressed(in io.Reader, header *pcdHeader) (Cloud, error) {
	var sizes [2]uint32
	if err := binary.Read(in, binary.LittleEndian, &sizes); err != nil {
		return nil, errors.Wrap(err, "reading compressed sizes")
	}
	compressedSize, uncompressedSize := sizes[0], sizes[1]
	size, err := header.dataSize()
	if err != nil {
		return nil, err
	}
	if int64(uncompressedSize) != size {
		return nil, errors.Errorf("compressed pcd holds %d bytes, expected %d", uncompressedSize, size)
	}
	if uncompressedSize == 0 {
		return New(0), nil
	}
	compressed, err := io.ReadAll(io.LimitReader(in, int64(compressedSize)))
	if err != nil {
		return nil, errors.Wrap(err, "reading compressed data")
	}
	if len(compressed) != int(compressedSize) {
		return nil, errors.Errorf("compressed pcd data holds %d bytes, expected %d", len(compressed), compressedSize)
	}
	if int64(uncompressedSize) > int64(compressedSize)*lzfMaxExpansion {
		return nil, errors.Errorf("%d compressed bytes cannot expand to %d", compressedSize, uncompressedSize)
	}
	columns := make([]byte, uncompressedSize)
	n, err := lzf.Decompress(compressed, columns)
	if err != nil {
		return nil, errors.Wrap(err, "decompressing pcd data")
	}
	if n != len(columns) {
		return nil, errors.Errorf("decompressed %d bytes, expected %d", n, len(columns))
	}

	// regroup the per-field columns into per-point records
	points := int(header.points)
	pointSize := header.pointSize()
	rows := make([]byte, len(columns))
	columnStart, rowOffset := 0, 0
	for _, f := range header.fields {
		width := f.size * f.count
		for i := 0; i < points; i++ {
			copy(rows[i*pointSize+rowOffset:], columns[columnStart+i*width:columnStart+(i+1)*width])
		}
		columnStart += width * points
		rowOffset += width
	}
	return decodePCDRecords(rows, header)
}

func readPCDBinary(in io.Reader, header *pcdHeader) (Cloud, error) {
	size, err := header.dataSize()
	if err != nil {
		return nil, err
	}
	// read no more than the input holds, whatever the header claims
	data, err := io.ReadAll(io.LimitReader(in, size))
	if err != nil {
		return nil, errors.Wrap(err, "reading binary data")
	}
	if int64(len(data)) != size {
		return nil, errors.Errorf("binary pcd data holds %d bytes, expected %d", len(data), size)
	}
	return decodePCDRecords(data, header)
}

// decodePCDRecords decodes header.points consecutive point records from data.
func decodePCDRecords(data []byte, header *pcdHeader) (Cloud, error) {
	cloud := header.newCloud()
	offsets := make([]int, len(header.fields))
	total := 0
	for j, f := range header.fields {
		offsets[j] = total
		total += f.size * f.count
	}
	for i := 0; i < int(header.points); i++ {
		buf := data[i*total : (i+1)*total]
		value := func(field int) float64 {
			f := header.fields[field]
			return decodePCDValue(buf[offsets[field]:offsets[field]+f.size], f.typ)
		}
		pos := r3.Vector{X: value(header.x), Y: value(header.y), Z: value(header.z)}
		intensity := 1.0
		switch {
		case header.intensity >= 0:
			intensity = value(header.intensity)
		case header.rgb >= 0:
			f := header.fields[header.rgb]
			if f.size != 4 {
				return nil, errors.Errorf("rgb field must be 4 bytes, got %d", f.size)
			}
			packed := binary.LittleEndian.Uint32(buf[offsets[header.rgb]:])
			intensity = luminance(packed)
		}
		cloud.Add(pos, intensity)
	}
	return cloud, nil
}

func decodePCDValue(b []byte, typ byte) float64 {
	switch typ {
	case 'F':
		if len(b) == 8 {
			return math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case 'I':
		switch len(b) {
		case 1:
			return float64(int8(b[0]))
		case 2:
			return float64(int16(binary.LittleEndian.Uint16(b)))
		case 4:
			return float64(int32(binary.LittleEndian.Uint32(b)))
		default:
			return float64(int64(binary.LittleEndian.Uint64(b)))
		}
	default:
		switch len(b) {
		case 1:
			return float64(b[0])
		case 2:
			return float64(binary.LittleEndian.Uint16(b))
		case 4:
			return float64(binary.LittleEndian.Uint32(b))
		default:
			return float64(binary.LittleEndian.Uint64(b))
		}
	}
}

// luminance maps a packed 0x00RRGGBB colour onto [0, 1] using its CIE L* lightness.
func luminance(packed uint32) float64 {
	c := colorful.Color{
		R: float64((packed>>16)&0xFF) / 255,
		G: float64((packed>>8)&0xFF) / 255,
		B: float64(packed&0xFF) / 255,
	}
	l, _, _ := c.Lab()
	return utils.Clamp(l, 0, 1)
}

// WritePCD writes the cloud as an unorganized pcd with x y z intensity float fields.
func WritePCD(cloud Cloud, out io.Writer, outputType PCDType) error {
	if outputType != PCDAscii && outputType != PCDBinary && outputType != PCDCompressed {
		return errors.Errorf("unknown pcd type %v", outputType)
	}
	w := bufio.NewWriter(out)
	if _, err := fmt.Fprintf(w, "VERSION .7\n"+
		"FIELDS x y z intensity\n"+
		"SIZE 4 4 4 4\n"+
		"TYPE F F F F\n"+
		"COUNT 1 1 1 1\n"+
		"WIDTH %d\n"+
		"HEIGHT 1\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"DATA %s\n", cloud.Size(), cloud.Size(), outputType); err != nil {
		return err
	}

	if outputType == PCDCompressed {
		if err := writePCDCompressed(cloud, w); err != nil {
			return err
		}
		return w.Flush()
	}

	buf := make([]byte, 16)
	for _, s := range cloud {
		var err error
		switch outputType {
		case PCDBinary:
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(s.Position.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(s.Position.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(s.Position.Z)))
			binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(float32(s.Intensity)))
			_, err = w.Write(buf)
		case PCDAscii:
			_, err = fmt.Fprintf(w, "%g %g %g %g\n", s.Position.X, s.Position.Y, s.Position.Z, s.Intensity)
		}
		if err != nil {
			return err
		}
	}
	return w.Flush()
}

func writePCDCompressed(cloud Cloud, w io.Writer) error {
	n := cloud.Size()
	columns := make([]byte, 16*n)
	for i, s := range cloud {
		for j, v := range []float64{s.Position.X, s.Position.Y, s.Position.Z, s.Intensity} {
			binary.LittleEndian.PutUint32(columns[4*(j*n+i):], math.Float32bits(float32(v)))
		}
	}
	var compressed []byte
	if n > 0 {
		// lzf output can exceed its input slightly for incompressible data
		compressed = make([]byte, len(columns)+len(columns)/16+64)
		size, err := lzf.Compress(columns, compressed)
		if err != nil {
			return errors.Wrap(err, "compressing pcd data")
		}
		compressed = compressed[:size]
	}
	if err := binary.Write(w, binary.LittleEndian, [2]uint32{uint32(len(compressed)), uint32(len(columns))}); err != nil {
		return err
	}
	_, err := w.Write(compressed)
	return err
}
