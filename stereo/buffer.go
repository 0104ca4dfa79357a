package stereo

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/Bearzeng/stereo-vision/logging"
)

var (
	// ErrSubscriberExists is returned when subscribing with an id already in use.
	ErrSubscriberExists = errors.New("subscriber already exists")
	// ErrSubscriberNotFound is returned when unsubscribing an unknown id.
	ErrSubscriberNotFound = errors.New("subscriber not found")
	// ErrNilListener is returned when subscribing a nil listener.
	ErrNilListener = errors.New("listener cannot be nil")
)

// Info describes a newly installed frame. It is what listeners receive; the pixels themselves
// are obtained with Buffer.Snapshot.
type Info struct {
	Seq       uint64
	Width     int
	Height    int
	Captured  time.Time
	Rectified bool
}

// Listener is called synchronously, outside the buffer lock, once per completed stereo pair.
type Listener func(Info)

type listenerEntry struct {
	id string
	fn Listener
}

type pendingImage struct {
	data      []byte
	width     int
	height    int
	step      int
	rectified bool
	captured  time.Time
}

// Buffer is the stereo frame store. It is safe for concurrent use by one producer and any
// number of consumers.
type Buffer struct {
	mu       sync.Mutex
	frame    Frame
	pending  [2]*pendingImage
	consumed bool
	seq      uint64

	listenersMu sync.Mutex
	listeners   []listenerEntry

	clock  clock.Clock
	logger logging.Logger
}

// NewBuffer returns an empty buffer. A nil clock means the wall clock.
func NewBuffer(clk clock.Clock, logger logging.Logger) *Buffer {
	if clk == nil {
		clk = clock.New()
	}
	return &Buffer{clock: clk, logger: logger}
}

// SetImage installs a raster for one channel. data must hold step*height bytes; it is copied,
// so the producer may reuse it as soon as SetImage returns. Once both channels are pending they
// become the live frame, the consumed flag is cleared and listeners are notified.
func (b *Buffer) SetImage(
	data []byte,
	width, height, step int,
	ch Channel,
	rectified bool,
	captured time.Time,
) error {
	if ch != Left && ch != Right {
		return errors.Errorf("invalid channel %d", ch)
	}
	if width <= 0 || height <= 0 {
		return errors.Errorf("invalid geometry %dx%d", width, height)
	}
	if step < width {
		return errors.Errorf("step %d is smaller than width %d", step, width)
	}
	if len(data) < step*height {
		return errors.Errorf("%s image has %d bytes, need %d (step %d x height %d)",
			ch, len(data), step*height, step, height)
	}

	info, complete, err := b.install(&pendingImage{
		data:      cloneBytes(data[:step*height]),
		width:     width,
		height:    height,
		step:      step,
		rectified: rectified,
		captured:  captured,
	}, ch)
	if err != nil {
		return err
	}
	if complete {
		b.logger.Debugw("stereo frame complete", "seq", info.Seq, "width", info.Width, "height", info.Height)
		b.notify(info)
	}
	return nil
}

func (b *Buffer) install(img *pendingImage, ch Channel) (Info, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending[ch] = img
	left, right := b.pending[Left], b.pending[Right]
	if left == nil || right == nil {
		return Info{}, false, nil
	}
	b.pending = [2]*pendingImage{}

	if left.width != right.width || left.height != right.height || left.step != right.step {
		return Info{}, false, errors.Errorf("stereo geometry mismatch: left %dx%d/%d right %dx%d/%d",
			left.width, left.height, left.step, right.width, right.height, right.step)
	}

	b.seq++
	b.frame = Frame{
		Left:      left.data,
		Right:     right.data,
		Width:     left.width,
		Height:    left.height,
		Step:      left.step,
		Captured:  left.captured,
		Rectified: left.rectified && right.rectified,
		Seq:       b.seq,
	}
	b.consumed = false

	return Info{
		Seq:       b.frame.Seq,
		Width:     b.frame.Width,
		Height:    b.frame.Height,
		Captured:  b.frame.Captured,
		Rectified: b.frame.Rectified,
	}, true, nil
}

// SetDisparity attaches a disparity buffer to the live frame. Its length must be Step*Height.
func (b *Buffer) SetDisparity(ch Channel, disparity []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frame.Empty() {
		return errors.New("no frame to attach a disparity map to")
	}
	if want := b.frame.Step * b.frame.Height; len(disparity) != want {
		return errors.Errorf("%s disparity has %d values, frame needs %d", ch, len(disparity), want)
	}
	switch ch {
	case Left:
		b.frame.LeftDisparity = cloneFloats(disparity)
	case Right:
		b.frame.RightDisparity = cloneFloats(disparity)
	default:
		return errors.Errorf("invalid channel %d", ch)
	}
	return nil
}

// Snapshot returns an independently owned deep copy of the live frame.
func (b *Buffer) Snapshot() Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame.Clone()
}

// NormalizeChannel stretches the contrast of one channel of the live frame in place.
func (b *Buffer) NormalizeChannel(ch Channel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pix := b.frame.Raster(ch)
	if pix == nil {
		return
	}
	NormalizeHistogram(pix, b.frame.Width, b.frame.Height, b.frame.Step)
}

// MarkConsumed records that a consumer has read the live frame.
func (b *Buffer) MarkConsumed() {
	b.mu.Lock()
	b.consumed = true
	b.mu.Unlock()
}

// IsConsumed reports whether the live frame has been read since it was installed.
func (b *Buffer) IsConsumed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consumed
}

// Width of the live frame, 0 before the first frame.
func (b *Buffer) Width() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame.Width
}

// Height of the live frame, 0 before the first frame.
func (b *Buffer) Height() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame.Height
}

// Step of the live frame, 0 before the first frame.
func (b *Buffer) Step() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame.Step
}

// IsRectified reports whether the live frame is rectified.
func (b *Buffer) IsRectified() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame.Rectified
}

// Age is the time elapsed since the live frame was captured, 0 before the first frame.
func (b *Buffer) Age() time.Duration {
	b.mu.Lock()
	captured := b.frame.Captured
	b.mu.Unlock()
	if captured.IsZero() {
		return 0
	}
	return b.clock.Since(captured)
}

// Subscribe registers a listener under id.
func (b *Buffer) Subscribe(id string, fn Listener) error {
	if fn == nil {
		return ErrNilListener
	}
	b.listenersMu.Lock()
	defer b.listenersMu.Unlock()

	if lo.ContainsBy(b.listeners, func(e listenerEntry) bool { return e.id == id }) {
		return errors.Wrap(ErrSubscriberExists, id)
	}
	b.listeners = append(b.listeners, listenerEntry{id: id, fn: fn})
	return nil
}

// Unsubscribe removes the listener registered under id.
func (b *Buffer) Unsubscribe(id string) error {
	b.listenersMu.Lock()
	defer b.listenersMu.Unlock()

	kept := lo.Reject(b.listeners, func(e listenerEntry, _ int) bool { return e.id == id })
	if len(kept) == len(b.listeners) {
		return errors.Wrap(ErrSubscriberNotFound, id)
	}
	b.listeners = kept
	return nil
}

func (b *Buffer) notify(info Info) {
	b.listenersMu.Lock()
	listeners := lo.Map(b.listeners, func(e listenerEntry, _ int) Listener { return e.fn })
	b.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(info)
	}
}
