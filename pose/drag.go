package pose

// DragTracker turns absolute pointer positions into the drag deltas ApplyDrag expects.
// Horizontal deltas are inverted (dx = last - x) so dragging right orbits left, and vertical
// deltas follow screen coordinates (dy = y - last).
type DragTracker struct {
	lastX, lastY float64
}

// Press records the position where a button went down.
func (d *DragTracker) Press(x, y float64) {
	d.lastX, d.lastY = x, y
}

// Move returns the delta from the last recorded position and records (x, y).
func (d *DragTracker) Move(x, y float64) (dx, dy float64) {
	dx = d.lastX - x
	dy = y - d.lastY
	d.lastX, d.lastY = x, y
	return dx, dy
}
