package pose

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Sequence is an ordered list of poses describing a scripted camera path. Playback walks it one
// segment (consecutive pair) at a time.
type Sequence []Pose

// Segments is the number of consecutive pairs in the sequence.
func (s Sequence) Segments() int {
	if len(s) < 2 {
		return 0
	}
	return len(s) - 1
}

// OrbitDemo swings the yaw of cur from -45 to +45 degrees and back.
func OrbitDemo(cur Pose) Sequence {
	left, right := cur, cur
	left.RotY -= 45
	right.RotY += 45
	return Sequence{left, right, left}
}

// String prints a table of the poses with their zoom, rotation and translation.
func (s Sequence) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Zoom", "Pitch", "Yaw", "Translation"})
	for i, p := range s {
		t.AppendRow(table.Row{
			i,
			fmt.Sprintf("%.3f", p.Zoom),
			fmt.Sprintf("%.1f", p.RotX),
			fmt.Sprintf("%.1f", p.RotY),
			fmt.Sprintf("X:%.3f, Y:%.3f, Z:%.3f", p.TX, p.TY, p.TZ),
		})
	}
	return t.Render()
}
