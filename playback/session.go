package playback

import (
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/util"
)

// MaxSessions is the number of session directories SessionDir probes.
const MaxSessions = 9999

// ErrSessionsExhausted is returned when every session directory is already in use.
var ErrSessionsExhausted = errors.New("all record session directories are in use")

// SessionName is the directory name of session i.
func SessionName(i int) string {
	return fmt.Sprintf("record_%04d", i)
}

func fullFrameName(k int, format Format) string {
	return fmt.Sprintf("img_320_480_%06d.%s", k, format.Ext())
}

const firstFramePattern = "img_320_480_000000.*"

func reducedFrameName(k int, format Format) string {
	return fmt.Sprintf("img_160_240_%06d.%s", k, format.Ext())
}

// SessionDir creates and returns the first session directory holding no first full-size frame,
// in any format.
func SessionDir(fs billy.Filesystem) (string, error) {
	for i := 0; i < MaxSessions; i++ {
		dir := SessionName(i)
		used, err := util.Glob(fs, fs.Join(dir, firstFramePattern))
		if err != nil {
			return "", errors.Wrapf(err, "probing record directory %q", dir)
		}
		if len(used) > 0 {
			continue
		}
		if err := fs.MkdirAll(dir, 0o750); err != nil {
			return "", errors.Wrapf(err, "creating record directory %q", dir)
		}
		return dir, nil
	}
	return "", ErrSessionsExhausted
}
