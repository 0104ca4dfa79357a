// Package playback walks a sequence of poses with eased interpolation, redrawing the view at
// every step and optionally recording each frame to disk.
package playback

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"gopkg.in/src-d/go-billy.v4"

	"github.com/Bearzeng/stereo-vision/logging"
	"github.com/Bearzeng/stereo-vision/pose"
)

// Defaults for Config.
const (
	DefaultStep          = 0.02
	DefaultReducedEvery  = 3
	DefaultReducedWidth  = 160
	DefaultReducedHeight = 240
)

// Display is what a Player drives.
type Display interface {
	Pose() pose.Pose
	SetPose(p pose.Pose)
	Redraw() *image.RGBA
	GrabFrameBuffer() *image.RGBA
}

// Config configures a Player. Zero fields take the defaults.
type Config struct {
	Step          float64
	ReducedEvery  int
	ReducedWidth  int
	ReducedHeight int
	Format        Format
	Resampler     Resampler
}

func (c Config) withDefaults() Config {
	if c.Step <= 0 {
		c.Step = DefaultStep
	}
	if c.ReducedEvery <= 0 {
		c.ReducedEvery = DefaultReducedEvery
	}
	if c.ReducedWidth <= 0 {
		c.ReducedWidth = DefaultReducedWidth
	}
	if c.ReducedHeight <= 0 {
		c.ReducedHeight = DefaultReducedHeight
	}
	if c.Format == "" {
		c.Format = FormatPNG
	}
	if c.Resampler == "" {
		c.Resampler = Lanczos
	}
	return c
}

// StepsPerSegment is the number of interpolation steps taken between two poses.
func (c Config) StepsPerSegment() int {
	c = c.withDefaults()
	return int(math.Ceil(1/c.Step - 1e-9))
}

// Stats describes a finished or interrupted playback.
type Stats struct {
	Steps         int
	FullImages    int
	ReducedImages int
	Dir           string
	Elapsed       time.Duration
}

// A Player plays pose sequences on a Display and records them to a filesystem.
type Player struct {
	display Display
	fs      billy.Filesystem
	cfg     Config
	clock   clock.Clock
	logger  logging.Logger
	poses   pose.Sequence
}

// NewPlayer returns a player recording into fs. A nil clk uses the wall clock.
func NewPlayer(display Display, fs billy.Filesystem, cfg Config, clk clock.Clock, logger logging.Logger) (*Player, error) {
	cfg = cfg.withDefaults()
	if _, err := ParseFormat(string(cfg.Format)); err != nil {
		return nil, err
	}
	if _, err := ParseResampler(string(cfg.Resampler)); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Player{display: display, fs: fs, cfg: cfg, clock: clk, logger: logger}, nil
}

// AddPose appends the display's current pose to the saved poses.
func (p *Player) AddPose() {
	p.poses = append(p.poses, p.display.Pose())
}

// Poses returns the saved poses.
func (p *Player) Poses() pose.Sequence {
	return append(pose.Sequence(nil), p.poses...)
}

// ClearPoses drops the saved poses.
func (p *Player) ClearPoses() {
	p.poses = nil
}

// PlayPoses plays the saved poses.
func (p *Player) PlayPoses(ctx context.Context, record bool) (Stats, error) {
	return p.Play(ctx, p.poses, record)
}

// RecordOrbitDemo replaces the saved poses with a swing of the current yaw by 45 degrees either
// way and records it.
func (p *Player) RecordOrbitDemo(ctx context.Context) (Stats, error) {
	p.poses = pose.OrbitDemo(p.display.Pose())
	p.logger.Debugf("orbit demo poses\n%s", p.poses)
	return p.PlayPoses(ctx, true)
}

// Play walks every consecutive pair of seq, stepping t from 0 towards 1 and showing the eased
// interpolation at each step. When recording, every step stores a full-size frame and every
// ReducedEvery-th step also stores a reduced-size one, in a fresh session directory. ctx is
// checked before each step.
func (p *Player) Play(ctx context.Context, seq pose.Sequence, record bool) (stats Stats, err error) {
	start := p.clock.Now()
	defer func() {
		stats.Elapsed = p.clock.Since(start)
	}()

	if record {
		if stats.Dir, err = SessionDir(p.fs); err != nil {
			return stats, err
		}
		p.logger.Infow("creating record directory", "dir", stats.Dir)
	}

	n := p.cfg.StepsPerSegment()
	for seg := 0; seg < seq.Segments(); seg++ {
		from, to := seq[seg], seq[seg+1]
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			p.display.SetPose(pose.Interpolate(from, to, float64(i)*p.cfg.Step))
			p.display.Redraw()
			stats.Steps++
			if !record {
				continue
			}
			if err := p.store(&stats); err != nil {
				return stats, err
			}
		}
	}
	p.logger.Debugw("playback finished", "steps", stats.Steps, "images", stats.FullImages+stats.ReducedImages)
	return stats, nil
}

func (p *Player) store(stats *Stats) error {
	img := p.display.GrabFrameBuffer()
	name := p.fs.Join(stats.Dir, fullFrameName(stats.FullImages, p.cfg.Format))
	p.logger.Infof("Storing %s", name)
	if err := writeImage(p.fs, name, img, p.cfg.Format); err != nil {
		return errors.Wrap(err, "storing full-size frame")
	}
	stats.FullImages++

	if stats.FullImages%p.cfg.ReducedEvery != 0 {
		return nil
	}
	reduced := p.cfg.Resampler.Resize(img, p.cfg.ReducedWidth, p.cfg.ReducedHeight)
	name = p.fs.Join(stats.Dir, reducedFrameName(stats.ReducedImages, p.cfg.Format))
	p.logger.Infof("Storing %s", name)
	if err := writeImage(p.fs, name, reduced, p.cfg.Format); err != nil {
		return errors.Wrap(err, "storing reduced frame")
	}
	stats.ReducedImages++
	return nil
}
