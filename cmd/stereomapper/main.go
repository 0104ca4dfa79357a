// Package main renders stereo trajectories and point clouds, records orbit playbacks and runs
// stereo image pairs through the shared stereo buffer.
//
//	stereomapper render [-config cfg.json] [-poses poses.txt] [-cloud c0.pcd -cloud c1.ply ...] -out view.png
//	stereomapper record [-config cfg.json] [-poses poses.txt] [-cloud c0.pcd ...]
//	stereomapper stereo [-normalize] -left l0.png -right r0.png [-left l1.png -right r1.png ...] -out dir
package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"gopkg.in/src-d/go-billy.v4/osfs"

	"github.com/Bearzeng/stereo-vision/config"
	"github.com/Bearzeng/stereo-vision/logging"
	"github.com/Bearzeng/stereo-vision/playback"
	"github.com/Bearzeng/stereo-vision/pointcloud"
	"github.com/Bearzeng/stereo-vision/trajectory"
	"github.com/Bearzeng/stereo-vision/viewer"
)

var logger = logging.NewLogger("stereomapper")

func main() {
	goutils.ContextualMain(mainWithArgs, logger)
}

// SceneArguments are shared by the render and record commands.
type SceneArguments struct {
	ConfigFile string     `flag:"config,usage=config file"`
	Poses      string     `flag:"poses,usage=KITTI pose file"`
	Out        string     `flag:"out,usage=output image (render only)"`
	Debug      bool       `flag:"debug,usage=debug logging"`
	Clouds     []fileFlag `flag:"cloud,usage=point cloud file (.pcd .ply or .las) in frame order; repeatable"`
}

// StereoArguments are the arguments of the stereo command.
type StereoArguments struct {
	Out       string     `flag:"out,required,usage=output directory"`
	Normalize bool       `flag:"normalize,usage=stretch the contrast of each image"`
	Debug     bool       `flag:"debug,usage=debug logging"`
	Left      []fileFlag `flag:"left,usage=left image (png or ppm); repeatable"`
	Right     []fileFlag `flag:"right,usage=right image (png or ppm); repeatable"`
}

// fileFlag is a path given through a repeatable flag.
type fileFlag string

func (f *fileFlag) String() string {
	return string(*f)
}

func (f *fileFlag) Set(val string) error {
	*f = fileFlag(val)
	return nil
}

func paths(flags []fileFlag) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		out = append(out, string(f))
	}
	return out
}

const usage = "usage: stereomapper render|record|stereo [flags]"

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	if len(args) < 2 {
		return errors.New(usage)
	}
	sub := args[1]
	subArgs := append([]string{args[0] + " " + sub}, args[2:]...)

	switch sub {
	case "render", "record":
		var argsParsed SceneArguments
		if err := goutils.ParseFlags(subArgs, &argsParsed); err != nil {
			return err
		}
		if argsParsed.Debug {
			logger.SetLevel(logging.DEBUG)
		}
		cfg, err := readConfig(argsParsed.ConfigFile, logger)
		if err != nil {
			return err
		}
		if cfg.Debug {
			logger.SetLevel(logging.DEBUG)
		}
		if cfg.LogFile != "" {
			appender, closer := logging.NewFileAppender(cfg.LogFile)
			logger.AddAppender(appender)
			defer goutils.UncheckedErrorFunc(closer.Close)
		}
		v, err := loadViewer(cfg, argsParsed, logger)
		if err != nil {
			return err
		}
		if sub == "render" {
			return renderImage(v, argsParsed.Out)
		}
		return recordOrbit(ctx, v, cfg, logger)
	case "stereo":
		var argsParsed StereoArguments
		if err := goutils.ParseFlags(subArgs, &argsParsed); err != nil {
			return err
		}
		if argsParsed.Debug {
			logger.SetLevel(logging.DEBUG)
		}
		stats, err := runStereo(ctx, argsParsed, logger)
		if err != nil {
			return err
		}
		logger.Infow("stereo pairs written", "pairs", stats.Pairs, "dir", argsParsed.Out)
		return nil
	default:
		return errors.Errorf("unknown command %q\n%s", sub, usage)
	}
}

func readConfig(fn string, logger logging.Logger) (*config.Config, error) {
	if fn == "" {
		cfg := &config.Config{}
		cfg.ApplyDefaults()
		return cfg, nil
	}
	return config.Read(fn, logger)
}

// loadViewer builds a viewer showing the trajectory and the clouds. Clouds are fed one frame at a
// time, the way a live mapper grows its map.
func loadViewer(cfg *config.Config, args SceneArguments, logger logging.Logger) (*viewer.Viewer, error) {
	vc, err := cfg.Viewer.ViewerConfig()
	if err != nil {
		return nil, err
	}
	v := viewer.New(vc, logger.Sublogger("viewer"))

	if args.Poses != "" {
		poses, err := trajectory.ReadKITTIFile(args.Poses)
		if err != nil {
			return nil, err
		}
		for i, p := range poses {
			if err := v.AddCamera(p, cfg.Viewer.MarkerScale, trajectory.IsKeyframe(i, cfg.Viewer.KeyframeEvery)); err != nil {
				return nil, errors.Wrapf(err, "pose %d", i)
			}
		}
		logger.Debugw("trajectory loaded", "poses", len(poses))
	}

	clouds, err := pointcloud.NewFromFiles(paths(args.Clouds), logger)
	if err != nil {
		return nil, err
	}
	for i := range clouds {
		v.AddPoints(clouds[:i+1])
	}
	if len(clouds) > 0 {
		logger.Debugw("clouds loaded", "frames", len(clouds), "batches", len(v.Scene().Batches()))
	}
	return v, nil
}

func renderImage(v *viewer.Viewer, out string) (err error) {
	if out == "" {
		return errors.New("render needs an output file through the -out parameter")
	}
	format, err := playback.ParseFormat(strings.TrimPrefix(filepath.Ext(out), "."))
	if err != nil {
		return err
	}
	f, err := os.Create(filepath.Clean(out))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return format.Encode(f, v.GrabFrameBuffer())
}

func recordOrbit(ctx context.Context, v *viewer.Viewer, cfg *config.Config, logger logging.Logger) error {
	pc, err := cfg.Recording.PlayerConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Recording.OutputDir, 0o750); err != nil {
		return err
	}
	player, err := playback.NewPlayer(v, osfs.New(cfg.Recording.OutputDir), pc, nil, logger.Sublogger("playback"))
	if err != nil {
		return err
	}
	stats, err := player.RecordOrbitDemo(ctx)
	if err != nil {
		return err
	}
	logger.Infow("recording finished",
		"dir", filepath.Join(cfg.Recording.OutputDir, stats.Dir),
		"full", stats.FullImages,
		"reduced", stats.ReducedImages,
		"elapsed", stats.Elapsed)
	return nil
}
