package main

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/aybabtme/uniplot/histogram"
	_ "github.com/lmittmann/ppm" // register ppm
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/osfs"

	"github.com/Bearzeng/stereo-vision/logging"
	"github.com/Bearzeng/stereo-vision/playback"
	"github.com/Bearzeng/stereo-vision/stereo"
	"github.com/Bearzeng/stereo-vision/utils"
)

type stereoStats struct {
	Pairs int
}

// runStereo feeds every left/right pair through a stereo buffer from a producer goroutine while
// a consumer goroutine snapshots each completed pair and writes it out.
func runStereo(ctx context.Context, args StereoArguments, logger logging.Logger) (stereoStats, error) {
	var stats stereoStats
	if len(args.Left) == 0 || len(args.Left) != len(args.Right) {
		return stats, errors.Errorf("need matching -left and -right images, got %d and %d", len(args.Left), len(args.Right))
	}
	if err := os.MkdirAll(args.Out, 0o750); err != nil {
		return stats, err
	}
	fs := osfs.New(args.Out)
	buf := stereo.NewBuffer(nil, logger.Sublogger("stereo"))

	// the listener runs on the producer goroutine, so each pair is normalized and copied out
	// before the next one can replace it
	frames := make(chan stereo.Frame, 1)
	if err := buf.Subscribe("writer", func(info stereo.Info) {
		if args.Normalize {
			buf.NormalizeChannel(stereo.Left)
			buf.NormalizeChannel(stereo.Right)
		}
		frame := buf.Snapshot()
		buf.MarkConsumed()
		logger.Debugw("stereo pair ready", "seq", info.Seq, "age", buf.Age())
		if args.Debug {
			logHistogram(logger, frame, stereo.Left)
			logHistogram(logger, frame, stereo.Right)
		}
		select {
		case frames <- frame:
		case <-ctx.Done():
		}
	}); err != nil {
		return stats, err
	}
	defer goutils.UncheckedErrorFunc(func() error { return buf.Unsubscribe("writer") })

	var produceErr, consumeErr error
	workers := utils.NewStoppableWorkers(ctx,
		func(ctx context.Context) {
			defer close(frames)
			for i := range args.Left {
				if err := ctx.Err(); err != nil {
					produceErr = err
					return
				}
				if err := loadPair(buf, string(args.Left[i]), string(args.Right[i])); err != nil {
					produceErr = errors.Wrapf(err, "pair %d", i)
					return
				}
			}
		},
		func(context.Context) {
			for frame := range frames {
				if consumeErr != nil {
					continue
				}
				if err := writePair(fs, stats.Pairs, frame); err != nil {
					consumeErr = err
					continue
				}
				stats.Pairs++
			}
		},
	)
	workers.Wait()
	workers.Stop()
	return stats, multierr.Combine(produceErr, consumeErr)
}

func loadPair(buf *stereo.Buffer, left, right string) error {
	for _, side := range []struct {
		fn string
		ch stereo.Channel
	}{{left, stereo.Left}, {right, stereo.Right}} {
		gray, err := readGray(side.fn)
		if err != nil {
			return err
		}
		b := gray.Bounds()
		info, err := os.Stat(side.fn)
		if err != nil {
			return err
		}
		if err := buf.SetImage(gray.Pix, b.Dx(), b.Dy(), gray.Stride, side.ch, false, info.ModTime()); err != nil {
			return errors.Wrap(err, side.fn)
		}
	}
	return nil
}

func readGray(fn string) (*image.Gray, error) {
	//nolint:gosec
	f, err := os.Open(filepath.Clean(fn))
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %q", fn)
	}
	if gray, ok := img.(*image.Gray); ok && gray.Rect.Min == (image.Point{}) {
		return gray, nil
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray, nil
}

func logHistogram(logger logging.Logger, frame stereo.Frame, ch stereo.Channel) {
	hist := stereo.IntensityHistogram(frame.Raster(ch), frame.Width, frame.Height, frame.Step, 8)
	if len(hist.Buckets) == 0 {
		return
	}
	var sb strings.Builder
	if err := histogram.Fprint(&sb, hist, histogram.Linear(40)); err != nil {
		logger.Debugw("cannot print histogram", "error", err)
		return
	}
	logger.Debugf("%s intensities of pair %d\n%s", ch, frame.Seq, sb.String())
	if summary, err := stereo.SummarizeIntensity(frame.Raster(ch), frame.Width, frame.Height, frame.Step); err == nil {
		logger.Debugw("intensity summary", "channel", ch, "seq", frame.Seq,
			"mean", summary.Mean, "median", summary.Median, "stddev", summary.StdDev)
	}
}

func writePair(fs billy.Filesystem, i int, frame stereo.Frame) error {
	for _, ch := range []stereo.Channel{stereo.Left, stereo.Right} {
		name := fmt.Sprintf("%s_%06d.png", ch, i)
		if err := writeGray(fs, name, frame.Gray(ch)); err != nil {
			return err
		}
	}
	return nil
}

func writeGray(fs billy.Filesystem, name string, img *image.Gray) (err error) {
	f, err := fs.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return playback.FormatPNG.Encode(f, img)
}
