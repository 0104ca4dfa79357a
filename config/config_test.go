package config

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"github.com/Bearzeng/stereo-vision/logging"
	"github.com/Bearzeng/stereo-vision/playback"
)

func TestFromReaderDefaults(t *testing.T) {
	cfg, err := FromReader("", strings.NewReader(`{}`), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Viewer.Width, test.ShouldEqual, DefaultWidth)
	test.That(t, cfg.Viewer.Height, test.ShouldEqual, DefaultHeight)
	test.That(t, *cfg.Viewer.ShowGrid, test.ShouldBeTrue)
	test.That(t, *cfg.Viewer.ShowCameras, test.ShouldBeTrue)
	test.That(t, cfg.Viewer.ShowBackgroundWall, test.ShouldBeFalse)
	test.That(t, *cfg.Viewer.BackgroundWallDepth, test.ShouldEqual, DefaultWallDepth)
	test.That(t, cfg.Recording.OutputDir, test.ShouldEqual, DefaultOutputDir)
	test.That(t, cfg.Recording.Format, test.ShouldEqual, "png")
	test.That(t, cfg.Recording.Step, test.ShouldEqual, playback.DefaultStep)

	opts, err := cfg.Viewer.RenderOptions()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, opts.ShowGrid, test.ShouldBeTrue)
	test.That(t, opts.ShowCameras, test.ShouldBeTrue)
	test.That(t, opts.WhiteBackground, test.ShouldBeFalse)
	test.That(t, opts.KeyframeColor, test.ShouldResemble, color.RGBA{R: 255, A: 255})
	test.That(t, opts.FrameColor, test.ShouldResemble, color.RGBA{R: 255, G: 255, A: 255})
}

func TestFromReader(t *testing.T) {
	const doc = `{
		"viewer": {
			"width": 640,
			"height": 480,
			"show_grid": false,
			"show_background_wall": true,
			"background_wall_depth": 12.5,
			"white_background": true,
			"keyframe_color": "#00ff00",
			"max_point_batches": 30
		},
		"recording": {"output_dir": "/tmp/out", "format": "qoi", "step": 0.1, "resampler": "bicubic"},
		"debug": true,
		"log_file": "/tmp/out/stereomapper.log"
	}`
	cfg, err := FromReader("mem.json", strings.NewReader(doc), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, "mem.json")
	test.That(t, cfg.Debug, test.ShouldBeTrue)
	test.That(t, cfg.LogFile, test.ShouldEqual, "/tmp/out/stereomapper.log")

	vc, err := cfg.Viewer.ViewerConfig()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vc.Width, test.ShouldEqual, 640)
	test.That(t, vc.Scene.MaxBatches, test.ShouldEqual, 30)
	test.That(t, vc.Render.ShowGrid, test.ShouldBeFalse)
	test.That(t, vc.Render.ShowCameras, test.ShouldBeTrue)
	test.That(t, vc.Render.ShowBackgroundWall, test.ShouldBeTrue)
	test.That(t, vc.Render.BackgroundWallDepth, test.ShouldEqual, 12.5)
	test.That(t, vc.Render.WhiteBackground, test.ShouldBeTrue)
	test.That(t, vc.Render.KeyframeColor, test.ShouldResemble, color.RGBA{G: 255, A: 255})

	pc, err := cfg.Recording.PlayerConfig()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Format, test.ShouldEqual, playback.FormatQOI)
	test.That(t, pc.Resampler, test.ShouldEqual, playback.Bicubic)
	test.That(t, pc.Step, test.ShouldEqual, 0.1)
	test.That(t, pc.ReducedEvery, test.ShouldEqual, playback.DefaultReducedEvery)
}

func TestBackgroundWallDepthKeepsExplicitValues(t *testing.T) {
	for _, depth := range []float64{0, -2.5, 7} {
		doc := fmt.Sprintf(`{"viewer": {"show_background_wall": true, "background_wall_depth": %v}}`, depth)
		cfg, err := FromReader("", strings.NewReader(doc), logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, *cfg.Viewer.BackgroundWallDepth, test.ShouldEqual, depth)

		opts, err := cfg.Viewer.RenderOptions()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, opts.ShowBackgroundWall, test.ShouldBeTrue)
		test.That(t, opts.BackgroundWallDepth, test.ShouldEqual, depth)
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
		msg  string
	}{
		{"bad json", `{"viewer": `, "decode"},
		{"width", `{"viewer": {"width": -1}}`, "width"},
		{"batches", `{"viewer": {"max_point_batches": -2}}`, "max_point_batches"},
		{"colour", `{"viewer": {"frame_color": "yellow"}}`, "frame_color"},
		{"format", `{"recording": {"format": "gif"}}`, "gif"},
		{"resampler", `{"recording": {"resampler": "nearest"}}`, "nearest"},
		{"step", `{"recording": {"step": 2}}`, "step"},
		{"reduced", `{"recording": {"reduced_every": -3}}`, "reduced_every"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromReader("", strings.NewReader(tc.doc), logging.NewTestLogger(t))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.msg)
		})
	}
}

func TestReadSubstitutesEnvironment(t *testing.T) {
	t.Setenv("STEREO_OUTPUT_DIR", "/data/session")
	fn := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(fn, []byte(`{"recording": {"output_dir": "${STEREO_OUTPUT_DIR}"}}`), 0o600)
	test.That(t, err, test.ShouldBeNil)

	cfg, err := Read(fn, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Recording.OutputDir, test.ShouldEqual, "/data/session")
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, fn)

	_, err = Read(filepath.Join(t.TempDir(), "missing.json"), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
