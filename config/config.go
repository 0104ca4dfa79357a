// Package config defines the structures to configure the viewer and the recorder.
package config

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/Bearzeng/stereo-vision/playback"
	"github.com/Bearzeng/stereo-vision/render"
	"github.com/Bearzeng/stereo-vision/scene"
	"github.com/Bearzeng/stereo-vision/viewer"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultWidth         = 320
	DefaultHeight        = 480
	DefaultWallDepth     = 1.0
	DefaultKeyframeColor = "#ff0000"
	DefaultFrameColor    = "#ffff00"
	DefaultMarkerScale   = 1.0
	DefaultKeyframeEvery = 5
	DefaultOutputDir     = "recordings"
)

// A Config describes the viewer and the recorder.
type Config struct {
	Viewer    ViewerConfig    `json:"viewer"`
	Recording RecordingConfig `json:"recording"`
	Debug     bool            `json:"debug,omitempty"`
	LogFile   string          `json:"log_file,omitempty"`

	ConfigFilePath string `json:"-"`
}

// ViewerConfig describes the view and what is drawn in it.
type ViewerConfig struct {
	Width               int      `json:"width,omitempty"`
	Height              int      `json:"height,omitempty"`
	ShowGrid            *bool    `json:"show_grid,omitempty"`
	ShowCameras         *bool    `json:"show_cameras,omitempty"`
	ShowBackgroundWall  bool     `json:"show_background_wall,omitempty"`
	BackgroundWallDepth *float64 `json:"background_wall_depth,omitempty"`
	WhiteBackground     bool     `json:"white_background,omitempty"`
	KeyframeColor       string   `json:"keyframe_color,omitempty"`
	FrameColor          string   `json:"frame_color,omitempty"`
	MaxPointBatches     int      `json:"max_point_batches,omitempty"`
	MarkerScale         float64  `json:"marker_scale,omitempty"`
	KeyframeEvery       int      `json:"keyframe_every,omitempty"`
}

// RecordingConfig describes where and how playback frames are stored.
type RecordingConfig struct {
	OutputDir    string  `json:"output_dir,omitempty"`
	Format       string  `json:"format,omitempty"`
	Step         float64 `json:"step,omitempty"`
	ReducedEvery int     `json:"reduced_every,omitempty"`
	Resampler    string  `json:"resampler,omitempty"`
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	c.Viewer.applyDefaults()
	c.Recording.applyDefaults()
}

func (vc *ViewerConfig) applyDefaults() {
	if vc.Width == 0 {
		vc.Width = DefaultWidth
	}
	if vc.Height == 0 {
		vc.Height = DefaultHeight
	}
	if vc.ShowGrid == nil {
		vc.ShowGrid = boolPtr(true)
	}
	if vc.ShowCameras == nil {
		vc.ShowCameras = boolPtr(true)
	}
	if vc.BackgroundWallDepth == nil {
		depth := DefaultWallDepth
		vc.BackgroundWallDepth = &depth
	}
	if vc.KeyframeColor == "" {
		vc.KeyframeColor = DefaultKeyframeColor
	}
	if vc.FrameColor == "" {
		vc.FrameColor = DefaultFrameColor
	}
	if vc.MarkerScale == 0 {
		vc.MarkerScale = DefaultMarkerScale
	}
	if vc.KeyframeEvery == 0 {
		vc.KeyframeEvery = DefaultKeyframeEvery
	}
}

func (rc *RecordingConfig) applyDefaults() {
	if rc.OutputDir == "" {
		rc.OutputDir = DefaultOutputDir
	}
	if rc.Format == "" {
		rc.Format = string(playback.FormatPNG)
	}
	if rc.Step == 0 {
		rc.Step = playback.DefaultStep
	}
	if rc.ReducedEvery == 0 {
		rc.ReducedEvery = playback.DefaultReducedEvery
	}
	if rc.Resampler == "" {
		rc.Resampler = string(playback.Lanczos)
	}
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if err := c.Viewer.Validate(joinPath(path, "viewer")); err != nil {
		return err
	}
	return c.Recording.Validate(joinPath(path, "recording"))
}

// Validate ensures all parts of the config are valid.
func (vc *ViewerConfig) Validate(path string) error {
	if vc.Width < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("width must be positive, got %d", vc.Width))
	}
	if vc.Height < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("height must be positive, got %d", vc.Height))
	}
	if vc.MaxPointBatches < 0 {
		return utils.NewConfigValidationError(path, errors.New("max_point_batches cannot be negative"))
	}
	if vc.MarkerScale < 0 {
		return utils.NewConfigValidationError(path, errors.New("marker_scale cannot be negative"))
	}
	if vc.KeyframeEvery < 0 {
		return utils.NewConfigValidationError(path, errors.New("keyframe_every cannot be negative"))
	}
	for field, hex := range map[string]string{"keyframe_color": vc.KeyframeColor, "frame_color": vc.FrameColor} {
		if hex == "" {
			continue
		}
		if _, err := parseColor(hex); err != nil {
			return utils.NewConfigValidationError(path, errors.Wrapf(err, "error validating %s", field))
		}
	}
	return nil
}

// Validate ensures all parts of the config are valid.
func (rc *RecordingConfig) Validate(path string) error {
	if _, err := playback.ParseFormat(rc.Format); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if _, err := playback.ParseResampler(rc.Resampler); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if rc.Step < 0 || rc.Step > 1 {
		return utils.NewConfigValidationError(path, errors.Errorf("step must be in (0, 1], got %v", rc.Step))
	}
	if rc.ReducedEvery < 0 {
		return utils.NewConfigValidationError(path, errors.New("reduced_every cannot be negative"))
	}
	return nil
}

// RenderOptions converts the draw toggles and colours.
func (vc *ViewerConfig) RenderOptions() (render.Options, error) {
	opts := render.DefaultOptions()
	if vc.ShowGrid != nil {
		opts.ShowGrid = *vc.ShowGrid
	}
	if vc.ShowCameras != nil {
		opts.ShowCameras = *vc.ShowCameras
	}
	opts.ShowBackgroundWall = vc.ShowBackgroundWall
	if vc.BackgroundWallDepth != nil {
		opts.BackgroundWallDepth = *vc.BackgroundWallDepth
	}
	opts.WhiteBackground = vc.WhiteBackground
	if vc.KeyframeColor != "" {
		c, err := parseColor(vc.KeyframeColor)
		if err != nil {
			return render.Options{}, errors.Wrap(err, "keyframe_color")
		}
		opts.KeyframeColor = c
	}
	if vc.FrameColor != "" {
		c, err := parseColor(vc.FrameColor)
		if err != nil {
			return render.Options{}, errors.Wrap(err, "frame_color")
		}
		opts.FrameColor = c
	}
	return opts, nil
}

// ViewerConfig converts to the viewer's own configuration.
func (vc *ViewerConfig) ViewerConfig() (viewer.Config, error) {
	opts, err := vc.RenderOptions()
	if err != nil {
		return viewer.Config{}, err
	}
	return viewer.Config{
		Width:  vc.Width,
		Height: vc.Height,
		Render: opts,
		Scene:  scene.Options{MaxBatches: vc.MaxPointBatches},
	}, nil
}

// PlayerConfig converts to the player's own configuration.
func (rc *RecordingConfig) PlayerConfig() (playback.Config, error) {
	format, err := playback.ParseFormat(rc.Format)
	if err != nil {
		return playback.Config{}, err
	}
	resampler, err := playback.ParseResampler(rc.Resampler)
	if err != nil {
		return playback.Config{}, err
	}
	return playback.Config{
		Step:         rc.Step,
		ReducedEvery: rc.ReducedEvery,
		Format:       format,
		Resampler:    resampler,
	}, nil
}

func parseColor(hex string) (color.RGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

func boolPtr(b bool) *bool {
	return &b
}
