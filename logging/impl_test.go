package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

func TestObservedLevels(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)

	logger.Debugw("debug msg", "frame", 3)
	logger.Info("info msg")
	test.That(t, logs.Len(), test.ShouldEqual, 2)
	test.That(t, logs.All()[0].ContextMap()["frame"], test.ShouldEqual, int64(3))

	logger.SetLevel(WARN)
	logger.Info("dropped")
	logger.Warnf("kept %d", 1)
	test.That(t, logs.Len(), test.ShouldEqual, 3)
	test.That(t, logs.All()[2].Message, test.ShouldEqual, "kept 1")
}

func TestSubloggerName(t *testing.T) {
	out := &bytes.Buffer{}
	logger := NewBlankLogger("viewer")
	logger.AddAppender(NewWriterAppender(out))

	sub := logger.Sublogger("playback")
	sub.Infow("storing", "file", "img_320_480_000000.png")

	line := out.String()
	test.That(t, line, test.ShouldContainSubstring, "viewer.playback")
	test.That(t, line, test.ShouldContainSubstring, "INFO")
	test.That(t, line, test.ShouldContainSubstring, `{"file": "img_320_480_000000.png"}`)
	test.That(t, strings.Count(line, "\n"), test.ShouldEqual, 1)
}

func TestUnpairedKey(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Errorw("oops", "lonely")
	test.That(t, logs.Len(), test.ShouldEqual, 1)
	test.That(t, logs.All()[0].ContextMap()["lonely"], test.ShouldNotBeNil)
}

func TestLevelFromString(t *testing.T) {
	level, err := LevelFromString("WARN")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)

	_, err = LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFileAppender(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "stereomapper.log")
	appender, closer := NewFileAppender(fn)
	logger := NewBlankLogger("file")
	logger.AddAppender(appender)
	logger.Infow("stored frame", "index", 3)
	test.That(t, logger.Sync(), test.ShouldBeNil)
	test.That(t, closer.Close(), test.ShouldBeNil)

	//nolint:gosec
	content, err := os.ReadFile(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(content), test.ShouldContainSubstring, "stored frame")
	test.That(t, string(content), test.ShouldContainSubstring, "index")
}
