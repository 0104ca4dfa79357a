package logging

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits of file appenders.
const (
	maxLogFileMB      = 100
	maxLogFileBackups = 3
)

// Appender is an output for log entries. `zapcore.Core` satisfies it, which is how the test
// observer gets attached.
type Appender interface {
	Write(zapcore.Entry, []zapcore.Field) error
	Sync() error
}

// ConsoleAppender writes entries in zap's console format to an io.Writer.
type ConsoleAppender struct {
	mu      sync.Mutex
	out     io.Writer
	encoder zapcore.Encoder
}

// NewStdoutAppender creates a ConsoleAppender writing to stdout.
func NewStdoutAppender() *ConsoleAppender {
	return NewWriterAppender(os.Stdout)
}

// NewWriterAppender creates a ConsoleAppender writing to the given writer.
func NewWriterAppender(out io.Writer) *ConsoleAppender {
	return &ConsoleAppender{
		out:     out,
		encoder: zapcore.NewConsoleEncoder(NewZapLoggerConfig().EncoderConfig),
	}
}

// NewFileAppender creates a ConsoleAppender writing to a size-rotated, compressed log file. The
// returned closer closes the current file.
func NewFileAppender(filename string) (*ConsoleAppender, io.Closer) {
	out := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    maxLogFileMB,
		MaxBackups: maxLogFileBackups,
		Compress:   true,
	}
	return NewWriterAppender(out), out
}

// Write outputs the entry with its fields JSON-encoded at the end of the line.
func (appender *ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := appender.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()

	appender.mu.Lock()
	defer appender.mu.Unlock()
	_, err = appender.out.Write(buf.Bytes())
	return err
}

// Sync syncs the underlying writer if it supports it.
func (appender *ConsoleAppender) Sync() error {
	if syncer, ok := appender.out.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil && appender.out != os.Stdout {
			return err
		}
	}
	return nil
}
