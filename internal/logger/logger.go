// Package logger provides tagged loggers backed by zerolog. In the TUI the
// console output is routed into the debug pane; non-interactive commands log
// to stderr instead.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rivo/tview"
	"github.com/rs/zerolog"
)

type Logger struct {
	zl zerolog.Logger
}

var (
	once    sync.Once
	root    zerolog.Logger
	logFile *os.File
)

// Init configures the shared root logger. view, when non-nil, receives
// human-readable output (the TUI debug console); logPath, when non-empty,
// names a directory that receives a timestamped JSON log file. With dev set
// and no view, output goes to stderr. Later calls are no-ops.
func Init(dev bool, logPath string, view *tview.TextView) error {
	var initErr error
	once.Do(func() {
		var writers []io.Writer

		if view != nil {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        tview.ANSIWriter(view),
				TimeFormat: "15:04:05",
			})
		} else if dev {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: "15:04:05",
			})
		}

		if logPath != "" {
			timestamp := time.Now().Format("20060102_150405")
			filePath := filepath.Join(logPath, fmt.Sprintf("termchat_%s.log", timestamp))
			file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				initErr = fmt.Errorf("failed to open log file: %w", err)
				return
			}
			logFile = file
			writers = append(writers, file)
		}

		level := zerolog.InfoLevel
		if len(writers) == 0 {
			level = zerolog.Disabled
		}
		root = zerolog.New(zerolog.MultiLevelWriter(writers...)).
			Level(level).
			With().Timestamp().Logger()
	})
	return initErr
}

// New returns a logger whose entries carry the given tag.
func New(tag string) *Logger {
	return &Logger{zl: root.With().Str("tag", tag).Logger()}
}

func (l *Logger) Info(v ...interface{}) {
	l.zl.Info().Msg(fmt.Sprint(v...))
}

func (l *Logger) Warn(v ...interface{}) {
	l.zl.Warn().Msg(fmt.Sprint(v...))
}

func (l *Logger) Error(v ...interface{}) {
	l.zl.Error().Msg(fmt.Sprint(v...))
}

func (l *Logger) Fatal(v ...interface{}) {
	l.zl.Fatal().Msg(fmt.Sprint(v...))
}

// Close flushes and closes the log file, if any.
func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}
