// Package logging wires the structured logger and the JSON-lines operational
// logs (tool operations, process stats) under .clio/logs/.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls logger construction.
type Config struct {
	Dir     string // log directory, typically .clio/logs
	Debug   bool   // lowers the threshold to debug
	Console bool   // mirror human-readable output to stderr
}

// New builds the application logger: JSON lines to a daily file (size-capped
// by lumberjack), optionally mirrored to the console. Callers tag subsystem
// loggers with .With().Str("module", ...).
func New(cfg Config) (zerolog.Logger, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return zerolog.Nop(), err
	}

	fileSink := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, "clio_"+time.Now().Format("2006-01-02")+".log"),
		MaxSize:    50, // megabytes per daily file
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}

	var out io.Writer = fileSink
	if cfg.Console {
		console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		out = zerolog.MultiLevelWriter(fileSink, console)
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return logger, nil
}
