// Package logger builds the zap loggers used across dialogue.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	// Debug lowers the level to zap.DebugLevel.
	Debug bool

	// JSON switches from the coloured console encoder to JSON lines,
	// which is what the server wants when its output is collected.
	JSON bool

	// Output defaults to os.Stdout.
	Output io.Writer

	// Level, when set, controls the level instead of Debug and can be
	// changed while the logger is in use.
	Level *zap.AtomicLevel
}

// New returns a logger configured by opts.
func New(opts Options) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if opts.JSON {
		encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var level zapcore.LevelEnabler = LevelFor(opts.Debug)
	if opts.Level != nil {
		level = opts.Level
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), level)
	return zap.New(core, zap.AddCaller())
}

// LevelFor maps the debug switch to a level.
func LevelFor(debug bool) zapcore.Level {
	if debug {
		return zap.DebugLevel
	}
	return zap.InfoLevel
}
