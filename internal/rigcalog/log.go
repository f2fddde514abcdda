// Package rigcalog provides the logging interface used throughout the calibration
// pipeline. It wraps zap the same way rdk's logging package does: a narrow
// interface so call sites never depend on zap's concrete types directly.
package rigcalog

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Logger is the subset of zap's SugaredLogger that the pipeline uses. Every
// package takes one of these rather than reaching for the global zap logger,
// so tests can inject an observed logger and assert on output if needed.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Named(name string) Logger

	// Debug, Info, Warn, and Fatal are required so a Logger satisfies
	// go.viam.com/utils's ILogger constraint for utils.ContextualMain.
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Fatal(args ...interface{})
}

type sugarLogger struct {
	*zap.SugaredLogger
}

func (l *sugarLogger) Named(name string) Logger {
	return &sugarLogger{l.SugaredLogger.Named(name)}
}

// config mirrors the console encoder rdk's logging.NewLoggerConfig builds: colored
// levels, ISO8601 timestamps, no stacktraces for ordinary calibration runs.
func config() zap.Config {
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// NewLogger returns a logger that writes Info+ to stdout, named for its component
// (e.g. "features", "solve") so interleaved worker-pool output stays attributable.
func NewLogger(name string) Logger {
	l, err := config().Build()
	if err != nil {
		// zap.Config.Build only fails on bad sink URLs; ours are stdout/stderr.
		panic(err)
	}
	return &sugarLogger{l.Named(name).Sugar()}
}

// NewDebugLogger is NewLogger with the level lowered to Debug, used by the -v CLI flag.
func NewDebugLogger(name string) Logger {
	cfg := config()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return &sugarLogger{l.Named(name).Sugar()}
}

// NewTestLogger returns a logger scoped to a test's lifetime via zaptest.
func NewTestLogger(tb testing.TB) Logger {
	return &sugarLogger{zaptest.NewLogger(tb).Sugar()}
}
