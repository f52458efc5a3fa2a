package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarning
	LogLevelInfo
	LogLevelDebug
)

// ParseLevel maps a textual level to a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch s {
	case "none", "off":
		return LogLevelNone
	case "error":
		return LogLevelError
	case "warn", "warning":
		return LogLevelWarning
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelInfo
	}
}

type Logger struct {
	sugar *zap.SugaredLogger
	level LogLevel
	tag   string
}

// NewLogger wraps z. A nil z yields a logger that discards everything.
func NewLogger(z *zap.Logger, level LogLevel) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{
		sugar: z.WithOptions(zap.AddCallerSkip(1)).Sugar(),
		level: level,
		tag:   "",
	}
}

// NewConsole builds a console-encoded zap logger writing to stdout.
func NewConsole(level LogLevel) *Logger {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:    "message",
		LevelKey:      "level",
		TimeKey:       "timestamp",
		NameKey:       "logger",
		CallerKey:     "caller",
		StacktraceKey: "stacktrace",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		zapcore.DebugLevel,
	)
	return NewLogger(zap.New(core, zap.AddCaller()), level)
}

// WithTag creates a new logger with a tag prefix
func (l *Logger) WithTag(tag string) *Logger {
	return &Logger{
		sugar: l.sugar,
		level: l.level,
		tag:   tag,
	}
}

func (l *Logger) formatMessage(format string) string {
	if l.tag != "" {
		return "[" + l.tag + "] " + format
	}
	return format
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.level >= LogLevelDebug {
		l.sugar.Debugf(l.formatMessage(format), v...)
	}
}

func (l *Logger) Infof(format string, v ...interface{}) {
	if l.level >= LogLevelInfo {
		l.sugar.Infof(l.formatMessage(format), v...)
	}
}

// Printf is an alias for Infof for compatibility
func (l *Logger) Printf(format string, v ...interface{}) {
	l.Infof(format, v...)
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	if l.level >= LogLevelWarning {
		l.sugar.Warnf(l.formatMessage(format), v...)
	}
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	if l.level >= LogLevelError {
		l.sugar.Errorf(l.formatMessage(format), v...)
	}
}

func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.sugar.Fatalf(l.formatMessage(format), v...)
}

// Sync flushes buffered zap output.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
