package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// Interface is the logging surface every layer of the app depends on
// instead of a concrete zerolog.Logger, so tests can substitute a fake.
type Interface interface {
	Debug(message string, args ...interface{})
	Info(message string, args ...interface{})
	Warn(message string, args ...interface{})
	Error(err error, message string, args ...interface{})
	Fatal(err error)
}

type Logger struct {
	logger *zerolog.Logger
}

var _ Interface = (*Logger)(nil)

func New(level string) *Logger {
	var l zerolog.Level

	switch level {
	case "debug":
		l = zerolog.DebugLevel
	case "warn":
		l = zerolog.WarnLevel
	case "error":
		l = zerolog.ErrorLevel
	case "fatal":
		l = zerolog.FatalLevel
	default:
		l = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(l)

	skipFrameCount := 3
	logger := zerolog.New(os.Stdout).With().Timestamp().CallerWithSkipFrameCount(zerolog.CallerSkipFrameCount + skipFrameCount).Logger()

	return &Logger{logger: &logger}
}

func (l *Logger) Debug(message string, args ...interface{}) {
	l.log(message, args...).Msg("debug")
}

func (l *Logger) Info(message string, args ...interface{}) {
	l.msg("info", message, args...)
}

func (l *Logger) Warn(message string, args ...interface{}) {
	l.msg("warn", message, args...)
}

func (l *Logger) Error(err error, message string, args ...interface{}) {
	if err != nil {
		message = message + ": " + err.Error()
	}

	l.msg("error", message, args...)
}

func (l *Logger) Fatal(err error) {
	l.log("", err).Msg("fatal")
	os.Exit(1)
}

func (l *Logger) log(message string, args ...interface{}) *zerolog.Event {
	if len(args) == 0 {
		return l.logger.Log().Str("message", message)
	}

	return l.logger.Log().Str("message", message).Interface("args", args)
}

func (l *Logger) msg(level string, message string, args ...interface{}) {
	switch level {
	case "debug":
		l.log(message, args...).Msg("debug")
	case "warn":
		l.log(message, args...).Msg("warn")
	case "error":
		l.log(message, args...).Msg("error")
	default:
		l.log(message, args...).Msg("info")
	}
}
