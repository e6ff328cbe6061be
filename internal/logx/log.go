package logx

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stdout)
)

func init() {
	zerolog.TimestampFieldName = "ts"
	zerolog.MessageFieldName = "msg"
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
}

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

// SetOutput redirects all log events to w, keeping the current level.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = zerolog.New(w).With().Timestamp().Logger().Level(logger.GetLevel())
}

// SetLevel parses level ("debug", "info", "warn", "error") and applies it.
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return err
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	mu.Lock()
	defer mu.Unlock()
	logger = logger.Level(lvl)
	return nil
}

// DebugEnabled reports whether debug events are currently written.
func DebugEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return logger.GetLevel() <= zerolog.DebugLevel
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}

func emit(ev *zerolog.Event, service, msg string, extra any) {
	if ev == nil {
		return
	}
	ev = ev.Str("service", service)
	if extra != nil {
		ev = ev.Interface("extra", extra)
	}
	ev.Msg(msg)
}

func Debug(service, msg string, extra any) {
	emit(current().Debug(), service, msg, extra)
}

func Info(service, msg string, extra any) {
	emit(current().Info(), service, msg, extra)
}

func Warn(service, msg string, extra any) {
	emit(current().Warn(), service, msg, extra)
}

func Error(service, msg string, err error, extra any) {
	ev := current().Error()
	if err != nil {
		ev = ev.Err(err)
	}
	emit(ev, service, msg, extra)
}
