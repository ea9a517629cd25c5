package draco

import (
	"go.uber.org/zap"

	"github.com/Faultbox/dracodec/internal/logger"
)

// log is the package logger; a nop by default so library consumers pay
// nothing.
var log = zap.NewNop()

// SetLogger installs a logger for codec tracing. Passing nil restores
// the nop logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	log = l
}

// SetFileLogger routes codec tracing to a rotated log file at the given
// level, optionally mirroring to the console. An empty path with
// console off restores the nop logger. The installed logger is
// returned so callers can Sync it on shutdown.
func SetFileLogger(level, path string, console bool) *zap.Logger {
	l := logger.New(level, logger.DefaultFileConfig(path), console)
	SetLogger(l)
	return l
}
