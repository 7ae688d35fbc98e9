package badgerstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// slogLogger routes badger's printf-style logging into slog. Badger's info
// chatter is demoted to debug.
type slogLogger struct {
	logger *slog.Logger
}

func (l slogLogger) Errorf(format string, args ...any) {
	l.log(slog.LevelError, format, args...)
}

func (l slogLogger) Warningf(format string, args ...any) {
	l.log(slog.LevelWarn, format, args...)
}

func (l slogLogger) Infof(format string, args ...any) {
	l.log(slog.LevelDebug, format, args...)
}

func (l slogLogger) Debugf(format string, args ...any) {
	l.log(slog.LevelDebug, format, args...)
}

func (l slogLogger) log(level slog.Level, format string, args ...any) {
	if !l.logger.Enabled(context.Background(), level) {
		return
	}
	l.logger.Log(context.Background(), level, strings.TrimSpace(fmt.Sprintf(format, args...)))
}
