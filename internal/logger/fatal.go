package logger

import (
	"fmt"
	"log/slog"
	"os"
)

// Fatalf reports an unrecoverable startup error and exits. For use before
// the bridge logger exists (config parsing, logger construction).
func Fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}

// FatalWithLogger reports an unrecoverable error through the bridge logger
// and exits.
func FatalWithLogger(logger *slog.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}
