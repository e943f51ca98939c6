package logger

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"

	"github.com/xregistry/bridge/theme"
)

// StyledLogger wraps slog.Logger with theme-aware formatting for terminal
// output. Upstream names and counts get colour on TTYs; the underlying slog
// handler strips the codes for file output.
type StyledLogger struct {
	logger *slog.Logger
	Theme  *theme.Theme
}

func NewStyledLogger(logger *slog.Logger, theme *theme.Theme) *StyledLogger {
	return &StyledLogger{
		logger: logger,
		Theme:  theme,
	}
}

func (sl *StyledLogger) Debug(msg string, args ...any) {
	sl.logger.Debug(msg, args...)
}

func (sl *StyledLogger) Info(msg string, args ...any) {
	sl.logger.Info(msg, args...)
}

func (sl *StyledLogger) Warn(msg string, args ...any) {
	sl.logger.Warn(msg, args...)
}

func (sl *StyledLogger) Error(msg string, args ...any) {
	sl.logger.Error(msg, args...)
}

func (sl *StyledLogger) InfoWithCount(msg string, count int, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Counts}.Sprint("(", count, ")"))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) InfoWithUpstream(msg string, upstream string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Upstream}.Sprint(upstream))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) WarnWithUpstream(msg string, upstream string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Upstream}.Sprint(upstream))
	sl.logger.Warn(styledMsg, args...)
}

func (sl *StyledLogger) ErrorWithUpstream(msg string, upstream string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Upstream}.Sprint(upstream))
	sl.logger.Error(styledMsg, args...)
}

// InfoUpstreamStatus logs an upstream state transition with coloured status.
func (sl *StyledLogger) InfoUpstreamStatus(msg string, upstream string, active bool, args ...any) {
	statusColor := sl.Theme.HealthInactive
	statusText := "inactive"
	if active {
		statusColor = sl.Theme.HealthActive
		statusText = "active"
	}

	styledMsg := fmt.Sprintf("%s %s is %s", msg,
		pterm.Style{sl.Theme.Upstream}.Sprint(upstream),
		pterm.Style{statusColor}.Sprint(statusText))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) GetUnderlying() *slog.Logger {
	return sl.logger
}

func (sl *StyledLogger) WithRequestID(requestID string) *StyledLogger {
	return sl.With("request_id", requestID)
}

func (sl *StyledLogger) With(args ...any) *StyledLogger {
	return &StyledLogger{
		logger: sl.logger.With(args...),
		Theme:  sl.Theme,
	}
}
