package services

import (
	"fmt"
	"log/slog"
)

// trace collects the operator-facing log of one batch. Each line is also
// sent to the process logger at debug level.
type trace struct {
	lines  []string
	logger *slog.Logger
}

func newTrace(logger *slog.Logger) *trace {
	return &trace{logger: logger}
}

func (t *trace) add(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	t.lines = append(t.lines, line)
	t.logger.Debug(line)
}

func (t *trace) Lines() []string {
	return append([]string{}, t.lines...)
}
