// Package logging builds the process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/common/promslog"
)

// New returns a logfmt logger writing to w at the given level (debug, info,
// warn or error).
func New(w io.Writer, level string) (*slog.Logger, error) {
	lvl := promslog.NewLevel()
	if err := lvl.Set(level); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	format := promslog.NewFormat()
	if err := format.Set("logfmt"); err != nil {
		return nil, fmt.Errorf("log format: %w", err)
	}

	return promslog.New(&promslog.Config{
		Level:  lvl,
		Format: format,
		Style:  promslog.GoKitStyle,
		Writer: w,
	}), nil
}

// Setup builds a logger with New and installs it as slog's default.
func Setup(w io.Writer, level string) (*slog.Logger, error) {
	logger, err := New(w, level)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
