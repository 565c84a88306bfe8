// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/bureau-foundation/trustplane/lib/config"
)

// NewLogger creates the structured logger for a command from the
// logging configuration. Format "auto" picks slog.TextHandler when w
// is a terminal and slog.JSONHandler otherwise (pipes, CI, log
// collectors).
//
// Callers scope the logger with command-specific context via With():
//
//	logger = logger.With("command", "token/issue")
func NewLogger(w io.Writer, logging config.LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	if logging.Level != "" {
		if err := level.UnmarshalText([]byte(logging.Level)); err != nil {
			return nil, fmt.Errorf("logging.level: %w", err)
		}
	}
	options := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch logging.Format {
	case "", "json":
		handler = slog.NewJSONHandler(w, options)
	case "text":
		handler = slog.NewTextHandler(w, options)
	case "auto":
		if isTerminal(w) {
			handler = slog.NewTextHandler(w, options)
		} else {
			handler = slog.NewJSONHandler(w, options)
		}
	default:
		return nil, fmt.Errorf("logging.format %q: want json, text, or auto", logging.Format)
	}
	return slog.New(handler), nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
