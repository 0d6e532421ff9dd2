package main

import (
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// newLogger creates the service logger.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
// level and format have already been checked by config validation;
// unknown values fall back to info and text.
func newLogger(w io.Writer, level, format string) *log.Logger {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}

	formatter := log.TextFormatter
	if strings.EqualFold(format, "json") {
		formatter = log.JSONFormatter
	}

	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           lvl,
		Formatter:       formatter,
	})
}
