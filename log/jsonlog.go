// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package log

import (
	"fmt"
	"io"
	"log/slog"
)

// JSONlog is a structured JSON logger that satisfies the Logger interface
type JSONlog struct {
	level Level
	log   *slog.Logger
}

// NewJSON returns a new JSONlog type that satisfies the Logger interface
func NewJSON(output io.Writer, level Level) *JSONlog {
	logOpts := slog.HandlerOptions{}
	switch level {
	case LevelDebug:
		logOpts.Level = slog.LevelDebug
	case LevelInfo:
		logOpts.Level = slog.LevelInfo
	case LevelWarn:
		logOpts.Level = slog.LevelWarn
	case LevelError:
		logOpts.Level = slog.LevelError
	default:
		logOpts.Level = slog.LevelDebug
	}
	return &JSONlog{
		level: level,
		log:   slog.New(slog.NewJSONHandler(output, &logOpts)),
	}
}

// logJSONMessage annotates the slog logger with the direction of the logged
// wire exchange and returns it
func logJSONMessage(l *slog.Logger, lo Log) *slog.Logger {
	return l.WithGroup(DirString).With(
		slog.String(DirFromString, lo.directionFrom()),
		slog.String(DirToString, lo.directionTo()),
	)
}

// Debugf logs a debug message via the structured JSON logger
func (l *JSONlog) Debugf(lo Log) {
	if l.level >= LevelDebug {
		logJSONMessage(l.log, lo).Debug(fmt.Sprintf(lo.Format, lo.Messages...))
	}
}

// Infof logs an info message via the structured JSON logger
func (l *JSONlog) Infof(lo Log) {
	if l.level >= LevelInfo {
		logJSONMessage(l.log, lo).Info(fmt.Sprintf(lo.Format, lo.Messages...))
	}
}

// Warnf logs a warn message via the structured JSON logger
func (l *JSONlog) Warnf(lo Log) {
	if l.level >= LevelWarn {
		logJSONMessage(l.log, lo).Warn(fmt.Sprintf(lo.Format, lo.Messages...))
	}
}

// Errorf logs an error message via the structured JSON logger
func (l *JSONlog) Errorf(lo Log) {
	if l.level >= LevelError {
		logJSONMessage(l.log, lo).Error(fmt.Sprintf(lo.Format, lo.Messages...))
	}
}
