// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package log

import (
	"fmt"
	"io"
	"log"
)

// Stdlog is the default logger satisfying the Logger interface. It writes
// plain text log lines via the standard library log package
type Stdlog struct {
	level Level
	out   *log.Logger
}

// callDepth is the call depth value for the log.Logger's Output method, so
// reported file/line information points at the caller of go-submit's logging
const callDepth = 3

// New returns a new Stdlog type that satisfies the Logger interface
func New(output io.Writer, level Level) *Stdlog {
	return &Stdlog{
		level: level,
		out:   log.New(output, "", log.Lmsgprefix|log.LstdFlags),
	}
}

// Debugf logs a debug message including the wire direction
func (l *Stdlog) Debugf(lo Log) {
	l.write(LevelDebug, "DEBUG", lo)
}

// Infof logs an informational message
func (l *Stdlog) Infof(lo Log) {
	l.write(LevelInfo, " INFO", lo)
}

// Warnf logs a warning message
func (l *Stdlog) Warnf(lo Log) {
	l.write(LevelWarn, " WARN", lo)
}

// Errorf logs an error message
func (l *Stdlog) Errorf(lo Log) {
	l.write(LevelError, "ERROR", lo)
}

func (l *Stdlog) write(level Level, prefix string, lo Log) {
	if l.level < level {
		return
	}
	format := fmt.Sprintf("%s: %s %s", prefix, lo.directionPrefix(), lo.Format)
	_ = l.out.Output(callDepth, fmt.Sprintf(format, lo.Messages...))
}
