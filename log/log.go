// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

// Package log implements the logger interface used by go-submit to trace the
// SMTP negotiation dialogue
package log

// Level is a type wrapper for the log level of a Logger
type Level int

const (
	// LevelError only logs error messages
	LevelError Level = iota

	// LevelWarn logs warning and error messages
	LevelWarn

	// LevelInfo logs informational, warning and error messages
	LevelInfo

	// LevelDebug logs all messages including the full wire dialogue
	LevelDebug
)

const (
	DirServerToClient Direction = iota // Server to Client communication
	DirClientToServer                  // Client to Server communication
)

const (
	// DirString is the log field name grouping the communication direction
	DirString = "direction"

	// DirFromString is the log field name for the sending side of an exchange
	DirFromString = "from"

	// DirToString is the log field name for the receiving side of an exchange
	DirToString = "to"
)

// Direction is a type wrapper for the direction a debug log message goes
type Direction int

// Log represents a log message type that holds a log Direction, a Format string
// and a slice of Messages
type Log struct {
	Direction Direction
	Format    string
	Messages  []interface{}
}

// Logger is the log interface for go-submit
type Logger interface {
	Debugf(Log)
	Infof(Log)
	Warnf(Log)
	Errorf(Log)
}

// directionPrefix returns a prefix string indicating the direction of the
// logged wire exchange
func (l Log) directionPrefix() string {
	if l.Direction == DirServerToClient {
		return "S --> C:"
	}
	return "C --> S:"
}

// directionFrom returns the originating side of the logged exchange
func (l Log) directionFrom() string {
	if l.Direction == DirServerToClient {
		return "server"
	}
	return "client"
}

// directionTo returns the receiving side of the logged exchange
func (l Log) directionTo() string {
	if l.Direction == DirServerToClient {
		return "client"
	}
	return "server"
}
