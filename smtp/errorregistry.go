// SPDX-FileCopyrightText: The go-submit Authors
//
// SPDX-License-Identifier: MIT

package smtp

import (
	"net/textproto"
	"strings"
	"sync"
)

// ReplyErrorHandler provides custom handling for failed SMTP reply exchanges.
// A handler is invoked with the raw textproto connection whenever a reply
// does not match the accepted status set or cannot be parsed. Returning nil
// signals that the handler recovered the session, for example by consuming
// stray data, and that the reply should be read again. Returning an error
// terminates the exchange with that error.
type ReplyErrorHandler interface {
	HandleReplyError(host, command string, conn *textproto.Conn, err error) error
}

// PassthroughHandler is the default ReplyErrorHandler. It performs no
// recovery and returns the original error unchanged.
type PassthroughHandler struct{}

// HandleReplyError satisfies the ReplyErrorHandler interface for the
// PassthroughHandler type.
func (PassthroughHandler) HandleReplyError(_, _ string, _ *textproto.Conn, err error) error {
	return err
}

// handlerKey identifies a host-command pair for handler lookup.
type handlerKey struct {
	host    string
	command string
}

// ReplyErrorRegistry maps host-command pairs to ReplyErrorHandlers. It is
// safe for concurrent use; lookups fall back to a default handler when no
// specific match is registered.
type ReplyErrorRegistry struct {
	mu             sync.RWMutex
	handlers       map[handlerKey]ReplyErrorHandler
	defaultHandler ReplyErrorHandler
}

// NewReplyErrorRegistry returns an empty registry with PassthroughHandler
// as the default handler.
func NewReplyErrorRegistry() *ReplyErrorRegistry {
	return &ReplyErrorRegistry{
		handlers:       make(map[handlerKey]ReplyErrorHandler),
		defaultHandler: PassthroughHandler{},
	}
}

// Register associates a handler with a specific host and command. Host and
// command are matched case-insensitively.
func (r *ReplyErrorRegistry) Register(host, command string, handler ReplyErrorHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[handlerKey{strings.ToLower(host), strings.ToLower(command)}] = handler
}

// Handler returns the handler registered for the given host and command, or
// the default handler when none is registered.
func (r *ReplyErrorRegistry) Handler(host, command string) ReplyErrorHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if handler, ok := r.handlers[handlerKey{strings.ToLower(host), strings.ToLower(command)}]; ok {
		return handler
	}
	return r.defaultHandler
}

// SetDefault overrides the default handler used when no specific handler
// matches.
func (r *ReplyErrorRegistry) SetDefault(handler ReplyErrorHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultHandler = handler
}
