// Package transport is the Streaming Transport (spec.md §4.7, C7): it
// drains engine events onto an HTTP wire as Server-Sent Events, and
// bridges a client disconnect into engine cancellation. Grounded on
// original_source/server/app/api/react.py's event_generator for the
// SSE framing and disconnect semantics, and
// codeready-toolchain-tarsy/pkg/events/manager.go for the Go
// channel-draining idiom (a single goroutine owns the engine run; the
// HTTP handler only ever reads from the channel it was handed).
package transport

import "github.com/codeready-toolchain/tarsy/internal/engine"

// ChannelSink adapts a buffered channel to engine.Sink so the engine
// can run on its own goroutine while an HTTP handler drains events
// onto the wire.
type ChannelSink struct {
	ch chan engine.Event
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan engine.Event, buffer)}
}

func (s *ChannelSink) Emit(e engine.Event) {
	s.ch <- e
}

func (s *ChannelSink) Events() <-chan engine.Event { return s.ch }

func (s *ChannelSink) Close() { close(s.ch) }
