//go:build !go1.24

package logging

import (
	"context"
	"log/slog"
)

// discardHandler backports slog.DiscardHandler (Go 1.24) for older
// toolchains: it is disabled at every level and drops every record.
var discardHandler slog.Handler = discardHandlerT{}

type discardHandlerT struct{}

func (discardHandlerT) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandlerT) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandlerT) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandlerT) WithGroup(string) slog.Handler           { return d }
