package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ConsoleMessage represents a console message with timestamp
type ConsoleMessage struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // "debug", "info", "warning", "error"
}

// ConsoleHandler is a slog.Handler that mirrors every record to a job's
// console and then passes it on to the server's own handler.
type ConsoleHandler struct {
	next  slog.Handler
	sink  func(ConsoleMessage)
	attrs []slog.Attr
}

// NewConsoleHandler creates a handler sending records to sink. next may be
// nil, in which case records only reach the console.
func NewConsoleHandler(next slog.Handler, sink func(ConsoleMessage)) *ConsoleHandler {
	return &ConsoleHandler{next: next, sink: sink}
}

func (h *ConsoleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= slog.LevelInfo {
		return true
	}
	return h.next != nil && h.next.Enabled(ctx, level)
}

func (h *ConsoleHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.sink != nil && r.Level >= slog.LevelInfo {
		h.sink(ConsoleMessage{
			Message:   formatRecord(r, h.attrs),
			Timestamp: r.Time,
			Level:     levelName(r.Level),
		})
	}
	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	if h.next != nil {
		c.next = h.next.WithAttrs(attrs)
	}
	return &c
}

// WithGroup only affects the wrapped handler; console lines stay flat.
func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	c := *h
	if h.next != nil {
		c.next = h.next.WithGroup(name)
	}
	return &c
}

// formatRecord renders "msg key=value ..." skipping the job attribute, which
// every line of a job console would repeat.
func formatRecord(r slog.Record, attrs []slog.Attr) string {
	var b strings.Builder
	b.WriteString(r.Message)
	write := func(a slog.Attr) bool {
		if a.Key == "job" {
			return true
		}
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Resolve())
		return true
	}
	for _, a := range attrs {
		write(a)
	}
	r.Attrs(write)
	return b.String()
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warning"
	case l >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
