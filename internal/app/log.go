package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// hoardHandler is a slog.Handler emitting one tab-separated line per record:
//
//	<timestamp>\t<level>\t<opID>\t<message>\t<key=value ...>
//
// Each line is assembled in full before a single Write, so concurrent loggers
// sharing the same file never interleave mid-line.
type hoardHandler struct {
	w     io.Writer
	opID  string
	attrs []slog.Attr
}

func (h *hoardHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *hoardHandler) Handle(_ context.Context, r slog.Record) error {
	var line bytes.Buffer
	fmt.Fprintf(&line, "%s\t%s\t%s\t%s",
		r.Time.UTC().Format("2006-01-02T15:04:05Z"), r.Level, h.opID, r.Message)

	for _, a := range h.attrs {
		appendAttr(&line, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&line, a)
		return true
	})
	line.WriteByte('\n')

	_, err := h.w.Write(line.Bytes())
	return err
}

func appendAttr(line *bytes.Buffer, a slog.Attr) {
	fmt.Fprintf(line, "\t%s=%v", a.Key, a.Value)
}

func (h *hoardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &hoardHandler{w: h.w, opID: h.opID, attrs: merged}
}

func (h *hoardHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger writing to both logDir/hoard.log and
// stderr. The returned file is the caller's to close.
func newLogger(logDir string, opID string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "hoard.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	handler := &hoardHandler{w: io.MultiWriter(f, os.Stderr), opID: opID}
	return slog.New(handler), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the hoard.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
