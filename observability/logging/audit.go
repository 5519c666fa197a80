package logging

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewAuditLogger returns a JSON logger writing to a size-rotated file,
// used for the hub's local audit trail of dispute and liquidation events.
// The returned closer flushes and releases the underlying file.
func NewAuditLogger(path string) (*slog.Logger, io.Closer) {
	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    64, // megabytes per segment
		MaxBackups: 12,
		MaxAge:     365, // days
		Compress:   true,
	}
	handler := slog.NewJSONHandler(sink, &slog.HandlerOptions{})
	return slog.New(handler), sink
}
