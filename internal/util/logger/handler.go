package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

var (
	output   io.Writer = os.Stderr
	outputMu sync.RWMutex
)

// sink 每次写入时取当前的全局输出，SetOutput 对已创建的 Logger 同样生效
type sink struct{}

func (sink) Write(p []byte) (int, error) {
	outputMu.RLock()
	w := output
	outputMu.RUnlock()
	return w.Write(p)
}

// levelHandler 可动态调整级别的子系统 Handler
type levelHandler struct {
	level *atomic.Int64
	inner slog.Handler
}

func newHandler(subsystem string, cfg *Config) *levelHandler {
	opts := &slog.HandlerOptions{
		// 过滤交给 levelHandler.Enabled
		Level:     slog.LevelDebug,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "ts"
			case slog.LevelKey:
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelName(lvl))
				}
			}
			return a
		},
	}

	var inner slog.Handler
	if cfg.Format == FormatJSON {
		inner = slog.NewJSONHandler(sink{}, opts)
	} else {
		inner = slog.NewTextHandler(sink{}, opts)
	}

	h := &levelHandler{
		level: new(atomic.Int64),
		inner: inner.WithAttrs([]slog.Attr{slog.String("subsystem", subsystem)}),
	}
	h.level.Store(int64(cfg.LevelFor(subsystem)))
	return h
}

func (h *levelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return int64(level) >= h.level.Load()
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

// WithAttrs 派生的 Handler 共享级别
func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, inner: h.inner.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, inner: h.inner.WithGroup(name)}
}

func (h *levelHandler) setLevel(level slog.Level) {
	h.level.Store(int64(level))
}

func levelName(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
