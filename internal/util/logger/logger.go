// Package logger 提供 tinynet 的统一日志
//
// 基于 log/slog，每个子系统一个 Logger，级别可按子系统配置：
//
//	package udp
//
//	var log = logger.Logger("udp")
//
//	log.Debug("packet dropped", "from", ep, "len", n)
//
// 环境变量:
//
//	# session 输出 debug，其余 warn
//	TINYNET_LOG_LEVEL=session=debug,warn
//
//	# JSON 输出
//	TINYNET_LOG_FORMAT=json
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	loggers  sync.Map // subsystem -> *slog.Logger
	handlers sync.Map // subsystem -> *levelHandler
)

// Logger 返回子系统的 Logger
//
// 同一子系统多次调用返回同一实例。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	h := newHandler(subsystem, ConfigFromEnv())
	actual, loaded := loggers.LoadOrStore(subsystem, slog.New(h))
	if !loaded {
		handlers.Store(subsystem, h)
	}
	return actual.(*slog.Logger)
}

// SetLevel 运行时调整子系统的级别
//
// 子系统的 Logger 尚未创建时不生效。
func SetLevel(subsystem string, level slog.Level) {
	if h, ok := handlers.Load(subsystem); ok {
		h.(*levelHandler).setLevel(level)
	}
}

// SetAllLevels 调整所有已创建子系统的级别
func SetAllLevels(level slog.Level) {
	handlers.Range(func(_, h any) bool {
		h.(*levelHandler).setLevel(level)
		return true
	})
}

// SetOutput 设置全局输出目标，对已创建的 Logger 立即生效
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

// Discard 返回丢弃所有输出的 Logger（用于测试）
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}
