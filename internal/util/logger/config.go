package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// 环境变量
const (
	// EnvLevel 级别配置，格式: 子系统=级别,...,默认级别
	EnvLevel = "TINYNET_LOG_LEVEL"
	// EnvFormat 输出格式: text 或 json
	EnvFormat = "TINYNET_LOG_FORMAT"
	// EnvAddSource 是否输出源码位置
	EnvAddSource = "TINYNET_LOG_SOURCE"
)

// Format 日志输出格式
type Format int

const (
	// FormatText 文本格式（默认）
	FormatText Format = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Config 日志配置
type Config struct {
	// DefaultLevel 未单独配置的子系统使用的级别
	DefaultLevel slog.Level

	// Subsystems 各子系统的级别
	Subsystems map[string]slog.Level

	// Format 输出格式
	Format Format

	// AddSource 是否输出源码位置
	AddSource bool
}

// LevelFor 返回子系统的日志级别
func (c *Config) LevelFor(subsystem string) slog.Level {
	if level, ok := c.Subsystems[subsystem]; ok {
		return level
	}
	return c.DefaultLevel
}

var (
	envConfig     *Config
	envConfigOnce sync.Once
)

// ConfigFromEnv 返回从环境变量解析的配置
//
// 结果在进程内缓存，测试中可用 ResetConfig 清除。
func ConfigFromEnv() *Config {
	envConfigOnce.Do(func() {
		envConfig = ParseConfig(os.Getenv(EnvLevel), os.Getenv(EnvFormat), os.Getenv(EnvAddSource))
	})
	return envConfig
}

// ParseConfig 解析级别、格式与源码位置配置字符串
//
// 示例: ParseConfig("udp=debug,session=warn,info", "json", "")
// 无法识别的级别名被忽略。
func ParseConfig(levels, format, addSource string) *Config {
	cfg := &Config{
		DefaultLevel: slog.LevelInfo,
		Subsystems:   make(map[string]slog.Level),
	}

	for _, part := range strings.Split(levels, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, lvl, scoped := strings.Cut(part, "=")
		if !scoped {
			if level, ok := parseLevel(name); ok {
				cfg.DefaultLevel = level
			}
			continue
		}
		if level, ok := parseLevel(lvl); ok {
			cfg.Subsystems[strings.TrimSpace(name)] = level
		}
	}

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		cfg.Format = FormatJSON
	}

	switch strings.ToLower(strings.TrimSpace(addSource)) {
	case "1", "true", "yes":
		cfg.AddSource = true
	}

	return cfg
}

func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ResetConfig 清除缓存的环境配置（仅用于测试）
func ResetConfig() {
	envConfigOnce = sync.Once{}
	envConfig = nil
}
