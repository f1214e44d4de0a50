package config

import (
	"errors"
	"time"
)

// SessionConfig 会话与复制配置
type SessionConfig struct {
	// MaxPlayers 服务端接受的最大玩家连接数
	MaxPlayers int `json:"max_players"`

	// MaxPlayerControllers 单个连接的玩家控制器槽位上限
	MaxPlayerControllers int `json:"max_player_controllers"`

	// UpdateInterval 命令行驱动 Update 的间隔
	UpdateInterval Duration `json:"update_interval"`

	// WriterBufferSize 发送缓冲区初始容量（字节）
	WriterBufferSize int `json:"writer_buffer_size"`

	// AutoReady 客户端收到连接后自动发送 Ready
	AutoReady bool `json:"auto_ready"`
}

// DefaultSessionConfig 返回默认会话配置
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxPlayers:           4,
		MaxPlayerControllers: 32,
		UpdateInterval:       Duration(15 * time.Millisecond),
		WriterBufferSize:     1024,
		AutoReady:            true,
	}
}

// Validate 验证会话配置
func (c SessionConfig) Validate() error {
	if c.MaxPlayers <= 0 {
		return errors.New("max players must be positive")
	}
	if c.MaxPlayerControllers <= 0 || c.MaxPlayerControllers > 32767 {
		return errors.New("max player controllers out of range")
	}
	if c.UpdateInterval <= 0 {
		return errors.New("update interval must be positive")
	}
	if c.WriterBufferSize < 0 {
		return errors.New("writer buffer size must not be negative")
	}
	return nil
}
