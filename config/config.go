// Package config 提供 tinynet 的统一配置
//
// 主 Config 聚合各子配置，每个子配置在独立文件中定义，
// 均提供 DefaultXxxConfig 与 Validate。支持 JSON 加载与保存。
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Session.MaxPlayers = 8
//
//	cfg, err := config.LoadFile("tinynet.json")
package config

import "fmt"

// Config tinynet 的完整配置
//
//   - Transport: UDP 套接字
//   - Peer: 连接管理与可靠性通道
//   - Session: 会话与复制
//   - Discovery: 局域网发现
type Config struct {
	// Transport 套接字配置
	Transport TransportConfig `json:"transport"`

	// Peer 节点管理配置
	Peer PeerConfig `json:"peer"`

	// Session 会话配置
	Session SessionConfig `json:"session"`

	// Discovery 发现配置
	Discovery DiscoveryConfig `json:"discovery"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Transport: DefaultTransportConfig(),
		Peer:      DefaultPeerConfig(),
		Session:   DefaultSessionConfig(),
		Discovery: DefaultDiscoveryConfig(),
	}
}

// Validate 验证所有子配置
func (c *Config) Validate() error {
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if err := c.Peer.Validate(); err != nil {
		return fmt.Errorf("peer: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := c.Discovery.Validate(); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	return nil
}
