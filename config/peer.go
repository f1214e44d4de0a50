package config

import (
	"errors"
	"time"
)

// PeerConfig 节点管理与可靠性通道配置
type PeerConfig struct {
	// MaxConnections 接受的最大连接数，超出的连接被拒绝
	MaxConnections int `json:"max_connections"`

	// PingInterval 延迟探测间隔
	PingInterval Duration `json:"ping_interval"`

	// DisconnectTimeout 无数据多久后视为断开
	DisconnectTimeout Duration `json:"disconnect_timeout"`

	// KeepAlivePeriod 保活包间隔，需小于 DisconnectTimeout
	KeepAlivePeriod Duration `json:"keep_alive_period"`

	// HandshakeTimeout 建连超时
	HandshakeTimeout Duration `json:"handshake_timeout"`

	// EventQueueSize 接收线程到控制线程的事件队列长度
	EventQueueSize int `json:"event_queue_size"`

	// InboundQueueSize 可靠性通道的入站数据报队列长度
	InboundQueueSize int `json:"inbound_queue_size"`

	// DiscoveryReplyRate 每秒最多回复的发现请求数
	DiscoveryReplyRate float64 `json:"discovery_reply_rate"`

	// DiscoveryReplyBurst 发现回复的突发上限
	DiscoveryReplyBurst int `json:"discovery_reply_burst"`

	// StatsInterval 指标快照日志间隔，0 表示关闭
	StatsInterval Duration `json:"stats_interval"`
}

// DefaultPeerConfig 返回默认节点管理配置
func DefaultPeerConfig() PeerConfig {
	return PeerConfig{
		MaxConnections:      4,
		PingInterval:        Duration(time.Second),
		DisconnectTimeout:   Duration(5 * time.Second),
		KeepAlivePeriod:     Duration(2 * time.Second),
		HandshakeTimeout:    Duration(5 * time.Second),
		EventQueueSize:      1024,
		InboundQueueSize:    1024,
		DiscoveryReplyRate:  20,
		DiscoveryReplyBurst: 10,
	}
}

// Validate 验证节点管理配置
func (c PeerConfig) Validate() error {
	if c.MaxConnections <= 0 {
		return errors.New("max connections must be positive")
	}
	if c.PingInterval <= 0 {
		return errors.New("ping interval must be positive")
	}
	if c.DisconnectTimeout <= 0 {
		return errors.New("disconnect timeout must be positive")
	}
	if c.KeepAlivePeriod <= 0 || c.KeepAlivePeriod >= c.DisconnectTimeout {
		return errors.New("keep alive period must be positive and below disconnect timeout")
	}
	if c.HandshakeTimeout <= 0 {
		return errors.New("handshake timeout must be positive")
	}
	if c.EventQueueSize <= 0 || c.InboundQueueSize <= 0 {
		return errors.New("queue sizes must be positive")
	}
	if c.DiscoveryReplyRate <= 0 || c.DiscoveryReplyBurst <= 0 {
		return errors.New("discovery reply limits must be positive")
	}
	if c.StatsInterval < 0 {
		return errors.New("stats interval must not be negative")
	}
	return nil
}
