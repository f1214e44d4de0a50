package config

import "errors"

// TransportConfig UDP 套接字配置
type TransportConfig struct {
	// IPv4Addr IPv4 绑定地址，空表示 0.0.0.0
	IPv4Addr string `json:"ipv4_addr,omitempty"`

	// IPv6Addr IPv6 绑定地址，空表示 ::
	IPv6Addr string `json:"ipv6_addr,omitempty"`

	// Port 监听端口，0 表示由系统分配
	Port int `json:"port"`

	// ReuseAddress 设置 SO_REUSEADDR
	ReuseAddress bool `json:"reuse_address"`

	// DisableIPv6 不创建 IPv6 套接字
	DisableIPv6 bool `json:"disable_ipv6"`

	// ReceiveBufferSize 套接字接收缓冲区（字节）
	ReceiveBufferSize int `json:"receive_buffer_size"`

	// SendBufferSize 套接字发送缓冲区（字节）
	SendBufferSize int `json:"send_buffer_size"`

	// TTL IPv4 单播 TTL
	TTL int `json:"ttl"`
}

// DefaultTransportConfig 返回默认套接字配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Port:              7777,
		ReuseAddress:      false,
		ReceiveBufferSize: 1024 * 1024, // 1 MB
		SendBufferSize:    1024 * 1024, // 1 MB
		TTL:               255,
	}
}

// Validate 验证套接字配置
func (c TransportConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.New("port out of range")
	}
	if c.ReceiveBufferSize < 0 || c.SendBufferSize < 0 {
		return errors.New("buffer size must not be negative")
	}
	if c.TTL < 0 || c.TTL > 255 {
		return errors.New("ttl out of range")
	}
	return nil
}
