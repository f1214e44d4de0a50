package config

import (
	"errors"
	"time"
)

// DiscoveryConfig 局域网发现配置
type DiscoveryConfig struct {
	// EnableMDNS 服务端启动后通过 mDNS 广告自身
	EnableMDNS bool `json:"enable_mdns"`

	// ServiceName mDNS 服务名
	ServiceName string `json:"service_name"`

	// Domain mDNS 域
	Domain string `json:"domain"`

	// BrowseTimeout 客户端一次 mDNS 查询的等待时间
	BrowseTimeout Duration `json:"browse_timeout"`
}

// DefaultDiscoveryConfig 返回默认发现配置
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		EnableMDNS:    false,
		ServiceName:   "_tinynet._udp",
		Domain:        "local.",
		BrowseTimeout: Duration(2 * time.Second),
	}
}

// Validate 验证发现配置
func (c DiscoveryConfig) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service name is required")
	}
	if c.Domain == "" {
		return errors.New("domain is required")
	}
	if c.BrowseTimeout <= 0 {
		return errors.New("browse timeout must be positive")
	}
	return nil
}
