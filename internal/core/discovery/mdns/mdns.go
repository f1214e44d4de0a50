// Package mdns 通过 mDNS 在局域网内广告与查找 tinynet 服务端
//
// 服务端启动后注册一个 "<instance>.<service>.<domain>" 服务，TXT 记录携带
// 会话 ID、协议版本与最大玩家数；客户端用 Browse 做一次性查询。
// 这是 UDP 广播发现之外的补充手段，两者互不依赖。
package mdns

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/mdns"

	"github.com/dep2p/go-tinynet/config"
	"github.com/dep2p/go-tinynet/internal/util/logger"
)

var log = logger.Logger("discovery.mdns")

// ProtocolVersion 写入 TXT 记录的协议版本
const ProtocolVersion = "tinynet/1"

// TXT 记录键
const (
	txtSession    = "session"
	txtVersion    = "version"
	txtMaxPlayers = "max_players"
)

// ============================================================================
//                              配置
// ============================================================================

// Config mDNS 配置
type Config struct {
	// Service 服务类型，例如 "_tinynet._udp"
	Service string

	// Domain 域名
	Domain string

	// Interface 指定网络接口（空表示所有接口）
	Interface string

	// DisableIPv4 不广告/查询 IPv4
	DisableIPv4 bool

	// DisableIPv6 不广告/查询 IPv6
	DisableIPv6 bool

	// BrowseTimeout 一次查询的等待时间
	BrowseTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return ConfigFrom(config.DefaultDiscoveryConfig(), true)
}

// ConfigFrom 从统一配置创建 mDNS 配置
func ConfigFrom(cfg config.DiscoveryConfig, disableIPv6 bool) Config {
	return Config{
		Service:       cfg.ServiceName,
		Domain:        cfg.Domain,
		DisableIPv6:   disableIPv6,
		BrowseTimeout: cfg.BrowseTimeout.Duration(),
	}
}

// ============================================================================
//                              广告
// ============================================================================

// Advertiser 服务端 mDNS 广告
type Advertiser struct {
	cfg Config

	mu       sync.Mutex
	server   *mdns.Server
	instance string
}

// NewAdvertiser 创建广告器
func NewAdvertiser(cfg Config) *Advertiser {
	return &Advertiser{cfg: cfg}
}

// Start 开始广告
//
// port 为服务端绑定的 UDP 端口，不能为 0。
func (a *Advertiser) Start(sessionID uuid.UUID, port, maxPlayers int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return ErrAlreadyAdvertising
	}
	if port <= 0 || port > 0xFFFF {
		return ErrPortUnknown
	}

	ips, err := localIPs(a.cfg.Interface, a.cfg.DisableIPv4, a.cfg.DisableIPv6)
	if err != nil {
		return fmt.Errorf("list local addresses: %w", err)
	}
	if len(ips) == 0 {
		return ErrNoLANAddress
	}

	// hashicorp/mdns 自行拼接 <instance>.<service>.<domain>
	instance := instanceName(sessionID)
	service, err := mdns.NewMDNSService(
		instance,
		a.cfg.Service,
		a.cfg.Domain,
		"",
		port,
		ips,
		buildTXT(sessionID, maxPlayers),
	)
	if err != nil {
		return fmt.Errorf("create mdns service: %w", err)
	}

	serverConfig := &mdns.Config{Zone: service}
	if a.cfg.Interface != "" {
		iface, err := net.InterfaceByName(a.cfg.Interface)
		if err != nil {
			return fmt.Errorf("interface %s: %w", a.cfg.Interface, err)
		}
		serverConfig.Iface = iface
	}

	server, err := mdns.NewServer(serverConfig)
	if err != nil {
		return fmt.Errorf("start mdns server: %w", err)
	}

	a.server = server
	a.instance = instance
	log.Info("mDNS 广告已启动",
		"instance", instance,
		"service", a.cfg.Service,
		"port", port,
		"ips", ips)
	return nil
}

// Stop 停止广告，未启动时为空操作
func (a *Advertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return nil
	}
	err := a.server.Shutdown()
	a.server = nil
	a.instance = ""
	log.Info("mDNS 广告已停止")
	return err
}

// IsRunning 是否正在广告
func (a *Advertiser) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// Instance 当前广告的实例名
func (a *Advertiser) Instance() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.instance
}

func instanceName(sessionID uuid.UUID) string {
	return "tinynet-" + sessionID.String()[:8]
}

// buildTXT 构建 TXT 记录
func buildTXT(sessionID uuid.UUID, maxPlayers int) []string {
	return []string{
		txtSession + "=" + sessionID.String(),
		txtVersion + "=" + ProtocolVersion,
		txtMaxPlayers + "=" + strconv.Itoa(maxPlayers),
	}
}
