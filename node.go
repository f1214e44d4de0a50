package tinynet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-tinynet/config"
	"github.com/dep2p/go-tinynet/internal/core/discovery/mdns"
	"github.com/dep2p/go-tinynet/internal/core/metrics"
	"github.com/dep2p/go-tinynet/internal/core/netpeer"
	"github.com/dep2p/go-tinynet/internal/session"
	"github.com/dep2p/go-tinynet/internal/util/logger"
	"github.com/dep2p/go-tinynet/pkg/types"
)

var log = logger.Logger("tinynet")

// 启动超时配置
const (
	// startTimeout Fx App 启动超时
	startTimeout = 10 * time.Second

	// stopTimeout Fx App 停止超时
	stopTimeout = 10 * time.Second
)

// Node tinynet 节点
//
// Node 是门面，聚合服务端场景、客户端场景及各自的节点管理器。
// 同一个 Node 可以只做服务端、只做客户端，或同时做两者（监听服务器）。
//
// 使用示例：
//
//	node, err := tinynet.New(tinynet.WithPort(7777))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	if err := node.ConnectTo(ctx, "192.168.1.20", 7777); err != nil {
//	    log.Fatal(err)
//	}
type Node struct {
	cfg *config.Config
	app *fx.App

	server     *session.ServerScene
	client     *session.ClientScene
	serverMgr  *netpeer.Manager
	clientMgr  *netpeer.Manager
	advertiser *mdns.Advertiser

	serverStats *metrics.SnapshotCollector
	clientStats *metrics.SnapshotCollector

	mu     sync.Mutex
	closed bool
}

// New 创建节点
//
// 节点创建后不绑定任何套接字，需调用 StartServer 或 StartClient。
func New(opts ...Option) (*Node, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	cfg, err := config.ValidateAndFix(o.config)
	if err != nil {
		return nil, err
	}
	o.config = cfg

	node := &Node{cfg: cfg}
	app, err := buildFxApp(o, node)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return nil, fmt.Errorf("start fx app: %w", err)
	}
	node.app = app

	log.Debug("节点已创建",
		"port", cfg.Transport.Port,
		"maxPlayers", cfg.Session.MaxPlayers)
	return node, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              组件访问
// ════════════════════════════════════════════════════════════════════════════

// Server 返回服务端场景
func (n *Node) Server() *session.ServerScene {
	return n.server
}

// Client 返回客户端场景
func (n *Node) Client() *session.ClientScene {
	return n.client
}

// Config 返回节点配置
func (n *Node) Config() *config.Config {
	return n.cfg
}

// ServerStats 服务端指标快照
func (n *Node) ServerStats() *metrics.Snapshot {
	return n.serverStats.Collect()
}

// ClientStats 客户端指标快照
func (n *Node) ClientStats() *metrics.Snapshot {
	return n.clientStats.Collect()
}

// ════════════════════════════════════════════════════════════════════════════
//                              状态
// ════════════════════════════════════════════════════════════════════════════

// IsServer 服务端是否在运行
func (n *Node) IsServer() bool {
	return n.serverMgr.IsRunning()
}

// IsClient 客户端是否在运行
func (n *Node) IsClient() bool {
	return n.clientMgr.IsRunning()
}

// IsListenServer 是否同时作为服务端与客户端运行
func (n *Node) IsListenServer() bool {
	return n.IsServer() && n.IsClient()
}

// Port 服务端端口
//
// 服务端运行时返回实际绑定的端口，否则返回配置的端口。
func (n *Node) Port() int {
	if n.serverMgr.IsRunning() {
		return n.serverMgr.LocalPort()
	}
	return n.cfg.Transport.Port
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置修改
// ════════════════════════════════════════════════════════════════════════════

// SetPort 修改服务端端口，服务端启动后返回 ErrServerRunning
func (n *Node) SetPort(port int) error {
	if n.serverMgr.IsRunning() {
		return ErrServerRunning
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	n.cfg.Transport.Port = port
	return nil
}

// SetMaxPlayers 修改最大玩家数，服务端启动后返回 ErrServerRunning
func (n *Node) SetMaxPlayers(max int) error {
	if n.serverMgr.IsRunning() {
		return ErrServerRunning
	}
	if max <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxPlayers, max)
	}
	if max > n.cfg.Peer.MaxConnections {
		if err := n.serverMgr.SetMaxConnections(max); err != nil {
			return err
		}
		n.cfg.Peer.MaxConnections = max
	}
	n.cfg.Session.MaxPlayers = max
	n.server.SetMaxPlayers(max)
	return nil
}

// SetPingInterval 修改两个管理器的延迟探测间隔
func (n *Node) SetPingInterval(d time.Duration) {
	n.serverMgr.SetPingInterval(d)
	n.clientMgr.SetPingInterval(d)
}

// ════════════════════════════════════════════════════════════════════════════
//                              启动与连接
// ════════════════════════════════════════════════════════════════════════════

// StartServer 绑定服务端套接字并开始接受连接
//
// 启用 mDNS 时随后开始广告，广告失败只记录日志。
func (n *Node) StartServer(ctx context.Context) error {
	if n.isClosed() {
		return ErrNodeClosed
	}
	if err := n.serverMgr.Start(ctx, n.cfg.Transport.Port); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	port := n.serverMgr.LocalPort()
	log.Info("服务端已启动", "port", port, "session", n.server.SessionID())
	if d := n.cfg.Peer.StatsInterval.Duration(); d > 0 {
		n.serverStats.Start(d)
	}

	if n.cfg.Discovery.EnableMDNS {
		if err := n.advertiser.Start(n.server.SessionID(), port, n.server.MaxPlayers()); err != nil {
			log.Warn("mDNS 广告启动失败", "err", err)
		}
	}
	return nil
}

// StartClient 绑定客户端套接字
//
// 已在运行时为空操作。
func (n *Node) StartClient(ctx context.Context) error {
	if n.isClosed() {
		return ErrNodeClosed
	}
	if n.clientMgr.IsRunning() {
		return nil
	}
	if err := n.clientMgr.Start(ctx, 0); err != nil {
		return fmt.Errorf("start client: %w", err)
	}
	if d := n.cfg.Peer.StatsInterval.Duration(); d > 0 {
		n.clientStats.Start(d)
	}
	return nil
}

// StartHost 启动服务端并让本地客户端连接到它
func (n *Node) StartHost(ctx context.Context) error {
	if err := n.StartServer(ctx); err != nil {
		return err
	}
	return n.ConnectTo(ctx, "127.0.0.1", n.serverMgr.LocalPort())
}

// ConnectTo 连接服务端
//
// host 可以是 IP 或域名。客户端未启动时自动启动。
// 连接事件在随后的 Update 中送达客户端场景。
func (n *Node) ConnectTo(ctx context.Context, host string, port int) error {
	ep, err := types.ResolveEndpoint(host, port)
	if err != nil {
		return err
	}
	return n.ConnectToEndpoint(ctx, ep)
}

// ConnectToEndpoint 连接指定端点
func (n *Node) ConnectToEndpoint(ctx context.Context, ep types.Endpoint) error {
	if err := n.StartClient(ctx); err != nil {
		return err
	}
	if _, err := n.clientMgr.Connect(ctx, ep); err != nil {
		return err
	}
	log.Info("已连接服务端", "endpoint", ep)
	return nil
}

// Discover 向局域网广播发现请求
//
// port 为服务端监听的端口，应答通过 Client().OnDiscovered 报告。
func (n *Node) Discover(ctx context.Context, port int) error {
	if err := n.StartClient(ctx); err != nil {
		return err
	}
	return n.client.Discover(port)
}

// Browse 通过 mDNS 查询局域网内的服务端
func (n *Node) Browse(ctx context.Context) ([]mdns.ServiceInfo, error) {
	return mdns.Browse(ctx, mdns.ConfigFrom(n.cfg.Discovery, n.cfg.Transport.DisableIPv6))
}

// ════════════════════════════════════════════════════════════════════════════
//                              事件循环
// ════════════════════════════════════════════════════════════════════════════

// Update 分发两个场景已排队的网络事件
//
// 由宿主应用在控制线程上周期性调用。
func (n *Node) Update() {
	n.server.Update()
	n.client.Update()
}

// ════════════════════════════════════════════════════════════════════════════
//                              关闭
// ════════════════════════════════════════════════════════════════════════════

// StopServer 停止服务端与 mDNS 广告
func (n *Node) StopServer() error {
	n.serverStats.Stop()
	return multierr.Combine(n.advertiser.Stop(), n.serverMgr.Stop())
}

// StopClient 断开客户端
func (n *Node) StopClient() error {
	n.clientStats.Stop()
	return n.clientMgr.Stop()
}

// Close 关闭节点
//
// 幂等，关闭后节点不能再启动。
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	n.serverStats.Stop()
	n.clientStats.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := n.app.Stop(ctx); err != nil {
		return fmt.Errorf("stop fx app: %w", err)
	}
	log.Debug("节点已关闭")
	return nil
}

func (n *Node) isClosed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}
