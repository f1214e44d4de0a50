// Package main 提供 tinynet 命令行入口
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dep2p/go-tinynet"
	"github.com/dep2p/go-tinynet/config"
	"github.com/dep2p/go-tinynet/internal/session"
	"github.com/dep2p/go-tinynet/internal/util/logger"
	"github.com/dep2p/go-tinynet/pkg/protocol"
	"github.com/dep2p/go-tinynet/pkg/types"
)

var log = logger.Logger("cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：这次运行的模式与端口
//   JSON 配置文件：套接字、超时、会话等长期配置
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	mode       = flag.String("mode", "server", "运行模式 (server/client/host/discover)")
	port       = flag.Int("port", 7777, "服务端端口（0 = 随机端口）")
	connect    = flag.String("connect", "", "客户端连接的服务端地址 host:port")
	configFile = flag.String("config", "", "配置文件路径")
	tick       = flag.Duration("tick", 0, "Update 间隔（0 = 使用配置值）")
	maxPlayers = flag.Int("max-players", 0, "最大玩家数（0 = 使用配置值）")
	enableMDNS = flag.Bool("mdns", false, "服务端启动后通过 mDNS 广告")
	discoverIn = flag.Duration("discover-timeout", 2*time.Second, "discover 模式的等待时间")
	stats      = flag.Duration("stats", 0, "指标快照日志间隔（0 = 使用配置值）")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	node, err := tinynet.New(
		tinynet.WithConfig(cfg),
		tinynet.WithSpawner(logSpawner{}),
	)
	if err != nil {
		return fmt.Errorf("创建节点失败: %w", err)
	}
	defer func() { _ = node.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "server":
		err = runServer(ctx, node)
	case "host":
		err = runHost(ctx, node)
	case "client":
		err = runClient(ctx, node)
	case "discover":
		err = runDiscover(ctx, node, cfg.Transport.Port)
	default:
		err = fmt.Errorf("未知模式: %s", *mode)
	}
	if err != nil {
		return err
	}

	fmt.Println("\n正在关闭节点...")
	return nil
}

// buildConfig 构建配置
//
// 优先级（从高到低）：命令行参数 > 环境变量 > 配置文件 > 默认值
func buildConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if isFlagSet("port") || *configFile == "" {
		cfg.Transport.Port = *port
	}
	if *maxPlayers > 0 {
		cfg.Session.MaxPlayers = *maxPlayers
	}
	if *tick > 0 {
		cfg.Session.UpdateInterval = config.Duration(*tick)
	}
	if *enableMDNS {
		cfg.Discovery.EnableMDNS = true
	}
	if *stats > 0 {
		cfg.Peer.StatsInterval = config.Duration(*stats)
	}

	return config.ValidateAndFix(cfg)
}

func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// ═══════════════════════════════════════════════════════════════════════════
// 运行模式
// ═══════════════════════════════════════════════════════════════════════════

func runServer(ctx context.Context, node *tinynet.Node) error {
	watchServer(node.Server())
	if err := node.StartServer(ctx); err != nil {
		return err
	}
	fmt.Printf("服务端已启动，端口 %d，会话 %s\n", node.Port(), node.Server().SessionID())
	fmt.Println("按 Ctrl+C 退出")
	loop(ctx, node)
	return nil
}

func runHost(ctx context.Context, node *tinynet.Node) error {
	watchServer(node.Server())
	watchClient(node.Client())
	if err := node.StartHost(ctx); err != nil {
		return err
	}
	fmt.Printf("监听服务器已启动，端口 %d\n", node.Port())
	loop(ctx, node)
	return nil
}

func runClient(ctx context.Context, node *tinynet.Node) error {
	if *connect == "" {
		return fmt.Errorf("client 模式需要 -connect host:port")
	}
	host, portStr, err := net.SplitHostPort(*connect)
	if err != nil {
		return fmt.Errorf("无效地址 %q: %w", *connect, err)
	}
	p, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("无效端口 %q: %w", portStr, err)
	}

	watchClient(node.Client())
	if err := node.ConnectTo(ctx, host, p); err != nil {
		return err
	}
	fmt.Printf("已连接 %s\n", *connect)
	loop(ctx, node)
	return nil
}

// runDiscover 同时使用广播与 mDNS 查找服务端
func runDiscover(ctx context.Context, node *tinynet.Node, serverPort int) error {
	seen := make(map[types.Endpoint]bool)
	node.Client().OnDiscovered(func(from types.Endpoint) {
		if !seen[from] {
			seen[from] = true
			fmt.Printf("  广播应答: %s\n", from)
		}
	})
	if err := node.Discover(ctx, serverPort); err != nil {
		return err
	}

	dctx, cancel := context.WithTimeout(ctx, *discoverIn)
	defer cancel()

	browsed := make(chan struct{})
	go func() {
		defer close(browsed)
		services, err := node.Browse(dctx)
		if err != nil && dctx.Err() == nil {
			log.Warn("mDNS 查询失败", "err", err)
		}
		for _, s := range services {
			fmt.Printf("  mDNS: %s 会话 %s 最大玩家 %d 地址 %v\n", s.Instance, s.SessionID, s.MaxPlayers, s.Endpoints)
		}
	}()

	fmt.Println("正在查找服务端...")
	loop(dctx, node)
	<-browsed
	return nil
}

// loop 在当前 goroutine 上周期性调用 Update 直到 ctx 结束
func loop(ctx context.Context, node *tinynet.Node) {
	ticker := time.NewTicker(node.Config().Session.UpdateInterval.Duration())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			node.Update()
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// 事件输出
// ═══════════════════════════════════════════════════════════════════════════

func watchServer(s *session.ServerScene) {
	s.OnConnected(func(conn *session.Connection) {
		fmt.Printf("[server] 连接 %s\n", conn)
	})
	s.OnDisconnected(func(conn *session.Connection, info types.DisconnectInfo) {
		fmt.Printf("[server] 断开 %s (%s)\n", conn, info.Reason)
	})
	s.OnReady(func(conn *session.Connection) {
		fmt.Printf("[server] 就绪 %s，当前 %d 个连接\n", conn, s.ConnectionCount())
	})
}

func watchClient(c *session.ClientScene) {
	c.OnDisconnected(func(info types.DisconnectInfo) {
		fmt.Printf("[client] 与主机断开 (%s)\n", info.Reason)
	})
	c.OnSpawnFinished(func() {
		fmt.Printf("[client] 初始状态完成，%d 个实体\n", c.Identities().Len())
	})
}

// logSpawner 只打印复制事件的 Spawner
type logSpawner struct{}

func (logSpawner) Spawn(msg *protocol.ObjectSpawn) (any, error) {
	fmt.Printf("[client] 生成 %s asset=%s\n", msg.NetworkID, msg.AssetID)
	return nil, nil
}

func (logSpawner) SpawnScene(msg *protocol.ObjectSpawnScene) (any, error) {
	fmt.Printf("[client] 激活场景对象 %s scene=%d\n", msg.NetworkID, msg.SceneID)
	return nil, nil
}

func (logSpawner) Destroy(id types.NetworkID, _ any) {
	fmt.Printf("[client] 销毁 %s\n", id)
}

func (logSpawner) Hide(id types.NetworkID, _ any) {
	fmt.Printf("[client] 隐藏 %s\n", id)
}
