package tinynet

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-tinynet/internal/core/discovery/mdns"
	"github.com/dep2p/go-tinynet/internal/core/metrics"
	"github.com/dep2p/go-tinynet/internal/core/netpeer"
	"github.com/dep2p/go-tinynet/internal/session"
	"github.com/dep2p/go-tinynet/pkg/interfaces"
)

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. Session: 服务端与客户端场景（同时作为事件监听器）
//  2. NetPeer: 以场景为监听器的两个管理器
//  3. Discovery: mDNS 广告器
func buildFxApp(o *options, node *Node) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	modules := []fx.Option{
		fx.Supply(o.config),

		session.Module(),
		netpeer.Module(),
		mdns.Module(),

		fx.Invoke(bindScenes),
	}

	if o.spawner != nil {
		spawner := o.spawner
		modules = append(modules, fx.Provide(func() interfaces.Spawner { return spawner }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 用户扩展
	// ════════════════════════════════════════════════════════════════════════
	if len(o.userFxOptions) > 0 {
		modules = append(modules, o.userFxOptions...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. Node 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		fx.Invoke(injectNodeComponents(node)),

		// 禁用 Fx 日志输出
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	return fx.New(modules...), nil
}

// ════════════════════════════════════════════════════════════════════════════
// 组件注入辅助函数
// ════════════════════════════════════════════════════════════════════════════

type nodeInjectParams struct {
	fx.In

	Server        *session.ServerScene
	Client        *session.ClientScene
	ServerManager *netpeer.Manager `name:"server_manager"`
	ClientManager *netpeer.Manager `name:"client_manager"`
	Advertiser    *mdns.Advertiser
}

// bindScenes 把管理器绑定到作为其监听器的场景
func bindScenes(p nodeInjectParams) {
	p.Server.Bind(p.ServerManager)
	p.Client.Bind(p.ClientManager)
}

func injectNodeComponents(node *Node) interface{} {
	return func(p nodeInjectParams) {
		node.server = p.Server
		node.client = p.Client
		node.serverMgr = p.ServerManager
		node.clientMgr = p.ClientManager
		node.advertiser = p.Advertiser
		node.serverStats = metrics.NewSnapshotCollector("server", p.ServerManager, nil)
		node.clientStats = metrics.NewSnapshotCollector("client", p.ClientManager, nil)
	}
}
