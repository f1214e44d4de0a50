package netpeer

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-tinynet/config"
	"github.com/dep2p/go-tinynet/pkg/interfaces"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// Config 统一配置（可选）
	Config *config.Config `optional:"true"`

	// ServerListener 服务端事件监听器
	ServerListener interfaces.EventListener `name:"server_listener"`

	// ClientListener 客户端事件监听器
	ClientListener interfaces.EventListener `name:"client_listener"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Server 接受入站连接的管理器
	Server *Manager `name:"server_manager"`

	// Client 只发起连接的管理器
	Client *Manager `name:"client_manager"`
}

// ProvideManagers 创建服务端与客户端管理器
//
// 管理器创建后不绑定套接字，由调用方按需 Start。
func ProvideManagers(input ModuleInput) (ModuleOutput, error) {
	base := DefaultConfig()
	if input.Config != nil {
		base.Transport = input.Config.Transport
		base.Peer = input.Config.Peer
	}

	serverCfg := base
	serverCfg.AcceptIncoming = true
	server, err := New(input.ServerListener, serverCfg)
	if err != nil {
		return ModuleOutput{}, err
	}

	clientCfg := base
	clientCfg.AcceptIncoming = false
	client, err := New(input.ClientListener, clientCfg)
	if err != nil {
		return ModuleOutput{}, err
	}

	return ModuleOutput{Server: server, Client: client}, nil
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("netpeer",
		fx.Provide(ProvideManagers),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In

	LC     fx.Lifecycle
	Server *Manager `name:"server_manager"`
	Client *Manager `name:"client_manager"`
}

// registerLifecycle 应用停止时关闭两个管理器
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return multierr.Combine(input.Client.Stop(), input.Server.Stop())
		},
	})
}
