package session

import (
	"go.uber.org/fx"

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

	// Spawner 客户端实体构造协作者（可选）
	Spawner interfaces.Spawner `optional:"true"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Server *ServerScene
	Client *ClientScene

	// ServerListener 服务端 PeerManager 的事件监听器
	ServerListener interfaces.EventListener `name:"server_listener"`

	// ClientListener 客户端 PeerManager 的事件监听器
	ClientListener interfaces.EventListener `name:"client_listener"`
}

// ProvideScenes 创建服务端与客户端场景
func ProvideScenes(input ModuleInput) ModuleOutput {
	cfg := config.DefaultSessionConfig()
	if input.Config != nil {
		cfg = input.Config.Session
	}

	server := NewServerScene(cfg)
	client := NewClientScene(cfg, input.Spawner)

	return ModuleOutput{
		Server:         server,
		Client:         client,
		ServerListener: server,
		ClientListener: client,
	}
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("session",
		fx.Provide(ProvideScenes),
	)
}
