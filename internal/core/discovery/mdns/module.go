package mdns

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-tinynet/config"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config `optional:"true"`
}

// ProvideAdvertiser 创建广告器
//
// 广告在服务端启动后由调用方 Start，模块只负责在应用停止时关闭。
func ProvideAdvertiser(input ModuleInput) *Advertiser {
	cfg := DefaultConfig()
	if input.Config != nil {
		cfg = ConfigFrom(input.Config.Discovery, input.Config.Transport.DisableIPv6)
	}
	return NewAdvertiser(cfg)
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("discovery/mdns",
		fx.Provide(ProvideAdvertiser),
		fx.Invoke(registerLifecycle),
	)
}

func registerLifecycle(lc fx.Lifecycle, a *Advertiser) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return a.Stop()
		},
	})
}
