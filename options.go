package tinynet

import (
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-tinynet/config"
	"github.com/dep2p/go-tinynet/pkg/interfaces"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	config  *config.Config
	spawner interfaces.Spawner

	// userFxOptions 追加到 fx 应用的用户模块
	userFxOptions []fx.Option
}

func newOptions() *options {
	return &options{config: config.NewConfig()}
}

// WithConfig 使用完整配置替换默认值
//
// 需放在其他选项之前，否则会覆盖它们的效果。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}
		c := *cfg
		o.config = &c
		return nil
	}
}

// WithPort 设置服务端监听端口
//
// port=0 表示由系统分配。
func WithPort(port int) Option {
	return func(o *options) error {
		if port < 0 || port > 65535 {
			return fmt.Errorf("%w: %d", ErrInvalidPort, port)
		}
		o.config.Transport.Port = port
		return nil
	}
}

// WithMaxPlayers 设置服务端最大玩家数
func WithMaxPlayers(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidMaxPlayers, n)
		}
		o.config.Session.MaxPlayers = n
		return nil
	}
}

// WithPingInterval 设置延迟探测间隔
func WithPingInterval(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("ping interval must be positive: %s", d)
		}
		o.config.Peer.PingInterval = config.Duration(d)
		return nil
	}
}

// WithIPv6 是否创建 IPv6 套接字
func WithIPv6(enable bool) Option {
	return func(o *options) error {
		o.config.Transport.DisableIPv6 = !enable
		return nil
	}
}

// WithMDNS 服务端启动后是否通过 mDNS 广告
func WithMDNS(enable bool) Option {
	return func(o *options) error {
		o.config.Discovery.EnableMDNS = enable
		return nil
	}
}

// WithAutoReady 客户端连接后是否自动发送 Ready
func WithAutoReady(auto bool) Option {
	return func(o *options) error {
		o.config.Session.AutoReady = auto
		return nil
	}
}

// WithSpawner 设置客户端实体构造协作者
func WithSpawner(spawner interfaces.Spawner) Option {
	return func(o *options) error {
		o.spawner = spawner
		return nil
	}
}

// WithFxOption 追加自定义 fx 选项
func WithFxOption(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
