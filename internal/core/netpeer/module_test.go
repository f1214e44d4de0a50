package netpeer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-tinynet/config"
	"github.com/dep2p/go-tinynet/pkg/interfaces"
)

// ============================================================================
// Fx 模块测试
// ============================================================================

type managersOut struct {
	fx.In

	Server *Manager `name:"server_manager"`
	Client *Manager `name:"client_manager"`
}

func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Transport.DisableIPv6 = true
	cfg.Peer.MaxConnections = 2

	serverRec, clientRec := &recorder{}, &recorder{}

	var got managersOut
	app := fxtest.New(t,
		fx.Supply(cfg),
		fx.Provide(
			fx.Annotate(func() interfaces.EventListener { return serverRec }, fx.ResultTags(`name:"server_listener"`)),
			fx.Annotate(func() interfaces.EventListener { return clientRec }, fx.ResultTags(`name:"client_listener"`)),
		),
		Module(),
		fx.Populate(&got),
	)
	app.RequireStart()

	require.NotNil(t, got.Server)
	require.NotNil(t, got.Client)

	t.Run("服务端接受入站连接", func(t *testing.T) {
		assert.True(t, got.Server.cfg.AcceptIncoming)
		assert.False(t, got.Client.cfg.AcceptIncoming)
		assert.Equal(t, 2, got.Server.cfg.Peer.MaxConnections)
	})

	t.Run("模块不自动启动", func(t *testing.T) {
		assert.False(t, got.Server.IsRunning())
		assert.False(t, got.Client.IsRunning())
	})

	require.NoError(t, got.Server.Start(context.Background(), 0))
	assert.True(t, got.Server.IsRunning())

	app.RequireStop()
	assert.False(t, got.Server.IsRunning(), "应用停止时关闭管理器")
}

func TestManager_SetMaxConnections(t *testing.T) {
	m, err := New(&recorder{}, testConfig(true))
	require.NoError(t, err)

	require.NoError(t, m.SetMaxConnections(8))
	assert.Equal(t, 8, m.cfg.Peer.MaxConnections)
	assert.Error(t, m.SetMaxConnections(0))

	require.NoError(t, m.Start(context.Background(), 0))
	defer m.Stop()
	assert.ErrorIs(t, m.SetMaxConnections(2), ErrAlreadyRunning)
}
