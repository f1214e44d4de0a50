package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-tinynet/config"
	"github.com/dep2p/go-tinynet/pkg/interfaces"
)

// ============================================================================
// Fx 模块测试
// ============================================================================

func TestModule_Provides(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Session.MaxPlayers = 8
	spawner := &fakeSpawner{}

	var (
		server   *ServerScene
		client   *ClientScene
		listener interfaces.EventListener
	)
	app := fxtest.New(t,
		fx.Supply(cfg),
		fx.Provide(func() interfaces.Spawner { return spawner }),
		Module(),
		fx.Populate(&server, &client),
		fx.Invoke(fx.Annotate(func(l interfaces.EventListener) {
			listener = l
		}, fx.ParamTags(`name:"server_listener"`))),
	)
	defer app.RequireStart().RequireStop()

	assert.Equal(t, 8, server.MaxPlayers())
	assert.Same(t, spawner, client.spawner)
	assert.Equal(t, interfaces.EventListener(server), listener)
}

func TestModule_DefaultConfig(t *testing.T) {
	var client *ClientScene
	app := fxtest.New(t,
		Module(),
		fx.Populate(&client),
	)
	defer app.RequireStart().RequireStop()

	assert.Nil(t, client.spawner)
	assert.Equal(t, config.DefaultSessionConfig().AutoReady, client.autoReady)
}
