package tinynet

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tinynet/config"
	"github.com/dep2p/go-tinynet/internal/session"
	"github.com/dep2p/go-tinynet/pkg/protocol"
	"github.com/dep2p/go-tinynet/pkg/types"
)

// ============================================================================
//                              测试辅助
// ============================================================================

type recordingSpawner struct {
	spawned   []string
	destroyed []types.NetworkID
}

func (s *recordingSpawner) Spawn(msg *protocol.ObjectSpawn) (any, error) {
	s.spawned = append(s.spawned, msg.AssetID)
	return msg.AssetID, nil
}

func (s *recordingSpawner) SpawnScene(msg *protocol.ObjectSpawnScene) (any, error) {
	return msg.SceneID, nil
}

func (s *recordingSpawner) Destroy(id types.NetworkID, _ any) {
	s.destroyed = append(s.destroyed, id)
}

func (s *recordingSpawner) Hide(types.NetworkID, any) {}

func newTestNode(t *testing.T, opts ...Option) *Node {
	t.Helper()
	opts = append([]Option{WithPort(0), WithIPv6(false)}, opts...)
	n, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

// updateUntil 在测试中驱动 Update 直到条件成立
func updateUntil(t *testing.T, cond func() bool, nodes ...*Node) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, n := range nodes {
			n.Update()
		}
		return cond()
	}, 5*time.Second, 5*time.Millisecond)
}

// ============================================================================
//                              创建与配置
// ============================================================================

func TestNew_Options(t *testing.T) {
	t.Run("默认配置", func(t *testing.T) {
		n := newTestNode(t)
		assert.NotNil(t, n.Server())
		assert.NotNil(t, n.Client())
		assert.False(t, n.IsServer())
		assert.False(t, n.IsClient())
		assert.False(t, n.IsListenServer())
		assert.Equal(t, config.DefaultSessionConfig().MaxPlayers, n.Server().MaxPlayers())
	})

	t.Run("非法选项", func(t *testing.T) {
		_, err := New(WithPort(70000))
		assert.ErrorIs(t, err, ErrInvalidPort)

		_, err = New(WithMaxPlayers(0))
		assert.ErrorIs(t, err, ErrInvalidMaxPlayers)

		_, err = New(WithConfig(nil))
		assert.Error(t, err)
	})

	t.Run("最大玩家数提升连接上限", func(t *testing.T) {
		n := newTestNode(t, WithMaxPlayers(12))
		assert.Equal(t, 12, n.Config().Peer.MaxConnections)
		assert.Equal(t, 12, n.Server().MaxPlayers())
	})

	t.Run("完整配置", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.Session.AutoReady = false
		cfg.Transport.Port = 0
		n := newTestNode(t, WithConfig(cfg))
		assert.False(t, n.Config().Session.AutoReady)
	})
}

func TestNode_SetBeforeStart(t *testing.T) {
	n := newTestNode(t)

	require.NoError(t, n.SetPort(0))
	require.NoError(t, n.SetMaxPlayers(6))
	assert.Equal(t, 6, n.Server().MaxPlayers())
	assert.ErrorIs(t, n.SetPort(-1), ErrInvalidPort)
	assert.ErrorIs(t, n.SetMaxPlayers(0), ErrInvalidMaxPlayers)

	require.NoError(t, n.StartServer(context.Background()))
	assert.True(t, n.IsServer())
	assert.NotZero(t, n.Port())

	assert.ErrorIs(t, n.SetPort(9000), ErrServerRunning)
	assert.ErrorIs(t, n.SetMaxPlayers(2), ErrServerRunning)
	assert.Equal(t, 6, n.Server().MaxPlayers(), "运行中修改被拒绝")
}

// ============================================================================
//                              端到端
// ============================================================================

func TestNode_ServerClientReplication(t *testing.T) {
	ctx := context.Background()

	server := newTestNode(t)
	require.NoError(t, server.StartServer(ctx))

	_, err := server.Server().Spawn("crate", session.SpawnOptions{Payload: []byte{7}})
	require.NoError(t, err)

	spawner := &recordingSpawner{}
	client := newTestNode(t, WithSpawner(spawner))

	finished := false
	client.Client().OnSpawnFinished(func() { finished = true })

	require.NoError(t, client.ConnectTo(ctx, "127.0.0.1", server.Port()))
	assert.True(t, client.IsClient())

	updateUntil(t, func() bool { return finished }, server, client)
	assert.Equal(t, []string{"crate"}, spawner.spawned)
	assert.Equal(t, 1, server.Server().ConnectionCount())

	t.Run("运行中生成的实体", func(t *testing.T) {
		_, err := server.Server().Spawn("barrel", session.SpawnOptions{})
		require.NoError(t, err)
		updateUntil(t, func() bool { return len(spawner.spawned) == 2 }, server, client)
		assert.Equal(t, "barrel", spawner.spawned[1])
	})

	t.Run("服务端关闭后客户端清理实体", func(t *testing.T) {
		disconnected := false
		client.Client().OnDisconnected(func(types.DisconnectInfo) { disconnected = true })

		require.NoError(t, server.StopServer())
		updateUntil(t, func() bool { return disconnected }, client)
		assert.Len(t, spawner.destroyed, 2)
		assert.Zero(t, client.Client().Identities().Len())
	})
}

func TestNode_StartHost(t *testing.T) {
	n := newTestNode(t)
	require.NoError(t, n.StartHost(context.Background()))

	assert.True(t, n.IsListenServer())
	updateUntil(t, func() bool {
		host, ok := n.Client().Host()
		return ok && host.IsReady() && n.Server().ConnectionCount() == 1
	}, n)
}

func TestNode_Discover(t *testing.T) {
	ctx := context.Background()

	server := newTestNode(t)
	require.NoError(t, server.StartServer(ctx))

	client := newTestNode(t)
	var found []types.Endpoint
	client.Client().OnDiscovered(func(from types.Endpoint) { found = append(found, from) })

	require.NoError(t, client.StartClient(ctx))
	ep := types.NewEndpoint(netip.MustParseAddr("127.0.0.1"), uint16(server.Port()))
	require.NoError(t, client.Client().DiscoverAt(ep))

	updateUntil(t, func() bool { return len(found) > 0 }, server, client)
	assert.Equal(t, uint16(server.Port()), found[0].Port())
}

// ============================================================================
//                              关闭
// ============================================================================

func TestNode_StopClientReconnect(t *testing.T) {
	ctx := context.Background()

	server := newTestNode(t)
	require.NoError(t, server.StartServer(ctx))
	_, err := server.Server().Spawn("crate", session.SpawnOptions{})
	require.NoError(t, err)

	spawner := &recordingSpawner{}
	client := newTestNode(t, WithSpawner(spawner))
	var reasons []types.DisconnectReason
	client.Client().OnDisconnected(func(info types.DisconnectInfo) { reasons = append(reasons, info.Reason) })

	hostReady := func() bool {
		host, ok := client.Client().Host()
		return ok && host.IsReady() && client.Client().Identities().Len() == 1
	}

	require.NoError(t, client.ConnectTo(ctx, "127.0.0.1", server.Port()))
	updateUntil(t, hostReady, server, client)

	// StopClient 返回时客户端场景已清理，不依赖后续 Update
	require.NoError(t, client.StopClient())
	assert.False(t, client.IsClient())
	assert.Zero(t, client.Client().ConnectionCount())
	_, ok := client.Client().Host()
	assert.False(t, ok)
	assert.Zero(t, client.Client().Identities().Len())
	assert.Equal(t, []types.DisconnectReason{types.DisconnectShutdown}, reasons)
	assert.Len(t, spawner.destroyed, 1)

	updateUntil(t, func() bool { return server.Server().ConnectionCount() == 0 }, server)

	t.Run("重新连接", func(t *testing.T) {
		require.NoError(t, client.ConnectTo(ctx, "127.0.0.1", server.Port()))
		updateUntil(t, hostReady, server, client)
		assert.Equal(t, 1, server.Server().ConnectionCount())
		assert.Equal(t, []string{"crate", "crate"}, spawner.spawned)
	})

	t.Run("服务端停止后连接集合清空", func(t *testing.T) {
		require.NoError(t, server.StopServer())
		assert.Zero(t, server.Server().ConnectionCount())

		require.NoError(t, server.StartServer(ctx))
		require.NoError(t, client.StopClient())
		require.NoError(t, client.ConnectTo(ctx, "127.0.0.1", server.Port()))
		updateUntil(t, func() bool {
			return hostReady() && server.Server().ConnectionCount() == 1
		}, server, client)
	})
}

func TestNode_Close(t *testing.T) {
	n, err := New(WithPort(0), WithIPv6(false))
	require.NoError(t, err)
	require.NoError(t, n.StartServer(context.Background()))

	require.NoError(t, n.Close())
	assert.False(t, n.IsServer())
	assert.NoError(t, n.Close(), "重复关闭应无错误")

	assert.ErrorIs(t, n.StartServer(context.Background()), ErrNodeClosed)
	assert.ErrorIs(t, n.StartClient(context.Background()), ErrNodeClosed)
}

func TestNode_Stats(t *testing.T) {
	n := newTestNode(t)
	require.NoError(t, n.StartHost(context.Background()))
	updateUntil(t, func() bool {
		conns := n.Server().Connections()
		return len(conns) == 1 && conns[0].IsReady()
	}, n)

	s := n.ServerStats()
	assert.Equal(t, 1, s.ConnectedPeers)
	assert.Positive(t, s.BytesRecv)

	c := n.ClientStats()
	assert.Equal(t, 1, c.ConnectedPeers)
	assert.Positive(t, c.BytesSent)
}
