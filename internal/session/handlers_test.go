package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tinynet/pkg/protocol"
	"github.com/dep2p/go-tinynet/pkg/types"
)

// ============================================================================
//                              Handlers 测试
// ============================================================================

func TestHandlers_RegisterSafeRejectsDuplicate(t *testing.T) {
	h := NewHandlers()
	var called string

	require.NoError(t, h.RegisterHandlerSafe(5, func(*MessageReader) error {
		called = "first"
		return nil
	}))

	err := h.RegisterHandlerSafe(5, func(*MessageReader) error {
		called = "second"
		return nil
	})
	assert.ErrorIs(t, err, ErrHandlerExists)

	fn, ok := h.Get(5)
	require.True(t, ok)
	require.NoError(t, fn(&MessageReader{}))
	assert.Equal(t, "first", called, "首个处理器应保持绑定")
}

func TestHandlers_Override(t *testing.T) {
	h := NewHandlers()
	var called string

	h.RegisterHandler(7, func(*MessageReader) error {
		called = "default"
		return nil
	})
	h.RegisterHandler(7, func(*MessageReader) error {
		called = "custom"
		return nil
	})

	fn, ok := h.Get(7)
	require.True(t, ok)
	require.NoError(t, fn(&MessageReader{}))
	assert.Equal(t, "custom", called)
	assert.Equal(t, 1, h.Len())
}

func TestHandlers_Register(t *testing.T) {
	t.Run("空处理器", func(t *testing.T) {
		h := NewHandlers()
		assert.ErrorIs(t, h.Register(1, nil, true), ErrNilHandler)
		assert.False(t, h.Contains(1))
	})

	t.Run("注销", func(t *testing.T) {
		h := NewHandlers()
		require.NoError(t, h.Register(1, func(*MessageReader) error { return nil }, false))
		assert.True(t, h.Unregister(1))
		assert.False(t, h.Unregister(1))
		assert.False(t, h.Contains(1))
	})
}

// ============================================================================
//                              分发测试
// ============================================================================

func TestScene_Dispatch(t *testing.T) {
	newTestScene := func() *Scene {
		return newScene("test", testSessionConfig())
	}

	t.Run("未注册的类型被丢弃", func(t *testing.T) {
		s := newTestScene()
		called := false
		s.RegisterHandler(protocol.MsgUserBase, func(*MessageReader) error {
			called = true
			return nil
		})

		w := protocol.NewWriter(8)
		w.PutMsgType(protocol.MsgUserBase + 1)
		s.OnNetworkReceive(newFakePeer(1), w.Bytes(), types.ReliableOrdered)
		assert.False(t, called)
	})

	t.Run("过短的消息被丢弃", func(t *testing.T) {
		s := newTestScene()
		assert.NotPanics(t, func() {
			s.OnNetworkReceive(newFakePeer(1), []byte{0x01}, types.ReliableOrdered)
		})
	})

	t.Run("处理器收到上下文", func(t *testing.T) {
		s := newTestScene()
		peer := newFakePeer(3)
		s.OnPeerConnected(peer)

		var got struct {
			t      types.MsgType
			conn   *Connection
			method types.DeliveryMethod
			msg    protocol.ClientAuthority
		}
		s.RegisterHandler(protocol.MsgClientAuthority, func(m *MessageReader) error {
			got.t = m.MsgType
			got.conn = m.Conn
			got.method = m.Method
			return m.ReadMessage(&got.msg)
		})

		data := protocol.Encode(protocol.NewWriter(16), &protocol.ClientAuthority{NetworkID: 9, Authority: true})
		s.OnNetworkReceive(peer, data, types.Sequenced)

		conn, ok := s.ConnectionByPeer(peer)
		require.True(t, ok)
		assert.Equal(t, protocol.MsgClientAuthority, got.t)
		assert.Same(t, conn, got.conn)
		assert.Equal(t, types.Sequenced, got.method)
		assert.Equal(t, types.NetworkID(9), got.msg.NetworkID)
		assert.True(t, got.msg.Authority)
	})

	t.Run("未知对端的连接为空", func(t *testing.T) {
		s := newTestScene()
		var conn *Connection
		invoked := false
		s.RegisterHandler(protocol.MsgReady, func(m *MessageReader) error {
			invoked = true
			conn = m.Conn
			return nil
		})

		data := protocol.Encode(protocol.NewWriter(8), &protocol.Ready{})
		s.OnNetworkReceive(newFakePeer(99), data, types.ReliableOrdered)
		assert.True(t, invoked)
		assert.Nil(t, conn)
	})
}
