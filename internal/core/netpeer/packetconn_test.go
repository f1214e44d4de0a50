package netpeer

import (
	"net"
	"net/netip"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tinynet/internal/core/transport/udp"
	"github.com/dep2p/go-tinynet/pkg/types"
)

func newTestPacketConn(size int) *packetConn {
	return newPacketConn(udp.NewSocket(nil), size)
}

func TestPacketConn_DeliverAndRead(t *testing.T) {
	c := newTestPacketConn(4)
	from := types.NewEndpoint(netip.MustParseAddr("10.0.0.1"), 4000)

	src := []byte{0x40, 1, 2, 3}
	require.True(t, c.deliver(src, from))
	src[1] = 0xFF // 入队时已拷贝

	buf := make([]byte, 16)
	n, addr, err := c.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x40, 1, 2, 3}, buf[:n])
	assert.Equal(t, "10.0.0.1:4000", addr.String())
}

func TestPacketConn_QueueFullDrops(t *testing.T) {
	c := newTestPacketConn(1)
	from := types.NewEndpoint(netip.MustParseAddr("10.0.0.1"), 4000)

	assert.True(t, c.deliver([]byte{0x40}, from))
	assert.False(t, c.deliver([]byte{0x41}, from))
}

func TestPacketConn_ReadDeadline(t *testing.T) {
	c := newTestPacketConn(1)

	t.Run("过期时间立即返回", func(t *testing.T) {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(-time.Second)))
		_, _, err := c.ReadFrom(make([]byte, 8))
		assert.ErrorIs(t, err, os.ErrDeadlineExceeded)

		var nerr net.Error
		require.ErrorAs(t, err, &nerr)
		assert.True(t, nerr.Timeout())
	})

	t.Run("未来时间到期后返回", func(t *testing.T) {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(30*time.Millisecond)))
		start := time.Now()
		_, _, err := c.ReadFrom(make([]byte, 8))
		assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("清除后可再次读取", func(t *testing.T) {
		require.NoError(t, c.SetReadDeadline(time.Time{}))
		require.True(t, c.deliver([]byte{0x40}, types.NewEndpoint(netip.MustParseAddr("10.0.0.2"), 1)))
		n, _, err := c.ReadFrom(make([]byte, 8))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestPacketConn_Close(t *testing.T) {
	c := newTestPacketConn(1)

	done := make(chan error, 1)
	go func() {
		_, _, err := c.ReadFrom(make([]byte, 8))
		done <- err
	}()

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, net.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("ReadFrom not unblocked by Close")
	}

	_, err := c.WriteTo([]byte{1}, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9})
	assert.ErrorIs(t, err, net.ErrClosed)
	assert.False(t, c.deliver([]byte{0x40}, types.NewEndpoint(netip.MustParseAddr("10.0.0.1"), 1)))
}
