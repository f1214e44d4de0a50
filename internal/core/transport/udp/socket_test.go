package udp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tinynet/config"
	"github.com/dep2p/go-tinynet/internal/util/logger"
	"github.com/dep2p/go-tinynet/pkg/types"
)

var loopback4 = netip.MustParseAddr("127.0.0.1")

func bindLoopback(t *testing.T, fn ReceiveFunc) *Socket {
	t.Helper()
	s := NewSocket(fn)
	require.NoError(t, s.Bind(BindConfig{Port: 0, DisableIPv6: true}))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type collector struct {
	mu   sync.Mutex
	msgs [][]byte
	from []types.Endpoint
}

func (c *collector) receive(_ context.Context, data []byte, code int, from types.Endpoint) {
	if code != 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, bytes.Clone(data))
	c.from = append(c.from, from)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

// ============================================================================
//                              绑定与关闭
// ============================================================================

func TestSocket_BindPortZero(t *testing.T) {
	s := NewSocket(nil)
	require.NoError(t, s.Bind(BindConfig{Port: 0, DisableIPv6: true}))

	assert.NotZero(t, s.LocalPort())
	assert.True(t, s.IsRunning())
	assert.True(t, s.HasIPv4())
	assert.False(t, s.HasIPv6())

	assert.ErrorIs(t, s.Bind(BindConfig{}), ErrAlreadyBound)

	done := make(chan struct{})
	go func() {
		assert.NoError(t, s.Close())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Close(), "重复关闭应无错误")
	assert.ErrorIs(t, s.Bind(BindConfig{}), ErrSocketClosed)
}

func TestSocket_BindInvalidPort(t *testing.T) {
	s := NewSocket(nil)
	assert.ErrorIs(t, s.Bind(BindConfig{Port: 70000}), types.ErrInvalidPort)
	assert.ErrorIs(t, s.Bind(BindConfig{Port: -1}), types.ErrInvalidPort)
}

func TestSocket_DualStackSamePort(t *testing.T) {
	s := NewSocket(nil)
	require.NoError(t, s.Bind(BindConfig{Port: 0}))
	defer s.Close()

	if !s.HasIPv6() {
		t.Skip("ipv6 not available")
	}
	assert.True(t, s.HasIPv4())
	assert.NotZero(t, s.LocalPort())
}

func TestBindConfigFrom(t *testing.T) {
	cfg := config.DefaultTransportConfig()
	cfg.IPv4Addr = "127.0.0.1"
	cfg.IPv6Addr = "::1"

	bc, err := BindConfigFrom(cfg)
	require.NoError(t, err)
	assert.Equal(t, loopback4, bc.IPv4Addr)
	assert.Equal(t, netip.IPv6Loopback(), bc.IPv6Addr)
	assert.Equal(t, 7777, bc.Port)
	assert.Equal(t, 255, bc.TTL)

	cfg.IPv4Addr = "::1"
	_, err = BindConfigFrom(cfg)
	assert.ErrorIs(t, err, types.ErrInvalidEndpoint)
}

// ============================================================================
//                              收发
// ============================================================================

func TestSocket_LoopbackDelivery(t *testing.T) {
	recv := &collector{}
	server := bindLoopback(t, recv.receive)
	client := bindLoopback(t, nil)

	to := types.NewEndpoint(loopback4, uint16(server.LocalPort()))

	var sent [][]byte
	for i := 0; i < 10; i++ {
		p := bytes.Repeat([]byte{byte(i)}, 64)
		sent = append(sent, p)
		n, err := client.Send(p, to)
		require.NoError(t, err)
		require.Equal(t, 64, n)
	}

	require.Eventually(t, func() bool { return recv.count() == 10 }, 2*time.Second, 10*time.Millisecond)

	recv.mu.Lock()
	defer recv.mu.Unlock()
	assert.ElementsMatch(t, sent, recv.msgs)
	for _, from := range recv.from {
		assert.Equal(t, types.FamilyIPv4, from.Family())
		assert.Equal(t, uint16(client.LocalPort()), from.Port())
	}
}

func TestSocket_ExactPayload(t *testing.T) {
	got := make(chan []byte, 1)
	server := bindLoopback(t, func(_ context.Context, data []byte, code int, _ types.Endpoint) {
		if code == 0 {
			got <- bytes.Clone(data)
		}
	})
	client := bindLoopback(t, nil)

	payload := []byte{0x00, 0xFF, 0x10, 0x20, 0x00}
	_, err := client.Send(payload, types.NewEndpoint(loopback4, uint16(server.LocalPort())))
	require.NoError(t, err)

	select {
	case data := <-got:
		assert.Equal(t, payload, data)
	case <-time.After(2 * time.Second):
		t.Fatal("payload not received")
	}
}

func TestSocket_SendFamilyUnavailable(t *testing.T) {
	s := bindLoopback(t, nil)

	_, err := s.Send([]byte("x"), types.NewEndpoint(netip.IPv6Loopback(), 9))
	assert.ErrorIs(t, err, ErrFamilyUnavailable)

	_, err = s.Send([]byte("x"), types.Endpoint{})
	assert.ErrorIs(t, err, types.ErrInvalidEndpoint)
}

func TestSocket_SendAfterClose(t *testing.T) {
	s := NewSocket(nil)
	require.NoError(t, s.Bind(BindConfig{DisableIPv6: true}))
	require.NoError(t, s.Close())

	_, err := s.Send([]byte("x"), types.NewEndpoint(loopback4, 9))
	assert.ErrorIs(t, err, ErrSocketClosed)
}

// ============================================================================
//                              关闭语义
// ============================================================================

func TestSocket_NoCallbackAfterClose(t *testing.T) {
	var calls atomic.Int32
	server := NewSocket(func(context.Context, []byte, int, types.Endpoint) { calls.Add(1) })
	require.NoError(t, server.Bind(BindConfig{DisableIPv6: true}))
	client := bindLoopback(t, nil)

	to := types.NewEndpoint(loopback4, uint16(server.LocalPort()))
	_, err := client.Send([]byte("before"), to)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, server.Close())
	after := calls.Load()

	for i := 0; i < 5; i++ {
		_, _ = client.Send([]byte("after"), to)
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
}

func TestSocket_CloseWaitsForRunningCallback(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	s := NewSocket(func(context.Context, []byte, int, types.Endpoint) {
		close(entered)
		<-release
		finished.Store(true)
	})
	require.NoError(t, s.Bind(BindConfig{DisableIPv6: true}))
	client := bindLoopback(t, nil)

	_, err := client.Send([]byte("hold"), types.NewEndpoint(loopback4, uint16(s.LocalPort())))
	require.NoError(t, err)

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("callback not entered")
	}

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()

	select {
	case <-closed:
		t.Fatal("Close 在回调仍运行时返回")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-closed:
		assert.NoError(t, err)
		assert.True(t, finished.Load(), "Close 返回前回调应已结束")
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after callback finished")
	}
}

func TestSocket_CloseFromCallback(t *testing.T) {
	var s *Socket
	closed := make(chan error, 1)
	s = NewSocket(func(ctx context.Context, _ []byte, _ int, _ types.Endpoint) {
		closed <- s.CloseContext(ctx)
	})
	require.NoError(t, s.Bind(BindConfig{DisableIPv6: true}))
	client := bindLoopback(t, nil)

	_, err := client.Send([]byte("bye"), types.NewEndpoint(loopback4, uint16(s.LocalPort())))
	require.NoError(t, err)

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close from callback deadlocked")
	}
	assert.False(t, s.IsRunning())
}

// ============================================================================
//                              错误码
// ============================================================================

func TestErrorCode(t *testing.T) {
	assert.Equal(t, 0, ErrorCode(nil))
	assert.Equal(t, -1, ErrorCode(ErrSocketClosed))

	se := &SendError{Code: 90, Err: ErrSocketClosed}
	assert.Equal(t, 90, ErrorCode(se))
	assert.ErrorIs(t, se, ErrSocketClosed)
	assert.Contains(t, se.Error(), "code 90")
}

func TestInReceiveLoop(t *testing.T) {
	a, b := NewSocket(nil), NewSocket(nil)
	ctx := context.WithValue(context.Background(), loopKey{}, a)

	assert.True(t, inReceiveLoop(ctx, a))
	assert.False(t, inReceiveLoop(ctx, b), "其他套接字的标记不算")
	assert.False(t, inReceiveLoop(context.Background(), a))
}

func TestErrorClasses(t *testing.T) {
	wrap := func(errno syscall.Errno) error {
		return &net.OpError{Op: "write", Net: "udp", Err: os.NewSyscallError("sendto", errno)}
	}

	tests := []struct {
		name      string
		err       error
		transient bool
		ignorable bool
		tooLong   bool
	}{
		{"EINTR", syscall.EINTR, true, true, false},
		{"ENOBUFS", syscall.ENOBUFS, true, false, false},
		{"EAGAIN", syscall.EAGAIN, true, false, false},
		{"ECONNRESET", syscall.ECONNRESET, false, true, false},
		{"ECONNREFUSED", syscall.ECONNREFUSED, false, true, false},
		{"EMSGSIZE", syscall.EMSGSIZE, false, true, true},
		{"EACCES", syscall.EACCES, false, false, false},
		{"包装的 ENOBUFS", wrap(syscall.ENOBUFS), true, false, false},
		{"包装的 EMSGSIZE", wrap(syscall.EMSGSIZE), false, true, true},
		{"非系统错误", ErrSocketClosed, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, isTransient(tt.err), "transient")
			assert.Equal(t, tt.ignorable, isIgnorable(tt.err), "ignorable")
			assert.Equal(t, tt.tooLong, isMessageTooLong(tt.err), "too long")
		})
	}
}

// syncBuffer 可并发写入的日志缓冲区
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

func captureLog(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	logger.SetOutput(buf)
	logger.SetLevel("udp", slog.LevelDebug)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
		logger.SetLevel("udp", logger.ConfigFromEnv().LevelFor("udp"))
	})
	return buf
}

func TestClassifySendError(t *testing.T) {
	out := captureLog(t)
	ep := types.NewEndpoint(loopback4, 9)

	t.Run("瞬时错误视为已发送", func(t *testing.T) {
		out.Reset()
		for _, errno := range []syscall.Errno{syscall.EINTR, syscall.ENOBUFS, syscall.EAGAIN} {
			assert.NoError(t, classifySendError(errno, ep, 10), errno.Error())
		}
		assert.Empty(t, out.String())
	})

	t.Run("EMSGSIZE 返回错误但不记录日志", func(t *testing.T) {
		out.Reset()
		err := classifySendError(syscall.EMSGSIZE, ep, 70000)
		var se *SendError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, int(syscall.EMSGSIZE), se.Code)
		assert.ErrorIs(t, err, syscall.EMSGSIZE)
		assert.Empty(t, out.String())
	})

	t.Run("其他错误返回错误码并记录日志", func(t *testing.T) {
		out.Reset()
		err := classifySendError(syscall.EACCES, ep, 10)
		assert.Equal(t, int(syscall.EACCES), ErrorCode(err))
		assert.ErrorIs(t, err, syscall.EACCES)
		assert.Contains(t, out.String(), "send failed")
	})

	t.Run("套接字已关闭", func(t *testing.T) {
		err := classifySendError(fmt.Errorf("write: %w", net.ErrClosed), ep, 10)
		assert.ErrorIs(t, err, ErrSocketClosed)
	})
}

func TestSocket_DeliverHardError(t *testing.T) {
	type call struct {
		data []byte
		code int
		from types.Endpoint
	}
	var got []call
	s := NewSocket(func(_ context.Context, data []byte, code int, from types.Endpoint) {
		got = append(got, call{data: data, code: code, from: from})
	})
	last := types.NewEndpoint(loopback4, 4000)

	assert.False(t, s.deliver(context.Background(), nil, 104, last), "未运行时不回调")
	assert.Empty(t, got)

	s.running.Store(true)
	assert.True(t, s.deliver(context.Background(), nil, 104, last))
	require.Len(t, got, 1)
	assert.Nil(t, got[0].data)
	assert.Equal(t, 104, got[0].code)
	assert.Equal(t, last, got[0].from)
}

// ============================================================================
//                              广播
// ============================================================================

func TestSendBroadcast_InvalidPort(t *testing.T) {
	s := bindLoopback(t, nil)
	assert.ErrorIs(t, s.SendBroadcast([]byte("x"), 0), types.ErrInvalidPort)
}

func TestSendBroadcast_Bound(t *testing.T) {
	recv := &collector{}
	listener := NewSocket(recv.receive)
	require.NoError(t, listener.Bind(BindConfig{DisableIPv6: true}))
	t.Cleanup(func() { _ = listener.Close() })

	sender := NewSocket(nil)
	require.NoError(t, sender.Bind(BindConfig{DisableIPv6: true}))
	t.Cleanup(func() { _ = sender.Close() })

	err := sender.SendBroadcast([]byte("anyone"), listener.LocalPort())
	if ErrorCode(err) == int(syscall.ENETUNREACH) || ErrorCode(err) == int(syscall.EACCES) {
		t.Skipf("broadcast not routable here: %v", err)
	}
	require.NoError(t, err)

	require.Eventually(t, func() bool { return recv.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	recv.mu.Lock()
	defer recv.mu.Unlock()
	assert.Equal(t, []byte("anyone"), recv.msgs[0])
	assert.Equal(t, uint16(sender.LocalPort()), recv.from[0].Port())
}

func TestSendBroadcast_Closed(t *testing.T) {
	s := NewSocket(nil)
	require.NoError(t, s.Bind(BindConfig{DisableIPv6: true}))
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.SendBroadcast([]byte("x"), 7777), ErrSocketClosed)
}

func TestBroadcastResult(t *testing.T) {
	assert.NoError(t, broadcastResult(6, nil))
	assert.ErrorIs(t, broadcastResult(0, nil), ErrBroadcastDropped, "瞬时错误丢弃算失败")
	assert.ErrorIs(t, broadcastResult(0, ErrSocketClosed), ErrSocketClosed)
}
