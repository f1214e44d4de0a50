package netpeer

import (
	"net"
	"os"
	"sync"
	"time"

	"github.com/dep2p/go-tinynet/internal/core/transport/udp"
	"github.com/dep2p/go-tinynet/pkg/types"
)

// 编译期接口检查
var _ net.PacketConn = (*packetConn)(nil)

type inboundPacket struct {
	data []byte
	from *net.UDPAddr
}

// packetConn 把 udp.Socket 适配为 QUIC 使用的 net.PacketConn
//
// 入站数据由套接字回调通过 deliver 放入有界队列，队列满时丢弃。
// Close 只关闭适配器，不关闭底层套接字。
type packetConn struct {
	sock *udp.Socket

	in        chan inboundPacket
	closed    chan struct{}
	closeOnce sync.Once

	readDeadline deadline

	// 仅在套接字回调中访问（回调已串行化）
	lastFrom types.Endpoint
	lastAddr *net.UDPAddr
}

func newPacketConn(sock *udp.Socket, queueSize int) *packetConn {
	return &packetConn{
		sock:         sock,
		in:           make(chan inboundPacket, queueSize),
		closed:       make(chan struct{}),
		readDeadline: makeDeadline(),
	}
}

// deliver 拷贝数据并入队，返回是否入队
func (c *packetConn) deliver(data []byte, from types.Endpoint) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	if c.lastAddr == nil || from != c.lastFrom {
		c.lastFrom = from
		c.lastAddr = from.UDPAddr()
	}

	pkt := inboundPacket{data: append([]byte(nil), data...), from: c.lastAddr}
	select {
	case c.in <- pkt:
		return true
	default:
		return false
	}
}

// ReadFrom 实现 net.PacketConn
func (c *packetConn) ReadFrom(p []byte) (int, net.Addr, error) {
	select {
	case <-c.closed:
		return 0, nil, net.ErrClosed
	case <-c.readDeadline.wait():
		return 0, nil, os.ErrDeadlineExceeded
	case pkt := <-c.in:
		n := copy(p, pkt.data)
		return n, pkt.from, nil
	}
}

// WriteTo 实现 net.PacketConn
//
// 瞬时错误按已发送处理。
func (c *packetConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	select {
	case <-c.closed:
		return 0, net.ErrClosed
	default:
	}

	ua, ok := addr.(*net.UDPAddr)
	if !ok {
		return 0, &net.AddrError{Err: "unsupported address type", Addr: addr.String()}
	}
	ep, err := types.EndpointFromUDPAddr(ua)
	if err != nil {
		return 0, err
	}

	n, err := c.sock.Send(p, ep)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return len(p), nil
	}
	return n, nil
}

// Close 实现 net.PacketConn
func (c *packetConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// LocalAddr 实现 net.PacketConn
func (c *packetConn) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv6unspecified, Port: c.sock.LocalPort()}
}

// SetDeadline 实现 net.PacketConn，只影响读
func (c *packetConn) SetDeadline(t time.Time) error {
	return c.SetReadDeadline(t)
}

// SetReadDeadline 实现 net.PacketConn
func (c *packetConn) SetReadDeadline(t time.Time) error {
	c.readDeadline.set(t)
	return nil
}

// SetWriteDeadline 实现 net.PacketConn，UDP 写不阻塞
func (c *packetConn) SetWriteDeadline(time.Time) error {
	return nil
}

// SetReadBuffer 缓冲区大小在绑定套接字时已设置
func (c *packetConn) SetReadBuffer(int) error {
	return nil
}

// SetWriteBuffer 缓冲区大小在绑定套接字时已设置
func (c *packetConn) SetWriteBuffer(int) error {
	return nil
}

// deadline 可重置的截止时间，到期后 wait 返回的通道关闭
type deadline struct {
	mu     sync.Mutex
	timer  *time.Timer
	cancel chan struct{}
}

func makeDeadline() deadline {
	return deadline{cancel: make(chan struct{})}
}

func (d *deadline) set(t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil && !d.timer.Stop() {
		// 定时器已触发，等待其关闭通道
		<-d.cancel
	}
	d.timer = nil

	expired := isClosed(d.cancel)
	if t.IsZero() {
		if expired {
			d.cancel = make(chan struct{})
		}
		return
	}

	if dur := time.Until(t); dur > 0 {
		if expired {
			d.cancel = make(chan struct{})
		}
		ch := d.cancel
		d.timer = time.AfterFunc(dur, func() { close(ch) })
		return
	}

	if !expired {
		close(d.cancel)
	}
}

func (d *deadline) wait() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
