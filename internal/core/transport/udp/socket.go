package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"golang.org/x/net/ipv4"

	"github.com/dep2p/go-tinynet/config"
	"github.com/dep2p/go-tinynet/internal/util/logger"
	"github.com/dep2p/go-tinynet/pkg/types"
)

var log = logger.Logger("udp")

// PacketSizeLimit 接收缓冲区大小，即单个数据报的最大长度
const PacketSizeLimit = 65535

// ReceiveFunc 数据报回调
//
// 成功时 code 为 0；套接字错误时 data 为 nil，code 为操作系统错误码，
// from 为该套接字最近一次收到数据的来源。data 仅在回调期间有效。
// ctx 标记当前处于接收循环内，在回调中关闭套接字时应传给 CloseContext。
type ReceiveFunc func(ctx context.Context, data []byte, code int, from types.Endpoint)

// loopKey 接收循环回调 ctx 中的标记键，值为所属的 *Socket
type loopKey struct{}

// BindConfig 绑定参数
type BindConfig struct {
	// IPv4Addr IPv4 绑定地址，零值表示 0.0.0.0
	IPv4Addr netip.Addr

	// IPv6Addr IPv6 绑定地址，零值表示 ::
	IPv6Addr netip.Addr

	// Port 端口，0 表示由系统分配
	Port int

	// ReuseAddress 设置 SO_REUSEADDR
	ReuseAddress bool

	// DisableIPv6 不创建 IPv6 套接字
	DisableIPv6 bool

	// ReceiveBufferSize 接收缓冲区，0 保持系统默认
	ReceiveBufferSize int

	// SendBufferSize 发送缓冲区，0 保持系统默认
	SendBufferSize int

	// TTL IPv4 单播 TTL，0 保持系统默认
	TTL int
}

// BindConfigFrom 从传输配置构造绑定参数
func BindConfigFrom(cfg config.TransportConfig) (BindConfig, error) {
	bc := BindConfig{
		Port:              cfg.Port,
		ReuseAddress:      cfg.ReuseAddress,
		DisableIPv6:       cfg.DisableIPv6,
		ReceiveBufferSize: cfg.ReceiveBufferSize,
		SendBufferSize:    cfg.SendBufferSize,
		TTL:               cfg.TTL,
	}
	if cfg.IPv4Addr != "" {
		addr, err := netip.ParseAddr(cfg.IPv4Addr)
		if err != nil || !addr.Unmap().Is4() {
			return BindConfig{}, fmt.Errorf("%w: ipv4 addr %q", types.ErrInvalidEndpoint, cfg.IPv4Addr)
		}
		bc.IPv4Addr = addr.Unmap()
	}
	if cfg.IPv6Addr != "" {
		addr, err := netip.ParseAddr(cfg.IPv6Addr)
		if err != nil || !addr.Is6() {
			return BindConfig{}, fmt.Errorf("%w: ipv6 addr %q", types.ErrInvalidEndpoint, cfg.IPv6Addr)
		}
		bc.IPv6Addr = addr
	}
	return bc, nil
}

// Socket 双栈 UDP 套接字
type Socket struct {
	onReceive ReceiveFunc

	mu     sync.Mutex
	v4     *net.UDPConn
	v6     *net.UDPConn
	port   int
	bound  bool
	closed bool

	running atomic.Bool

	// cbMu 串行化两个接收循环的回调
	cbMu sync.Mutex

	wg sync.WaitGroup
}

// NewSocket 创建套接字
func NewSocket(onReceive ReceiveFunc) *Socket {
	return &Socket{onReceive: onReceive}
}

// Bind 绑定并启动接收循环
//
// IPv4 套接字先绑定，IPv6 套接字绑定到 IPv4 解析出的同一端口。
// 某地址族不被系统支持（EAFNOSUPPORT）时跳过该地址族；IPv6 的其他失败只记录日志。
// IPv4 的其他失败或两个地址族都没有绑定成功时返回错误。
func (s *Socket) Bind(cfg BindConfig) error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return types.ErrInvalidPort
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSocketClosed
	}
	if s.bound {
		return ErrAlreadyBound
	}

	port := cfg.Port

	v4addr := cfg.IPv4Addr
	if !v4addr.IsValid() {
		v4addr = netip.IPv4Unspecified()
	}
	v4, err := listen(context.Background(), "udp4", netip.AddrPortFrom(v4addr, uint16(port)), cfg, true)
	switch {
	case err == nil:
		port = v4.LocalAddr().(*net.UDPAddr).Port
		if cfg.TTL > 0 {
			if err := ipv4.NewConn(v4).SetTTL(cfg.TTL); err != nil {
				log.Debug("set ttl failed", "ttl", cfg.TTL, "err", err)
			}
		}
	case isFamilyUnsupported(err):
		log.Info("ipv4 not supported, skipping", "err", err)
	default:
		return fmt.Errorf("bind ipv4 %s: %w", v4addr, err)
	}

	var v6 *net.UDPConn
	if !cfg.DisableIPv6 {
		v6addr := cfg.IPv6Addr
		if !v6addr.IsValid() {
			v6addr = netip.IPv6Unspecified()
		}
		v6, err = listen(context.Background(), "udp6", netip.AddrPortFrom(v6addr, uint16(port)), cfg, false)
		if err != nil {
			log.Info("ipv6 bind failed, continuing with ipv4 only", "port", port, "err", err)
			v6 = nil
		} else {
			if port == 0 {
				port = v6.LocalAddr().(*net.UDPAddr).Port
			}
			joinDiscoveryGroup(v6)
		}
	}

	if v4 == nil && v6 == nil {
		return ErrNoSocket
	}

	s.v4, s.v6, s.port = v4, v6, port
	s.bound = true
	s.running.Store(true)

	if v4 != nil {
		s.wg.Add(1)
		go s.receiveLoop(v4)
	}
	if v6 != nil {
		s.wg.Add(1)
		go s.receiveLoop(v6)
	}

	log.Debug("socket bound", "port", port, "ipv4", v4 != nil, "ipv6", v6 != nil)
	return nil
}

func listen(ctx context.Context, network string, ap netip.AddrPort, cfg BindConfig, broadcast bool) (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: control(cfg.ReuseAddress, broadcast)}
	pc, err := lc.ListenPacket(ctx, network, ap.String())
	if err != nil {
		return nil, err
	}
	conn := pc.(*net.UDPConn)

	if cfg.ReceiveBufferSize > 0 {
		if err := conn.SetReadBuffer(cfg.ReceiveBufferSize); err != nil {
			log.Debug("set receive buffer failed", "network", network, "err", err)
		}
	}
	if cfg.SendBufferSize > 0 {
		if err := conn.SetWriteBuffer(cfg.SendBufferSize); err != nil {
			log.Debug("set send buffer failed", "network", network, "err", err)
		}
	}
	return conn, nil
}

// LocalPort 返回实际绑定的端口
func (s *Socket) LocalPort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// HasIPv4 是否绑定了 IPv4 套接字
func (s *Socket) HasIPv4() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v4 != nil
}

// HasIPv6 是否绑定了 IPv6 套接字
func (s *Socket) HasIPv6() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v6 != nil
}

// IsRunning 接收循环是否在运行
func (s *Socket) IsRunning() bool {
	return s.running.Load()
}

func (s *Socket) connFor(f types.AddressFamily) *net.UDPConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch f {
	case types.FamilyIPv4:
		return s.v4
	case types.FamilyIPv6:
		return s.v6
	default:
		return nil
	}
}

// Send 按目标地址族选择套接字发送
//
// 瞬时错误返回 (0, nil)，调用方可当作已发送（UDP 本就可能丢包）。
func (s *Socket) Send(p []byte, ep types.Endpoint) (int, error) {
	if !ep.IsValid() {
		return 0, types.ErrInvalidEndpoint
	}
	if !s.running.Load() {
		return 0, ErrSocketClosed
	}
	conn := s.connFor(ep.Family())
	if conn == nil {
		return 0, ErrFamilyUnavailable
	}

	n, err := conn.WriteToUDPAddrPort(p, ep.AddrPort())
	if err == nil {
		return n, nil
	}
	return 0, classifySendError(err, ep, len(p))
}

// classifySendError 按错误类别转换发送错误
//
// 瞬时错误返回 nil；EMSGSIZE 不记录日志。
func classifySendError(err error, ep types.Endpoint, size int) error {
	if isTransient(err) {
		return nil
	}
	if errors.Is(err, net.ErrClosed) {
		return ErrSocketClosed
	}

	code := ErrorCode(err)
	if !isMessageTooLong(err) {
		log.Warn("send failed", "to", ep, "len", size, "code", code, "err", err)
	}
	return &SendError{Code: code, Err: err}
}

// receiveLoop 一个套接字的接收循环
func (s *Socket) receiveLoop(conn *net.UDPConn) {
	defer s.wg.Done()

	ctx := context.WithValue(context.Background(), loopKey{}, s)
	buf := make([]byte, PacketSizeLimit)
	var (
		lastAP netip.AddrPort
		last   types.Endpoint
	)

	for {
		n, ap, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			if isIgnorable(err) {
				log.Debug("receive error ignored", "from", last, "err", err)
				continue
			}
			code := ErrorCode(err)
			log.Warn("receive failed", "from", last, "code", code, "err", err)
			if !s.deliver(ctx, nil, code, last) {
				return
			}
			continue
		}

		if ap != lastAP {
			lastAP = ap
			last = types.EndpointFromAddrPort(ap)
		}
		if !s.deliver(ctx, buf[:n], 0, last) {
			return
		}
	}
}

// deliver 在回调锁内调用 onReceive，套接字已关闭时返回 false
func (s *Socket) deliver(ctx context.Context, data []byte, code int, from types.Endpoint) bool {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()

	if !s.running.Load() {
		return false
	}
	if s.onReceive == nil {
		return true
	}

	s.onReceive(ctx, data, code, from)
	return true
}

// Close 关闭两个套接字并等待接收循环退出
//
// 可重复调用，返回后不会再有回调执行。不能在回调内调用，回调内请用 CloseContext。
func (s *Socket) Close() error {
	return s.CloseContext(context.Background())
}

// CloseContext 关闭两个套接字
//
// ctx 是本套接字回调收到的 ctx 时不等待接收循环（调用方就在循环内）；
// 回调返回后另一个循环看到已关闭，不会再开始新的回调。
// 其余情况与 Close 相同，等待两个接收循环都退出。
func (s *Socket) CloseContext(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.running.Store(false)
	v4, v6 := s.v4, s.v6
	s.v4, s.v6 = nil, nil
	s.mu.Unlock()

	var err error
	if v4 != nil {
		err = multierr.Append(err, v4.Close())
	}
	if v6 != nil {
		err = multierr.Append(err, v6.Close())
	}

	if !inReceiveLoop(ctx, s) {
		s.wg.Wait()
	}

	log.Debug("socket closed")
	return err
}

// inReceiveLoop ctx 是否来自 s 的接收循环回调
func inReceiveLoop(ctx context.Context, s *Socket) bool {
	if ctx == nil {
		return false
	}
	owner, _ := ctx.Value(loopKey{}).(*Socket)
	return owner == s
}
