package netpeer

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/quic-go/quic-go"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-tinynet/config"
	"github.com/dep2p/go-tinynet/internal/core/metrics"
	"github.com/dep2p/go-tinynet/internal/core/transport/udp"
	"github.com/dep2p/go-tinynet/internal/util/logger"
	"github.com/dep2p/go-tinynet/pkg/interfaces"
	"github.com/dep2p/go-tinynet/pkg/types"
)

var log = logger.Logger("netpeer")

// 编译期接口检查
var _ interfaces.PeerManager = (*Manager)(nil)

// Config 管理器参数
type Config struct {
	// Transport 套接字配置，Start 的端口参数覆盖其中的 Port
	Transport config.TransportConfig

	// Peer 连接管理配置
	Peer config.PeerConfig

	// AcceptIncoming 是否接受入站连接（服务端为 true）
	AcceptIncoming bool
}

// DefaultConfig 返回默认参数
func DefaultConfig() Config {
	return Config{
		Transport: config.DefaultTransportConfig(),
		Peer:      config.DefaultPeerConfig(),
	}
}

// Option 管理器选项
type Option func(*Manager)

// WithClock 指定延迟探测使用的时钟
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) { m.clk = clk }
}

// Manager 节点管理器
type Manager struct {
	cfg      Config
	listener interfaces.EventListener
	clk      clock.Clock
	bw       *metrics.BandwidthCounter
	limiter  *rate.Limiter

	events chan event

	// mu 保护启动/停止期间的字段
	mu        sync.Mutex
	socket    *udp.Socket
	pconn     *packetConn
	tr        *quic.Transport
	ln        *quic.Listener
	clientTLS *tls.Config
	qconf     *quic.Config

	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	peersMu  sync.RWMutex
	peers    map[types.ConnectID]*Peer
	admitted atomic.Int32
	nextID   atomic.Uint64

	pingInterval atomic.Int64
	// nextPing 仅在控制线程访问
	nextPing time.Time
}

// New 创建管理器
func New(listener interfaces.EventListener, cfg Config, opts ...Option) (*Manager, error) {
	if listener == nil {
		return nil, ErrNilListener
	}
	if err := cfg.Peer.Validate(); err != nil {
		return nil, fmt.Errorf("peer config: %w", err)
	}
	if err := cfg.Transport.Validate(); err != nil {
		return nil, fmt.Errorf("transport config: %w", err)
	}

	m := &Manager{
		cfg:      cfg,
		listener: listener,
		clk:      clock.New(),
		limiter:  rate.NewLimiter(rate.Limit(cfg.Peer.DiscoveryReplyRate), cfg.Peer.DiscoveryReplyBurst),
		events:   make(chan event, cfg.Peer.EventQueueSize),
		peers:    make(map[types.ConnectID]*Peer),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.bw = metrics.NewBandwidthCounter(m.clk)
	m.pingInterval.Store(int64(cfg.Peer.PingInterval.Duration()))

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.cancel()
	return m, nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 绑定套接字并启动可靠性通道
//
// port 为 0 时由系统分配，实际端口见 LocalPort。
func (m *Manager) Start(ctx context.Context, port int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.Load() {
		return ErrAlreadyRunning
	}

	bc, err := udp.BindConfigFrom(m.cfg.Transport)
	if err != nil {
		return err
	}
	bc.Port = port

	serverTLS, clientTLS, err := newTLSConfigs()
	if err != nil {
		return err
	}

	sock := udp.NewSocket(m.onDatagram)
	m.pconn = newPacketConn(sock, m.cfg.Peer.InboundQueueSize)
	if err := sock.Bind(bc); err != nil {
		return fmt.Errorf("bind: %w", err)
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.socket = sock
	m.clientTLS = clientTLS
	m.qconf = &quic.Config{
		HandshakeIdleTimeout:  m.cfg.Peer.HandshakeTimeout.Duration(),
		MaxIdleTimeout:        m.cfg.Peer.DisconnectTimeout.Duration(),
		KeepAlivePeriod:       m.cfg.Peer.KeepAlivePeriod.Duration(),
		MaxIncomingStreams:    16,
		MaxIncomingUniStreams: 1024,
		EnableDatagrams:       true,
	}
	m.tr = &quic.Transport{Conn: m.pconn}

	if m.cfg.AcceptIncoming {
		ln, err := m.tr.Listen(serverTLS, m.qconf)
		if err != nil {
			m.cancel()
			_ = m.tr.Close()
			_ = sock.Close()
			return fmt.Errorf("listen: %w", err)
		}
		m.ln = ln
		m.wg.Add(1)
		go m.acceptLoop(ln)
	}

	m.nextPing = m.clk.Now().Add(m.PingInterval())
	m.running.Store(true)

	log.Info("peer manager started", "port", sock.LocalPort(), "accept", m.cfg.AcceptIncoming)
	return nil
}

// Stop 关闭所有连接与套接字
//
// 停止后不再投递网络事件，未分发的事件被丢弃。监听者已见过 OnPeerConnected
// 的连接在返回前于调用方线程上收到 OnPeerDisconnected：队列中已有断开事件的
// 沿用其原因，其余原因为 DisconnectShutdown。
func (m *Manager) Stop() error {
	gone, stopped, err := m.shutdown()
	if !stopped {
		return nil
	}
	for _, d := range gone {
		m.listener.OnPeerDisconnected(d.peer, d.info)
	}
	log.Info("peer manager stopped", "peers", len(gone))
	return err
}

// departure Stop 需要补发的断开事件
type departure struct {
	peer *Peer
	info types.DisconnectInfo
}

// shutdown 在 mu 内关闭资源，返回需要补发断开事件的连接
func (m *Manager) shutdown() ([]departure, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running.CompareAndSwap(true, false) {
		return nil, false, nil
	}
	m.cancel()

	live := m.peerList()
	for _, p := range live {
		p.closing.Store(true)
		_ = p.conn.CloseWithError(codeShutdown, "shutdown")
	}

	var err error
	if m.ln != nil {
		err = multierr.Append(err, ignoreClosed(m.ln.Close()))
		m.ln = nil
	}
	err = multierr.Append(err, ignoreClosed(m.tr.Close()))
	err = multierr.Append(err, m.pconn.Close())
	err = multierr.Append(err, m.socket.Close())

	m.wg.Wait()

	m.peersMu.Lock()
	m.peers = make(map[types.ConnectID]*Peer)
	m.peersMu.Unlock()
	m.admitted.Store(0)

	// 队列中的断开事件保留原因，其余事件丢弃
	queued := make(map[*Peer]types.DisconnectInfo)
	for len(m.events) > 0 {
		if ev := <-m.events; ev.kind == evDisconnected {
			queued[ev.peer] = ev.info
			live = append(live, ev.peer)
		}
	}

	gone := make([]departure, 0, len(live))
	for _, p := range live {
		if !p.announced.Swap(false) {
			continue
		}
		info, ok := queued[p]
		if !ok {
			info = types.DisconnectInfo{Reason: types.DisconnectShutdown}
		}
		gone = append(gone, departure{peer: p, info: info})
	}
	sort.Slice(gone, func(i, j int) bool { return gone[i].peer.id < gone[j].peer.id })
	return gone, true, err
}

func ignoreClosed(err error) error {
	if err == nil || err == quic.ErrServerClosed || err == net.ErrClosed {
		return nil
	}
	return err
}

// SetMaxConnections 修改入站连接上限，只能在未运行时调用
func (m *Manager) SetMaxConnections(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.Load() {
		return ErrAlreadyRunning
	}
	if n <= 0 {
		return fmt.Errorf("max connections must be positive: %d", n)
	}
	m.cfg.Peer.MaxConnections = n
	return nil
}

// IsRunning 是否在运行
func (m *Manager) IsRunning() bool {
	return m.running.Load()
}

// LocalPort 返回绑定端口，未运行时为 0
func (m *Manager) LocalPort() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.socket == nil || !m.running.Load() {
		return 0
	}
	return m.socket.LocalPort()
}

// ============================================================================
//                              连接
// ============================================================================

// Connect 连接远端
//
// 返回时连接已建立，连接事件随后经 PollEvents 送达。
func (m *Manager) Connect(ctx context.Context, ep types.Endpoint) (*Peer, error) {
	if !ep.IsValid() {
		return nil, types.ErrInvalidEndpoint
	}

	m.mu.Lock()
	tr, tlsConf, qconf := m.tr, m.clientTLS, m.qconf
	running := m.running.Load()
	m.mu.Unlock()
	if !running {
		return nil, ErrNotRunning
	}

	dctx, cancel := context.WithTimeout(ctx, m.cfg.Peer.HandshakeTimeout.Duration())
	defer cancel()

	conn, err := tr.Dial(dctx, ep.UDPAddr(), tlsConf, qconf)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", ep, err)
	}

	st, err := conn.OpenStreamSync(dctx)
	if err == nil {
		_, err = st.Write(appendFrame(nil, helloMagic))
	}
	if err != nil {
		_ = conn.CloseWithError(codeProtocol, "handshake failed")
		return nil, fmt.Errorf("open ordered stream: %w", err)
	}

	p, err := newPeer(m, conn, st, bufio.NewReader(st))
	if err != nil {
		_ = conn.CloseWithError(codeProtocol, "bad address")
		return nil, err
	}
	m.admitted.Add(1)
	m.addPeer(p)
	log.Info("connected", "peer", p)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.push(event{kind: evConnected, peer: p})
		p.run()
	}()
	return p, nil
}

func (m *Manager) acceptLoop(ln *quic.Listener) {
	defer m.wg.Done()
	for {
		conn, err := ln.Accept(m.ctx)
		if err != nil {
			if m.ctx.Err() == nil {
				log.Warn("accept failed", "err", err)
			}
			return
		}

		if int(m.admitted.Load()) >= m.cfg.Peer.MaxConnections {
			log.Info("rejecting connection, server full", "from", conn.RemoteAddr())
			_ = conn.CloseWithError(codeRejected, "server full")
			continue
		}
		m.admitted.Add(1)

		m.wg.Add(1)
		go m.handleIncoming(conn)
	}
}

func (m *Manager) handleIncoming(conn quic.Connection) {
	defer m.wg.Done()

	timeout := m.cfg.Peer.HandshakeTimeout.Duration()
	ctx, cancel := context.WithTimeout(m.ctx, timeout)
	defer cancel()

	var (
		st quic.Stream
		br *bufio.Reader
	)
	st, err := conn.AcceptStream(ctx)
	if err == nil {
		br = bufio.NewReader(st)
		err = expectHello(st, br, timeout)
	}
	if err != nil {
		m.admitted.Add(-1)
		log.Debug("incoming handshake failed", "from", conn.RemoteAddr(), "err", err)
		_ = conn.CloseWithError(codeProtocol, "handshake failed")
		return
	}

	p, err := newPeer(m, conn, st, br)
	if err != nil {
		m.admitted.Add(-1)
		_ = conn.CloseWithError(codeProtocol, "bad address")
		return
	}
	m.addPeer(p)
	log.Info("peer accepted", "peer", p)

	if m.push(event{kind: evConnected, peer: p}) {
		p.run()
	}
}

func expectHello(st quic.Stream, br *bufio.Reader, timeout time.Duration) error {
	_ = st.SetReadDeadline(time.Now().Add(timeout))
	defer st.SetReadDeadline(time.Time{})

	body, err := readFrame(br)
	if err != nil {
		return err
	}
	if string(body) != string(helloMagic) {
		return ErrBadHello
	}
	return nil
}

func endpointOf(conn quic.Connection) (types.Endpoint, error) {
	ua, ok := conn.RemoteAddr().(*net.UDPAddr)
	if !ok {
		return types.Endpoint{}, types.ErrInvalidEndpoint
	}
	return types.EndpointFromUDPAddr(ua)
}

func (m *Manager) addPeer(p *Peer) {
	m.peersMu.Lock()
	m.peers[p.id] = p
	m.peersMu.Unlock()
}

// removePeer 移除连接，返回是否存在
func (m *Manager) removePeer(p *Peer) bool {
	m.peersMu.Lock()
	defer m.peersMu.Unlock()
	if m.peers[p.id] != p {
		return false
	}
	delete(m.peers, p.id)
	m.admitted.Add(-1)
	return true
}

func (m *Manager) peerList() []*Peer {
	m.peersMu.RLock()
	defer m.peersMu.RUnlock()
	out := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Peers 返回已连接的对端，按 ConnectID 排序
func (m *Manager) Peers() []interfaces.Peer {
	list := m.peerList()
	out := make([]interfaces.Peer, len(list))
	for i, p := range list {
		out[i] = p
	}
	return out
}

// PeersCount 返回已连接对端数量
func (m *Manager) PeersCount() int {
	m.peersMu.RLock()
	defer m.peersMu.RUnlock()
	return len(m.peers)
}

// Peer 按 ConnectID 查找
func (m *Manager) Peer(id types.ConnectID) (*Peer, bool) {
	m.peersMu.RLock()
	defer m.peersMu.RUnlock()
	p, ok := m.peers[id]
	return p, ok
}

// ============================================================================
//                              数据报
// ============================================================================

// onDatagram 套接字回调，按首字节分流
func (m *Manager) onDatagram(_ context.Context, data []byte, code int, from types.Endpoint) {
	if code != 0 {
		m.tryPush(event{kind: evError, from: from, code: code})
		return
	}
	if len(data) == 0 {
		return
	}

	switch b := data[0]; {
	case b&0x40 != 0:
		if !m.pconn.deliver(data, from) {
			log.Debug("quic inbound queue full, dropping", "from", from)
		}
	case b == byte(types.UnconnectedDiscoveryRequest), b == byte(types.UnconnectedDiscoveryResponse):
		m.bw.LogRecv(len(data))
		m.tryPush(event{
			kind:  evUnconnected,
			from:  from,
			data:  append([]byte(nil), data[1:]...),
			ukind: types.UnconnectedKind(b),
		})
	default:
		log.Debug("unknown datagram dropped", "from", from, "first", b)
	}
}

func (m *Manager) runningSocket() *udp.Socket {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running.Load() {
		return nil
	}
	return m.socket
}

func unconnected(kind types.UnconnectedKind, data []byte) []byte {
	pkt := make([]byte, 0, len(data)+1)
	pkt = append(pkt, byte(kind))
	return append(pkt, data...)
}

// SendDiscoveryRequest 向局域网广播发现请求
func (m *Manager) SendDiscoveryRequest(data []byte, port int) error {
	sock := m.runningSocket()
	if sock == nil {
		return ErrNotRunning
	}
	pkt := unconnected(types.UnconnectedDiscoveryRequest, data)
	if err := sock.SendBroadcast(pkt, port); err != nil {
		return err
	}
	m.bw.LogSent(len(pkt))
	return nil
}

// SendDiscoveryRequestTo 向指定地址发送发现请求
func (m *Manager) SendDiscoveryRequestTo(data []byte, ep types.Endpoint) error {
	return m.sendUnconnected(types.UnconnectedDiscoveryRequest, data, ep)
}

// SendDiscoveryResponse 回复发现请求，超出速率限制时返回 ErrRateLimited
func (m *Manager) SendDiscoveryResponse(data []byte, ep types.Endpoint) error {
	if !m.limiter.Allow() {
		return ErrRateLimited
	}
	return m.sendUnconnected(types.UnconnectedDiscoveryResponse, data, ep)
}

func (m *Manager) sendUnconnected(kind types.UnconnectedKind, data []byte, ep types.Endpoint) error {
	sock := m.runningSocket()
	if sock == nil {
		return ErrNotRunning
	}
	pkt := unconnected(kind, data)
	if _, err := sock.Send(pkt, ep); err != nil {
		return err
	}
	m.bw.LogSent(len(pkt))
	return nil
}

// ============================================================================
//                              统计
// ============================================================================

// Stats 返回全局带宽统计
func (m *Manager) Stats() metrics.Stats {
	return m.bw.Totals()
}

// Bandwidth 返回带宽计数器
func (m *Manager) Bandwidth() *metrics.BandwidthCounter {
	return m.bw
}
