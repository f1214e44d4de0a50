package netpeer

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-tinynet/internal/core/metrics"
	"github.com/dep2p/go-tinynet/pkg/interfaces"
	"github.com/dep2p/go-tinynet/pkg/types"
)

// 编译期接口检查
var _ interfaces.Peer = (*Peer)(nil)

// Peer 已建立的连接
type Peer struct {
	m    *Manager
	id   types.ConnectID
	ep   types.Endpoint
	conn quic.Connection

	// ordered 有序流，写操作由 writeMu 串行化
	ordered quic.Stream
	reader  *bufio.Reader
	writeMu sync.Mutex
	frame   []byte

	seqOut atomic.Uint32

	// 仅由 datagram 接收 goroutine 访问
	seqIn     uint16
	seqInSeen bool

	latency atomic.Int64

	closing atomic.Bool

	// announced 监听者已收到 OnPeerConnected 且尚未收到 OnPeerDisconnected
	announced atomic.Bool

	errMu   sync.Mutex
	lastErr error

	wg sync.WaitGroup
}

func newPeer(m *Manager, conn quic.Connection, ordered quic.Stream, r *bufio.Reader) (*Peer, error) {
	ep, err := endpointOf(conn)
	if err != nil {
		return nil, err
	}
	return &Peer{
		m:       m,
		id:      types.ConnectID(m.nextID.Add(1)),
		ep:      ep,
		conn:    conn,
		ordered: ordered,
		reader:  r,
	}, nil
}

// ConnectID 实现 interfaces.Peer
func (p *Peer) ConnectID() types.ConnectID { return p.id }

// Endpoint 实现 interfaces.Peer
func (p *Peer) Endpoint() types.Endpoint { return p.ep }

// Latency 实现 interfaces.Peer
func (p *Peer) Latency() time.Duration { return time.Duration(p.latency.Load()) }

// Stats 返回该连接的带宽统计
func (p *Peer) Stats() metrics.Stats { return p.m.bw.ForPeer(p.id) }

// String 返回 "id@endpoint"
func (p *Peer) String() string { return p.id.String() + "@" + p.ep.String() }

// Send 实现 interfaces.Peer
//
// 可靠方式在流量控制窗口耗尽时阻塞。
func (p *Peer) Send(data []byte, method types.DeliveryMethod) error {
	if p.closing.Load() || p.conn.Context().Err() != nil {
		return ErrPeerClosed
	}

	var err error
	switch method {
	case types.ReliableOrdered:
		err = p.sendOrdered(data)
	case types.ReliableUnordered:
		err = p.sendUnordered(data)
	case types.Unreliable:
		buf := make([]byte, 0, len(data)+1)
		buf = append(buf, dgUnreliable)
		err = p.conn.SendDatagram(append(buf, data...))
	case types.Sequenced:
		seq := uint16(p.seqOut.Add(1))
		err = p.conn.SendDatagram(appendSequenced(make([]byte, 0, len(data)+3), seq, data))
	default:
		return ErrUnknownDeliveryMethod
	}
	if err != nil {
		return err
	}

	p.m.bw.LogSentPeer(len(data), p.id, method)
	return nil
}

func (p *Peer) sendOrdered(data []byte) error {
	if len(data) > MaxReliableMessageSize {
		return ErrMessageTooLarge
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.frame = appendFrame(p.frame[:0], data)
	_, err := p.ordered.Write(p.frame)
	return err
}

func (p *Peer) sendUnordered(data []byte) error {
	if len(data) > MaxReliableMessageSize {
		return ErrMessageTooLarge
	}
	s, err := p.conn.OpenUniStream()
	if err != nil {
		ctx, cancel := context.WithTimeout(p.conn.Context(), p.m.cfg.Peer.HandshakeTimeout.Duration())
		defer cancel()
		if s, err = p.conn.OpenUniStreamSync(ctx); err != nil {
			return err
		}
	}
	if _, err := s.Write(data); err != nil {
		s.CancelWrite(codeNormal)
		return err
	}
	return s.Close()
}

// Disconnect 实现 interfaces.Peer
//
// 断开事件随后经 PollEvents 送达，原因为 DisconnectLocalClose。
func (p *Peer) Disconnect() error {
	if !p.closing.CompareAndSwap(false, true) {
		return nil
	}
	return p.conn.CloseWithError(codeNormal, "")
}

// sendPing 发送延迟探测
func (p *Peer) sendPing(now time.Time) {
	if err := p.conn.SendDatagram(appendPing(nil, dgPing, now.UnixNano())); err != nil {
		log.Debug("ping failed", "peer", p, "err", err)
	}
}

// run 启动该连接的接收 goroutine，连接结束后投递断开事件
func (p *Peer) run() {
	p.wg.Add(3)
	go p.readOrdered()
	go p.acceptUnordered()
	go p.readDatagrams()

	p.m.wg.Add(1)
	go p.watch()
}

// fail 记录第一个接收错误，连接上下文没有携带原因时使用
func (p *Peer) fail(err error) {
	p.errMu.Lock()
	if p.lastErr == nil {
		p.lastErr = err
	}
	p.errMu.Unlock()
}

func (p *Peer) readOrdered() {
	defer p.wg.Done()
	for {
		body, err := readFrame(p.reader)
		if err != nil {
			if errors.Is(err, ErrMessageTooLarge) {
				log.Warn("oversized frame, closing", "peer", p, "err", err)
				_ = p.conn.CloseWithError(codeProtocol, "oversized frame")
			}
			p.fail(err)
			return
		}
		p.m.bw.LogRecvPeer(len(body), p.id, types.ReliableOrdered)
		if !p.m.push(event{kind: evReceive, peer: p, data: body, method: types.ReliableOrdered}) {
			return
		}
	}
}

func (p *Peer) acceptUnordered() {
	defer p.wg.Done()
	ctx := p.conn.Context()
	for {
		s, err := p.conn.AcceptUniStream(ctx)
		if err != nil {
			p.fail(err)
			return
		}
		p.wg.Add(1)
		go p.readUnordered(s)
	}
}

func (p *Peer) readUnordered(s quic.ReceiveStream) {
	defer p.wg.Done()
	body, err := io.ReadAll(io.LimitReader(s, MaxReliableMessageSize+1))
	if err != nil {
		log.Debug("unordered stream read failed", "peer", p, "err", err)
		return
	}
	if len(body) > MaxReliableMessageSize {
		s.CancelRead(codeProtocol)
		log.Warn("oversized unordered message dropped", "peer", p)
		return
	}
	p.m.bw.LogRecvPeer(len(body), p.id, types.ReliableUnordered)
	p.m.push(event{kind: evReceive, peer: p, data: body, method: types.ReliableUnordered})
}

func (p *Peer) readDatagrams() {
	defer p.wg.Done()
	ctx := p.conn.Context()
	for {
		d, err := p.conn.ReceiveDatagram(ctx)
		if err != nil {
			p.fail(err)
			return
		}
		p.handleDatagram(d)
	}
}

// handleDatagram 处理一个 datagram，只在 datagram 接收 goroutine 上调用
func (p *Peer) handleDatagram(d []byte) {
	if len(d) == 0 {
		return
	}
	switch d[0] {
	case dgUnreliable:
		p.m.bw.LogRecvPeer(len(d)-1, p.id, types.Unreliable)
		p.m.tryPush(event{kind: evReceive, peer: p, data: d[1:], method: types.Unreliable})
	case dgSequenced:
		if len(d) < 3 {
			return
		}
		seq := binary.LittleEndian.Uint16(d[1:])
		if p.seqInSeen && !seqNewer(seq, p.seqIn) {
			return
		}
		p.seqIn, p.seqInSeen = seq, true
		p.m.bw.LogRecvPeer(len(d)-3, p.id, types.Sequenced)
		p.m.tryPush(event{kind: evReceive, peer: p, data: d[3:], method: types.Sequenced})
	case dgPing:
		if len(d) < 9 {
			return
		}
		pong := append([]byte{dgPong}, d[1:9]...)
		if err := p.conn.SendDatagram(pong); err != nil {
			log.Debug("pong failed", "peer", p, "err", err)
		}
	case dgPong:
		if len(d) < 9 {
			return
		}
		sent := time.Unix(0, int64(binary.LittleEndian.Uint64(d[1:])))
		rtt := p.m.clk.Now().Sub(sent)
		if rtt < 0 {
			return
		}
		latency := rtt / 2
		p.latency.Store(int64(latency))
		p.m.tryPush(event{kind: evLatency, peer: p, latency: latency})
	default:
		log.Debug("unknown datagram kind", "peer", p, "kind", d[0])
	}
}

// watch 等待连接结束与接收 goroutine 退出后投递断开事件
func (p *Peer) watch() {
	defer p.m.wg.Done()

	ctx := p.conn.Context()
	<-ctx.Done()
	p.wg.Wait()

	cause := context.Cause(ctx)
	if cause == nil || errors.Is(cause, context.Canceled) {
		p.errMu.Lock()
		if p.lastErr != nil {
			cause = p.lastErr
		}
		p.errMu.Unlock()
	}
	info := disconnectInfo(cause, p.closing.Load())

	if !p.m.removePeer(p) {
		return
	}
	p.m.bw.RemovePeer(p.id)
	log.Debug("peer disconnected", "peer", p, "reason", info.Reason, "err", info.Err)
	p.m.push(event{kind: evDisconnected, peer: p, info: info})
}

// disconnectInfo 把连接关闭错误映射为断开原因
func disconnectInfo(err error, localClose bool) types.DisconnectInfo {
	var (
		appErr  *quic.ApplicationError
		idleErr *quic.IdleTimeoutError
		hsErr   *quic.HandshakeTimeoutError
	)
	reason := types.DisconnectUnknown
	switch {
	case errors.As(err, &appErr):
		switch {
		case appErr.ErrorCode == codeRejected:
			reason = types.DisconnectRejected
		case appErr.Remote:
			reason = types.DisconnectRemoteClose
		case appErr.ErrorCode == codeShutdown:
			reason = types.DisconnectShutdown
		default:
			reason = types.DisconnectLocalClose
		}
	case errors.As(err, &idleErr), errors.As(err, &hsErr):
		reason = types.DisconnectTimeout
	case localClose:
		reason = types.DisconnectLocalClose
	}
	return types.DisconnectInfo{Reason: reason, Err: err}
}
