package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-tinynet/pkg/types"
)

// Stats 一个连接、一种投递方式或全部流量的计数
//
// 连接与投递方式维度只计消息负载，总计按套接字收发的数据报计。
type Stats struct {
	TotalIn  int64
	TotalOut int64
	RateIn   float64 // 字节/秒
	RateOut  float64
}

// flow 单个维度的计数与速率
type flow struct {
	in, out         atomic.Int64
	inRate, outRate *RateMeter
}

func newFlow(clk clock.Clock) *flow {
	return &flow{inRate: NewRateMeter(clk), outRate: NewRateMeter(clk)}
}

func (f *flow) sent(n int64) {
	f.out.Add(n)
	f.outRate.Add(n)
}

func (f *flow) recv(n int64) {
	f.in.Add(n)
	f.inRate.Add(n)
}

func (f *flow) stats() Stats {
	if f == nil {
		return Stats{}
	}
	return Stats{
		TotalIn:  f.in.Load(),
		TotalOut: f.out.Load(),
		RateIn:   f.inRate.Rate(),
		RateOut:  f.outRate.Rate(),
	}
}

// BandwidthCounter 带宽计数器
type BandwidthCounter struct {
	clk   clock.Clock
	total *flow

	mu      sync.RWMutex
	peers   map[types.ConnectID]*flow
	methods map[types.DeliveryMethod]*flow
}

// NewBandwidthCounter 创建计数器，clk 为 nil 时使用系统时钟
func NewBandwidthCounter(clk clock.Clock) *BandwidthCounter {
	if clk == nil {
		clk = clock.New()
	}
	return &BandwidthCounter{
		clk:     clk,
		total:   newFlow(clk),
		peers:   make(map[types.ConnectID]*flow),
		methods: make(map[types.DeliveryMethod]*flow),
	}
}

// LogSent 记录出站字节（不归属任何连接，如发现报文）
func (c *BandwidthCounter) LogSent(n int) {
	c.total.sent(int64(n))
}

// LogRecv 记录入站字节
func (c *BandwidthCounter) LogRecv(n int) {
	c.total.recv(int64(n))
}

// LogSentPeer 记录某连接以某投递方式发出的字节，同时计入全局
func (c *BandwidthCounter) LogSentPeer(n int, id types.ConnectID, m types.DeliveryMethod) {
	p, md := c.flows(id, m)
	c.total.sent(int64(n))
	p.sent(int64(n))
	md.sent(int64(n))
}

// LogRecvPeer 记录某连接以某投递方式收到的字节，同时计入全局
func (c *BandwidthCounter) LogRecvPeer(n int, id types.ConnectID, m types.DeliveryMethod) {
	p, md := c.flows(id, m)
	c.total.recv(int64(n))
	p.recv(int64(n))
	md.recv(int64(n))
}

func (c *BandwidthCounter) flows(id types.ConnectID, m types.DeliveryMethod) (*flow, *flow) {
	c.mu.RLock()
	p, md := c.peers[id], c.methods[m]
	c.mu.RUnlock()
	if p != nil && md != nil {
		return p, md
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p = c.peers[id]; p == nil {
		p = newFlow(c.clk)
		c.peers[id] = p
	}
	if md = c.methods[m]; md == nil {
		md = newFlow(c.clk)
		c.methods[m] = md
	}
	return p, md
}

// Totals 返回全局统计
func (c *BandwidthCounter) Totals() Stats {
	return c.total.stats()
}

// ForPeer 返回某连接的统计，未知连接返回零值
func (c *BandwidthCounter) ForPeer(id types.ConnectID) Stats {
	c.mu.RLock()
	f := c.peers[id]
	c.mu.RUnlock()
	return f.stats()
}

// ForMethod 返回某投递方式的统计
func (c *BandwidthCounter) ForMethod(m types.DeliveryMethod) Stats {
	c.mu.RLock()
	f := c.methods[m]
	c.mu.RUnlock()
	return f.stats()
}

// ByPeer 返回所有连接的统计
func (c *BandwidthCounter) ByPeer() map[types.ConnectID]Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[types.ConnectID]Stats, len(c.peers))
	for id, f := range c.peers {
		out[id] = f.stats()
	}
	return out
}

// RemovePeer 连接断开后丢弃其统计
func (c *BandwidthCounter) RemovePeer(id types.ConnectID) {
	c.mu.Lock()
	delete(c.peers, id)
	c.mu.Unlock()
}
