package metrics

import (
	"context"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-tinynet/internal/util/logger"
)

var log = logger.Logger("metrics")

// Snapshot 网络指标快照
type Snapshot struct {
	// 时间信息
	Timestamp     time.Time     `json:"timestamp"`
	UptimeSeconds int64         `json:"uptimeSeconds"`
	Interval      time.Duration `json:"interval"`

	// 连接统计
	ConnectedPeers int `json:"connectedPeers"`

	// 带宽统计
	BytesSent   int64   `json:"bytesSent"`
	BytesRecv   int64   `json:"bytesRecv"`
	SendRateBps float64 `json:"sendRateBps"`
	RecvRateBps float64 `json:"recvRateBps"`

	// 资源统计
	Goroutines  int     `json:"goroutines"`
	HeapAllocMB float64 `json:"heapAllocMB"`
}

// Source 快照数据源
type Source interface {
	PeersCount() int
	Bandwidth() *BandwidthCounter
}

// SnapshotCollector 周期性收集并输出快照
type SnapshotCollector struct {
	name string
	src  Source
	clk  clock.Clock

	mu        sync.Mutex
	startTime time.Time
	lastTime  time.Time
	last      *Snapshot
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewSnapshotCollector 创建收集器，clk 为 nil 时使用系统时钟
func NewSnapshotCollector(name string, src Source, clk clock.Clock) *SnapshotCollector {
	if clk == nil {
		clk = clock.New()
	}
	now := clk.Now()
	return &SnapshotCollector{
		name:      name,
		src:       src,
		clk:       clk,
		startTime: now,
		lastTime:  now,
	}
}

// Start 启动周期性快照，已启动时为空操作
func (c *SnapshotCollector) Start(interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	ticker := c.clk.Ticker(interval)
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.logSnapshot(c.Collect())
			}
		}
	}()
}

// Stop 停止快照收集
func (c *SnapshotCollector) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// Collect 收集当前快照
func (c *SnapshotCollector) Collect() *Snapshot {
	now := c.clk.Now()

	c.mu.Lock()
	elapsed := now.Sub(c.lastTime)
	uptime := now.Sub(c.startTime)
	c.mu.Unlock()

	s := &Snapshot{
		Timestamp:     now,
		UptimeSeconds: int64(uptime.Seconds()),
		Interval:      elapsed,
		Goroutines:    runtime.NumGoroutine(),
	}
	if c.src != nil {
		s.ConnectedPeers = c.src.PeersCount()
		if bw := c.src.Bandwidth(); bw != nil {
			t := bw.Totals()
			s.BytesSent, s.BytesRecv = t.TotalOut, t.TotalIn
			s.SendRateBps, s.RecvRateBps = t.RateOut, t.RateIn
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.HeapAllocMB = float64(ms.HeapAlloc) / 1024 / 1024

	c.mu.Lock()
	c.last = s
	c.lastTime = now
	c.mu.Unlock()
	return s
}

// Last 返回最近一次快照，尚未收集时为 nil
func (c *SnapshotCollector) Last() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *SnapshotCollector) logSnapshot(s *Snapshot) {
	log.Info("网络指标快照",
		"name", c.name,
		"uptime", s.UptimeSeconds,
		"peers", s.ConnectedPeers,
		"bytesSent", s.BytesSent,
		"bytesRecv", s.BytesRecv,
		"sendRate", FormatRate(s.SendRateBps),
		"recvRate", FormatRate(s.RecvRateBps),
		"goroutines", s.Goroutines)
}

// FormatRate 格式化速率
func FormatRate(bps float64) string {
	switch {
	case bps < 1024:
		return strconv.FormatFloat(bps, 'f', 2, 64) + " B/s"
	case bps < 1024*1024:
		return strconv.FormatFloat(bps/1024, 'f', 2, 64) + " KB/s"
	default:
		return strconv.FormatFloat(bps/1024/1024, 'f', 2, 64) + " MB/s"
	}
}
