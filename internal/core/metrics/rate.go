package metrics

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const rateWindow = 60

// RateMeter 滑动窗口速率计
//
// 60 个 1 秒桶，Rate 返回最近 60 秒的平均字节/秒。
type RateMeter struct {
	clk clock.Clock

	mu       sync.Mutex
	buckets  [rateWindow]int64
	idx      int
	lastTick time.Time
}

// NewRateMeter 创建速率计
func NewRateMeter(clk clock.Clock) *RateMeter {
	return &RateMeter{clk: clk, lastTick: clk.Now()}
}

// advance 把窗口推进到当前时间，调用方持有锁
func (r *RateMeter) advance(now time.Time) {
	steps := int(now.Sub(r.lastTick) / time.Second)
	if steps <= 0 {
		return
	}
	if steps >= rateWindow {
		r.buckets = [rateWindow]int64{}
		r.idx = 0
	} else {
		for i := 0; i < steps; i++ {
			r.idx = (r.idx + 1) % rateWindow
			r.buckets[r.idx] = 0
		}
	}
	r.lastTick = r.lastTick.Add(time.Duration(steps) * time.Second)
}

// Add 计入字节数
func (r *RateMeter) Add(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance(r.clk.Now())
	r.buckets[r.idx] += n
}

// Rate 返回窗口内的平均速率（字节/秒）
func (r *RateMeter) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance(r.clk.Now())

	var total int64
	for _, v := range r.buckets {
		total += v
	}
	return float64(total) / rateWindow
}

// LastUpdate 返回窗口最后推进的时间
func (r *RateMeter) LastUpdate() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastTick
}
