package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"

	"github.com/dep2p/go-tinynet/pkg/types"
)

// ============================================================================
//                              计数
// ============================================================================

func TestBandwidthCounter_Totals(t *testing.T) {
	c := NewBandwidthCounter(clock.NewMock())

	c.LogSent(1024)
	c.LogSent(2048)
	c.LogRecv(512)

	s := c.Totals()
	assert.Equal(t, int64(3072), s.TotalOut)
	assert.Equal(t, int64(512), s.TotalIn)
}

func TestBandwidthCounter_PeerAndMethod(t *testing.T) {
	c := NewBandwidthCounter(clock.NewMock())

	c.LogSentPeer(100, 1, types.ReliableOrdered)
	c.LogSentPeer(50, 2, types.Unreliable)
	c.LogRecvPeer(30, 1, types.Unreliable)

	assert.Equal(t, Stats{TotalIn: 30, TotalOut: 100, RateIn: 0.5, RateOut: 100.0 / 60}, c.ForPeer(1))
	assert.Equal(t, int64(50), c.ForPeer(2).TotalOut)
	assert.Equal(t, int64(100), c.ForMethod(types.ReliableOrdered).TotalOut)
	assert.Equal(t, int64(50), c.ForMethod(types.Unreliable).TotalOut)
	assert.Equal(t, int64(30), c.ForMethod(types.Unreliable).TotalIn)

	total := c.Totals()
	assert.Equal(t, int64(150), total.TotalOut)
	assert.Equal(t, int64(30), total.TotalIn)

	assert.Len(t, c.ByPeer(), 2)
	c.RemovePeer(1)
	assert.Equal(t, Stats{}, c.ForPeer(1))
	assert.Len(t, c.ByPeer(), 1)
}

func TestBandwidthCounter_Concurrent(t *testing.T) {
	c := NewBandwidthCounter(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id types.ConnectID) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.LogSentPeer(1, id%2, types.Sequenced)
			}
		}(types.ConnectID(i))
	}
	wg.Wait()

	assert.Equal(t, int64(800), c.Totals().TotalOut)
	assert.Equal(t, int64(400), c.ForPeer(0).TotalOut)
	assert.Equal(t, int64(800), c.ForMethod(types.Sequenced).TotalOut)
}

// ============================================================================
//                              速率
// ============================================================================

func TestRateMeter_Window(t *testing.T) {
	mock := clock.NewMock()
	r := NewRateMeter(mock)

	r.Add(600)
	assert.InDelta(t, 10.0, r.Rate(), 1e-9)

	mock.Add(30 * time.Second)
	r.Add(600)
	assert.InDelta(t, 20.0, r.Rate(), 1e-9)

	// 第一次写入滑出窗口
	mock.Add(31 * time.Second)
	assert.InDelta(t, 10.0, r.Rate(), 1e-9)

	mock.Add(2 * time.Minute)
	assert.Zero(t, r.Rate())
	assert.Equal(t, mock.Now(), r.LastUpdate())
}
