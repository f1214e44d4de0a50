package netpeer

import (
	"time"

	"github.com/dep2p/go-tinynet/pkg/types"
)

type eventKind uint8

const (
	evConnected eventKind = iota
	evDisconnected
	evReceive
	evUnconnected
	evError
	evLatency
)

func (k eventKind) String() string {
	switch k {
	case evConnected:
		return "connected"
	case evDisconnected:
		return "disconnected"
	case evReceive:
		return "receive"
	case evUnconnected:
		return "unconnected"
	case evError:
		return "error"
	case evLatency:
		return "latency"
	default:
		return "unknown"
	}
}

// event 接收 goroutine 交给控制线程的事件
type event struct {
	kind    eventKind
	peer    *Peer
	data    []byte
	method  types.DeliveryMethod
	from    types.Endpoint
	ukind   types.UnconnectedKind
	code    int
	info    types.DisconnectInfo
	latency time.Duration
}

// push 阻塞入队，管理器停止时放弃
func (m *Manager) push(ev event) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.ctx.Done():
		return false
	}
}

// tryPush 非阻塞入队，队列满时丢弃
func (m *Manager) tryPush(ev event) bool {
	select {
	case m.events <- ev:
		return true
	default:
		log.Debug("event queue full, dropping", "kind", ev.kind)
		return false
	}
}

// PollEvents 在当前线程上分发调用时已排队的事件，然后执行到期的延迟探测
//
// 回调中新产生的事件留到下一次调用。
func (m *Manager) PollEvents() {
	n := len(m.events)
drain:
	for i := 0; i < n; i++ {
		select {
		case ev := <-m.events:
			m.dispatch(ev)
		default:
			break drain
		}
	}
	m.pingDue()
}

func (m *Manager) dispatch(ev event) {
	switch ev.kind {
	case evConnected:
		ev.peer.announced.Store(true)
		m.listener.OnPeerConnected(ev.peer)
	case evDisconnected:
		ev.peer.announced.Store(false)
		m.listener.OnPeerDisconnected(ev.peer, ev.info)
	case evReceive:
		m.listener.OnNetworkReceive(ev.peer, ev.data, ev.method)
	case evUnconnected:
		m.listener.OnNetworkReceiveUnconnected(ev.from, ev.data, ev.ukind)
	case evError:
		m.listener.OnNetworkError(ev.from, ev.code)
	case evLatency:
		m.listener.OnNetworkLatencyUpdate(ev.peer, ev.latency)
	}
}
