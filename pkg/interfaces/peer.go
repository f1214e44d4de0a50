// Package interfaces 定义 tinynet 公共接口
//
// 本文件定义 Peer 与 PeerManager 接口。
package interfaces

import (
	"time"

	"github.com/dep2p/go-tinynet/pkg/types"
)

// Peer 已连接的对端
type Peer interface {
	// ConnectID 返回连接的稳定数字标识
	ConnectID() types.ConnectID

	// Endpoint 返回对端地址
	Endpoint() types.Endpoint

	// Send 按指定投递方式发送数据
	Send(data []byte, method types.DeliveryMethod) error

	// Latency 返回最近一次测得的单程延迟
	Latency() time.Duration

	// Disconnect 主动断开
	Disconnect() error
}

// PeerManager 节点管理器
//
// 会话层通过它轮询事件与收发发现报文。
type PeerManager interface {
	// PollEvents 在当前线程上分发已排队的事件
	PollEvents()

	// Peers 返回当前已连接的对端
	Peers() []Peer

	// PeersCount 返回已连接对端数量
	PeersCount() int

	// LocalPort 返回本地绑定端口
	LocalPort() int

	// IsRunning 是否正在运行
	IsRunning() bool

	// SendDiscoveryRequest 向局域网广播发现请求
	SendDiscoveryRequest(data []byte, port int) error

	// SendDiscoveryRequestTo 向指定地址发送发现请求
	SendDiscoveryRequestTo(data []byte, ep types.Endpoint) error

	// SendDiscoveryResponse 回复发现请求
	SendDiscoveryResponse(data []byte, ep types.Endpoint) error
}
