// Package interfaces 定义 tinynet 公共接口
//
// 本文件定义 EventListener 接口，接收节点管理器产生的网络事件。
package interfaces

import (
	"time"

	"github.com/dep2p/go-tinynet/pkg/types"
)

// EventListener 网络事件监听器
//
// 由 PeerManager.PollEvents 在控制线程上调用。
type EventListener interface {
	// OnPeerConnected 对端连接建立
	OnPeerConnected(peer Peer)

	// OnPeerDisconnected 对端断开
	OnPeerDisconnected(peer Peer, info types.DisconnectInfo)

	// OnNetworkReceive 收到已连接对端的消息
	//
	// data 仅在回调期间有效。
	OnNetworkReceive(peer Peer, data []byte, method types.DeliveryMethod)

	// OnNetworkReceiveUnconnected 收到无连接数据报（发现请求/响应）
	OnNetworkReceiveUnconnected(from types.Endpoint, data []byte, kind types.UnconnectedKind)

	// OnNetworkError 套接字错误
	//
	// code 为操作系统错误码，from 为最近一次收到数据的来源。
	OnNetworkError(from types.Endpoint, code int)

	// OnNetworkLatencyUpdate 对端延迟更新（单程估计）
	OnNetworkLatencyUpdate(peer Peer, latency time.Duration)
}
