// Package interfaces 定义 tinynet 的公共接口
//
// 接口按层组织，采用扁平命名：
//
// # Transport / Peer Layer 接口
//
//   - listener.go  - EventListener 网络事件回调
//   - peer.go      - Peer 已连接对端，PeerManager 节点管理器
//
// # Session Layer 接口
//
//   - spawner.go   - Spawner 客户端实体构造协作者
//
// # 线程模型
//
// EventListener 的所有回调都在调用 PeerManager.PollEvents 的控制线程上执行，
// 实现无需加锁。
package interfaces
