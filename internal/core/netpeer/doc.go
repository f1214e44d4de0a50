// Package netpeer 实现节点管理器与可靠性通道
//
// Manager 在一个双栈 udp.Socket 之上运行 QUIC（quic-go），向上提供
// 面向连接的 Peer 与四种投递方式：
//
//   - Unreliable：QUIC datagram
//   - Sequenced：QUIC datagram + 16 位序号，旧包丢弃
//   - ReliableUnordered：每条消息一个单向流
//   - ReliableOrdered：每个连接一个双向流，消息以 varint 长度前缀分帧
//
// # 数据报分流
//
// 套接字回调按首字节分流：设置了 QUIC 固定位（0x40）的交给 QUIC，
// 0x01/0x02 是无连接的发现请求/响应，其余丢弃。QUIC 通过 packetConn
// 适配器读取，入站队列有界，满时丢包。
//
// # 事件与线程
//
// 接收 goroutine 只把事件放进有界队列。PollEvents 在调用方线程（控制线程）
// 上分发调用时已排队的事件，然后执行到期的延迟探测。所有 EventListener
// 回调都在控制线程上执行。
//
// 架构层：Core Layer
// 公共接口：pkg/interfaces/peer.go
package netpeer
