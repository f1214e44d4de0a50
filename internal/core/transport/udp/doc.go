// Package udp 实现双栈 UDP 套接字
//
// Socket 同时持有一个 IPv4 与一个（可选的）IPv6 UDP 套接字，绑定在同一端口上，
// 每个套接字一个接收 goroutine，收到的数据报通过 ReceiveFunc 回调交给上层。
//
// # 错误分类
//
//   - 瞬时错误（EINTR、ENOBUFS、EAGAIN）：Send 返回 (0, nil)，SendBroadcast 视为失败
//   - 接收端可忽略错误（ECONNRESET、ECONNREFUSED、EMSGSIZE、EINTR）：仅记录 debug 日志
//   - 其余接收错误：以 (nil, code, 最近来源) 回调上层后继续接收
//   - 其余发送错误：返回 *SendError，可用 errors.Is 匹配操作系统错误码
//
// # 并发
//
// 两个接收循环的回调由同一把锁串行化。Close 等待两个接收循环退出，返回后
// 不会再有回调执行。回调内关闭套接字用 CloseContext(ctx)，ctx 为回调收到的
// 标记，此时只关闭不等待。
//
// 数据报缓冲区在接收循环内复用，回调中的 data 仅在回调期间有效。
//
// 架构层：Core Layer
package udp
