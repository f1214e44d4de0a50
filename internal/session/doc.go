// Package session 实现会话与实体复制层
//
// Scene 实现 interfaces.EventListener，由 PeerManager.PollEvents 在控制线程上
// 驱动。连接列表、消息分发表、实体注册表与发送缓冲区都归属于一个 Scene
// 实例，只能在控制线程上访问，因此不加锁。
//
// 两种场景：
//
//   - ServerScene: 分配网络 ID，向就绪连接复制实体，处理玩家控制器请求
//   - ClientScene: 通过 interfaces.Spawner 在本地构造/销毁实体
//
// 线上格式：每条消息以 2 字节小端序类型标签开头，随后是消息体，
// 详见 pkg/protocol。
package session
