// Package tinynet 提供双栈 UDP 传输与会话复制层
//
// tinynet 面向小规模联机游戏：一个服务端场景负责实体的权威状态，
// 客户端场景把服务端复制下来的实体交给宿主应用构造。
//
// # 核心概念
//
//   - Node: 用户交互的主入口，持有服务端与客户端两个场景
//   - Scene: 连接列表、消息处理器与实体注册表
//   - Spawner: 宿主应用实现的实体构造协作者
//
// # 快速开始
//
//	node, err := tinynet.New(
//	    tinynet.WithPort(7777),
//	    tinynet.WithMaxPlayers(4),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	if err := node.StartServer(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	node.Server().Spawn("player", session.SpawnOptions{})
//
//	for running {
//	    node.Update()
//	    time.Sleep(15 * time.Millisecond)
//	}
//
// # 线程模型
//
// 网络事件在后台 goroutine 中接收并排队，只在 Update 调用时分发。
// 场景的所有方法都必须在调用 Update 的同一线程上使用。
package tinynet
