// Package interfaces 定义 tinynet 公共接口
//
// 本文件定义 Spawner 接口，由应用提供实体的本地构造与销毁。
package interfaces

import (
	"github.com/dep2p/go-tinynet/pkg/protocol"
	"github.com/dep2p/go-tinynet/pkg/types"
)

// Spawner 客户端实体构造协作者
//
// 会话层只负责把网络 ID 绑定到返回的本地句柄，句柄的含义由应用决定。
type Spawner interface {
	// Spawn 按资源引用构造实体
	Spawn(msg *protocol.ObjectSpawn) (handle any, err error)

	// SpawnScene 激活场景中已存在的对象
	SpawnScene(msg *protocol.ObjectSpawnScene) (handle any, err error)

	// Destroy 销毁实体
	Destroy(id types.NetworkID, handle any)

	// Hide 隐藏实体（不再观察，但不销毁网络状态）
	Hide(id types.NetworkID, handle any)
}
