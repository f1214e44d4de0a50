package session

import (
	"github.com/dep2p/go-tinynet/pkg/protocol"
	"github.com/dep2p/go-tinynet/pkg/types"
)

// Identity 带完整复制元数据的网络实体
//
// 服务端由 ServerScene.Spawn/SpawnScene 创建；客户端在收到生成消息后创建，
// Handle 为 Spawner 返回的本地句柄。
type Identity struct {
	id types.NetworkID

	// AssetID 预制体/类型引用，场景对象为空
	AssetID string

	// SceneID 场景对象 ID，非场景对象为 0
	SceneID uint32

	// Position 生成位置
	Position protocol.Vector3

	// Payload 初始状态
	Payload []byte

	// Handle 本地句柄
	Handle any

	owner     *Connection
	authority bool
}

// NetworkID 实现 Networked
func (i *Identity) NetworkID() types.NetworkID {
	return i.id
}

// IsSceneObject 是否为场景中已存在的对象
func (i *Identity) IsSceneObject() bool {
	return i.SceneID != 0
}

// Owner 拥有客户端权限的连接，nil 表示由服务端拥有（仅服务端有意义）
func (i *Identity) Owner() *Connection {
	return i.owner
}

// HasAuthority 本地客户端是否拥有该实体的权限（仅客户端有意义）
func (i *Identity) HasAuthority() bool {
	return i.authority
}

func (i *Identity) spawnMessage() protocol.Message {
	if i.IsSceneObject() {
		return &protocol.ObjectSpawnScene{
			NetworkID: i.id,
			SceneID:   i.SceneID,
			Position:  i.Position,
			Payload:   i.Payload,
		}
	}
	return &protocol.ObjectSpawn{
		NetworkID: i.id,
		AssetID:   i.AssetID,
		Position:  i.Position,
		Payload:   i.Payload,
	}
}

// NetObject 只需要按 ID 查找的轻量网络对象
type NetObject = Networked
