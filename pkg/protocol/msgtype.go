package protocol

import "github.com/dep2p/go-tinynet/pkg/types"

// 内置消息类型
const (
	// MsgObjectDestroy 销毁实体（服务端 → 客户端）
	MsgObjectDestroy types.MsgType = 1
	// MsgObjectHide 对某连接隐藏实体（服务端 → 客户端）
	MsgObjectHide types.MsgType = 2
	// MsgObjectSpawn 生成实体（服务端 → 客户端）
	MsgObjectSpawn types.MsgType = 3
	// MsgObjectSpawnScene 将场景内已有对象绑定到网络 ID（服务端 → 客户端）
	MsgObjectSpawnScene types.MsgType = 4
	// MsgObjectSpawnFinished 初始状态复制的屏障（服务端 → 客户端）
	MsgObjectSpawnFinished types.MsgType = 5
	// MsgAddPlayer 玩家控制器添加确认（服务端 → 客户端）
	MsgAddPlayer types.MsgType = 6
	// MsgRemovePlayer 玩家控制器移除确认（服务端 → 客户端）
	MsgRemovePlayer types.MsgType = 7
	// MsgRequestAddPlayer 请求添加玩家控制器（客户端 → 服务端）
	MsgRequestAddPlayer types.MsgType = 8
	// MsgRequestRemovePlayer 请求移除玩家控制器（客户端 → 服务端）
	MsgRequestRemovePlayer types.MsgType = 9
	// MsgClientAuthority 转移实体控制权（服务端 → 客户端）
	MsgClientAuthority types.MsgType = 10
	// MsgReady 客户端已就绪，可以接收实体（客户端 → 服务端）
	MsgReady types.MsgType = 11

	// MsgHighest 最大的内置消息类型
	MsgHighest = MsgReady

	// MsgUserBase 应用自定义消息类型的起始值
	MsgUserBase types.MsgType = 1000
)

var msgTypeNames = map[types.MsgType]string{
	MsgObjectDestroy:       "ObjectDestroy",
	MsgObjectHide:          "ObjectHide",
	MsgObjectSpawn:         "ObjectSpawn",
	MsgObjectSpawnScene:    "ObjectSpawnScene",
	MsgObjectSpawnFinished: "ObjectSpawnFinished",
	MsgAddPlayer:           "AddPlayer",
	MsgRemovePlayer:        "RemovePlayer",
	MsgRequestAddPlayer:    "RequestAddPlayer",
	MsgRequestRemovePlayer: "RequestRemovePlayer",
	MsgClientAuthority:     "ClientAuthority",
	MsgReady:               "Ready",
}

// MsgTypeName 返回消息类型的可读名称，未知类型返回数字形式
func MsgTypeName(t types.MsgType) string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "Unknown(" + t.String() + ")"
}

// IsBuiltin 是否为内置消息类型
func IsBuiltin(t types.MsgType) bool {
	return t > 0 && t <= MsgHighest
}
