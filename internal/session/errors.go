package session

import "errors"

var (
	// ErrNilHandler 处理器为空
	ErrNilHandler = errors.New("handler is nil")

	// ErrHandlerExists 类型标签已注册处理器
	ErrHandlerExists = errors.New("handler already registered")

	// ErrInvalidNetworkID 网络 ID 无效（为 0）
	ErrInvalidNetworkID = errors.New("invalid network id")

	// ErrDuplicateNetworkID 网络 ID 已注册
	ErrDuplicateNetworkID = errors.New("duplicate network id")

	// ErrIDExhausted 本会话的网络 ID 已分配完
	ErrIDExhausted = errors.New("network id space exhausted")

	// ErrInvalidSceneID 场景对象 ID 为 0
	ErrInvalidSceneID = errors.New("invalid scene id")

	// ErrUnknownObject 网络 ID 未注册
	ErrUnknownObject = errors.New("unknown network object")

	// ErrInvalidControllerID 玩家控制器 ID 越界
	ErrInvalidControllerID = errors.New("invalid player controller id")

	// ErrPlayerSlotTaken 玩家控制器槽位已被占用
	ErrPlayerSlotTaken = errors.New("player controller slot already taken")

	// ErrNoConnection 消息来源没有对应的连接
	ErrNoConnection = errors.New("connection not found")

	// ErrNotConnected 客户端尚未连接到主机
	ErrNotConnected = errors.New("not connected to host")

	// ErrNotBound 场景未绑定 PeerManager
	ErrNotBound = errors.New("scene not bound to a peer manager")

	// ErrNotReady 连接尚未就绪
	ErrNotReady = errors.New("connection not ready")
)
