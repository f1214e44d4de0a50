package tinynet

import "errors"

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 节点生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = errors.New("node closed")

	// ErrServerRunning 服务端已启动，不能再修改监听参数
	ErrServerRunning = errors.New("server already running")

	// ErrClientNotStarted 客户端未启动
	ErrClientNotStarted = errors.New("client not started")

	// ────────────────────────────────────────────────────────────────────────
	// 参数错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrInvalidPort 端口超出范围
	ErrInvalidPort = errors.New("invalid port")

	// ErrInvalidMaxPlayers 最大玩家数必须为正
	ErrInvalidMaxPlayers = errors.New("max players must be positive")
)
