package netpeer

import "errors"

var (
	// ErrNotRunning 管理器未运行
	ErrNotRunning = errors.New("peer manager not running")

	// ErrAlreadyRunning 管理器已在运行
	ErrAlreadyRunning = errors.New("peer manager already running")

	// ErrNilListener 未提供事件监听器
	ErrNilListener = errors.New("event listener is nil")

	// ErrPeerClosed 连接已断开
	ErrPeerClosed = errors.New("peer disconnected")

	// ErrMessageTooLarge 消息超过可靠消息上限
	ErrMessageTooLarge = errors.New("message too large")

	// ErrUnknownDeliveryMethod 未知投递方式
	ErrUnknownDeliveryMethod = errors.New("unknown delivery method")

	// ErrRateLimited 发现回复超出速率限制
	ErrRateLimited = errors.New("discovery reply rate limited")

	// ErrBadHello 对端握手帧无效
	ErrBadHello = errors.New("invalid hello frame")
)
