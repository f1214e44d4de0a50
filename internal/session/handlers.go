package session

import (
	"fmt"

	"github.com/dep2p/go-tinynet/pkg/protocol"
	"github.com/dep2p/go-tinynet/pkg/types"
)

// HandlerFunc 消息处理器
//
// 返回的错误只会被记录，不会影响会话。
type HandlerFunc func(msg *MessageReader) error

// MessageReader 分发给处理器的消息上下文
//
// 同一 Scene 复用同一个 MessageReader，只在处理器执行期间有效。
type MessageReader struct {
	// MsgType 消息类型标签
	MsgType types.MsgType

	// Reader 位于类型标签之后
	Reader *protocol.Reader

	// Conn 来源连接，对端未知时为 nil
	Conn *Connection

	// Method 实际投递该消息的方式
	Method types.DeliveryMethod
}

// ReadMessage 把剩余字节解码到 msg
func (m *MessageReader) ReadMessage(msg protocol.Message) error {
	if err := m.Reader.Decode(msg); err != nil {
		return fmt.Errorf("decode %s: %w", protocol.MsgTypeName(m.MsgType), err)
	}
	return nil
}

// Handlers 类型标签到处理器的映射
type Handlers struct {
	m map[types.MsgType]HandlerFunc
}

// NewHandlers 创建空的处理器表
func NewHandlers() *Handlers {
	return &Handlers{m: make(map[types.MsgType]HandlerFunc)}
}

// Register 注册处理器
//
// allowOverride 为 false 且 t 已注册时返回 ErrHandlerExists，原处理器保持不变。
func (h *Handlers) Register(t types.MsgType, fn HandlerFunc, allowOverride bool) error {
	if fn == nil {
		return ErrNilHandler
	}
	if _, ok := h.m[t]; ok && !allowOverride {
		return fmt.Errorf("%w: %s", ErrHandlerExists, protocol.MsgTypeName(t))
	}
	h.m[t] = fn
	return nil
}

// RegisterHandler 注册处理器，覆盖已有的同类型处理器
func (h *Handlers) RegisterHandler(t types.MsgType, fn HandlerFunc) {
	if err := h.Register(t, fn, true); err != nil {
		log.Warn("注册处理器失败", "type", protocol.MsgTypeName(t), "err", err)
	}
}

// RegisterHandlerSafe 注册处理器，拒绝重复注册
func (h *Handlers) RegisterHandlerSafe(t types.MsgType, fn HandlerFunc) error {
	return h.Register(t, fn, false)
}

// Unregister 注销处理器，返回是否存在
func (h *Handlers) Unregister(t types.MsgType) bool {
	if _, ok := h.m[t]; !ok {
		return false
	}
	delete(h.m, t)
	return true
}

// Contains 是否已注册
func (h *Handlers) Contains(t types.MsgType) bool {
	_, ok := h.m[t]
	return ok
}

// Get 获取处理器
func (h *Handlers) Get(t types.MsgType) (HandlerFunc, bool) {
	fn, ok := h.m[t]
	return fn, ok
}

// Len 已注册的处理器数量
func (h *Handlers) Len() int {
	return len(h.m)
}
