package types

import "strconv"

// ============================================================================
//                              NetworkID - 网络实体 ID
// ============================================================================

// NetworkID 复制实体的网络 ID
//
// 由权威会话分配，从 1 开始单调递增，会话生命周期内不复用。
// 0 表示无效 ID。
type NetworkID uint32

// InvalidNetworkID 无效的网络 ID
const InvalidNetworkID NetworkID = 0

// IsValid 是否为有效 ID
func (id NetworkID) IsValid() bool {
	return id != InvalidNetworkID
}

// String 返回十进制表示
func (id NetworkID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ============================================================================
//                              ConnectID - 连接 ID
// ============================================================================

// ConnectID 连接的稳定数字标识
//
// 在一个 Manager 的生命周期内唯一，可用于查找或移除会话连接。
type ConnectID uint64

// String 返回十进制表示
func (id ConnectID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ============================================================================
//                              MsgType - 消息类型标签
// ============================================================================

// MsgType 线上消息的 16 位类型标签
type MsgType uint16

// String 返回十进制表示（具名类型见 protocol.MsgTypeName）
func (t MsgType) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
