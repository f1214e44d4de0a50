package types

// ============================================================================
//                              AddressFamily - 地址族
// ============================================================================

// AddressFamily 地址族
type AddressFamily int

const (
	// FamilyUnknown 未知地址族
	FamilyUnknown AddressFamily = iota
	// FamilyIPv4 IPv4
	FamilyIPv4
	// FamilyIPv6 IPv6
	FamilyIPv6
)

// String 返回地址族的字符串表示
func (f AddressFamily) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              DeliveryMethod - 投递方式
// ============================================================================

// DeliveryMethod 可靠性通道的投递方式
type DeliveryMethod uint8

const (
	// Unreliable 不可靠、无序，可能丢失
	Unreliable DeliveryMethod = iota
	// Sequenced 不可靠，但丢弃比已收到的更旧的包
	Sequenced
	// ReliableUnordered 可靠，不保证顺序
	ReliableUnordered
	// ReliableOrdered 可靠且有序
	ReliableOrdered
)

// String 返回投递方式的字符串表示
func (m DeliveryMethod) String() string {
	switch m {
	case Unreliable:
		return "unreliable"
	case Sequenced:
		return "sequenced"
	case ReliableUnordered:
		return "reliable-unordered"
	case ReliableOrdered:
		return "reliable-ordered"
	default:
		return "unknown"
	}
}

// IsReliable 是否保证送达
func (m DeliveryMethod) IsReliable() bool {
	return m == ReliableUnordered || m == ReliableOrdered
}

// ============================================================================
//                              UnconnectedKind - 无连接消息类型
// ============================================================================

// UnconnectedKind 无连接数据报的类型
//
// 仅支持发现请求/响应这一种无连接交互。
type UnconnectedKind uint8

const (
	// UnconnectedDiscoveryRequest 发现请求
	UnconnectedDiscoveryRequest UnconnectedKind = 0x01
	// UnconnectedDiscoveryResponse 发现响应
	UnconnectedDiscoveryResponse UnconnectedKind = 0x02
)

// String 返回类型的字符串表示
func (k UnconnectedKind) String() string {
	switch k {
	case UnconnectedDiscoveryRequest:
		return "discovery-request"
	case UnconnectedDiscoveryResponse:
		return "discovery-response"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              DisconnectReason - 断开原因
// ============================================================================

// DisconnectReason 连接断开原因
type DisconnectReason int

const (
	// DisconnectUnknown 未知原因
	DisconnectUnknown DisconnectReason = iota
	// DisconnectLocalClose 本地主动断开
	DisconnectLocalClose
	// DisconnectRemoteClose 远端主动断开
	DisconnectRemoteClose
	// DisconnectTimeout 超时
	DisconnectTimeout
	// DisconnectRejected 连接被拒绝（如超出连接上限）
	DisconnectRejected
	// DisconnectShutdown 管理器关闭
	DisconnectShutdown
)

// String 返回断开原因的字符串表示
func (r DisconnectReason) String() string {
	switch r {
	case DisconnectLocalClose:
		return "local-close"
	case DisconnectRemoteClose:
		return "remote-close"
	case DisconnectTimeout:
		return "timeout"
	case DisconnectRejected:
		return "rejected"
	case DisconnectShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// DisconnectInfo 断开事件信息
type DisconnectInfo struct {
	// Reason 断开原因
	Reason DisconnectReason

	// Err 底层错误（可能为 nil）
	Err error
}
